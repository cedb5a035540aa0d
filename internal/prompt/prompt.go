// Package prompt asks the operator for the replay settings that were not
// given on the command line.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/getpup/pupsourcing-replay/invoker"
	"github.com/getpup/pupsourcing-replay/source"
)

// ErrNoInput is returned when the input ends before a valid answer was given.
var ErrNoInput = errors.New("no input")

// ErrNoChoices is returned when there is nothing to select from.
var ErrNoChoices = errors.New("nothing to select")

// BucketLister lists the buckets visible to the operator.
type BucketLister interface {
	ListBuckets(ctx context.Context) ([]string, error)
}

// PrefixBrowser lists the common prefixes one level below a prefix.
type PrefixBrowser interface {
	ListPrefixes(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Prompter reads selections from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Bucket asks for exactly one bucket.
func (p *Prompter) Bucket(ctx context.Context, lister BucketLister) (string, error) {
	buckets, err := lister.ListBuckets(ctx)
	if err != nil {
		return "", err
	}
	if len(buckets) == 0 {
		return "", fmt.Errorf("buckets: %w", ErrNoChoices)
	}

	for {
		selection, err := p.Select("Select the bucket which contains the files to be replayed:", buckets)
		if err != nil {
			return "", err
		}

		switch len(selection) {
		case 0:
			fmt.Fprintln(p.out, "No selection.. try again!")
		case 1:
			return selection[0], nil
		default:
			fmt.Fprintln(p.out, "Invalid selection.. please select one item")
		}
	}
}

// Paths browses the prefixes of bucket. Selecting one prefix descends into it;
// selecting two selects every prefix between them, inclusive. When a level has
// no prefixes below it, the current prefix is used on its own.
func (p *Prompter) Paths(ctx context.Context, browser PrefixBrowser, bucket string) ([]string, error) {
	prefix := ""
	for {
		choices, err := browser.ListPrefixes(ctx, bucket, prefix)
		if err != nil {
			return nil, err
		}
		if len(choices) == 0 {
			return []string{prefix}, nil
		}

		// Shown newest first.
		shown := make([]string, len(choices))
		for i, c := range choices {
			shown[len(choices)-1-i] = c
		}

		selection, err := p.Select("Browse to the path containing the files to be replayed. "+
			"When at the proper path select the first and last item to be replayed:", shown)
		if err != nil {
			return nil, err
		}

		switch len(selection) {
		case 0:
			fmt.Fprintln(p.out, "No selection.. try again!")
		case 1:
			prefix = selection[0]
		case 2:
			return source.ExpandRange(choices, selection[0], selection[1]), nil
		default:
			fmt.Fprintln(p.out, "Invalid selection.. please select the first and last item in the range to be replayed")
		}
	}
}

// Functions asks for one or more target functions, listed in name order.
func (p *Prompter) Functions(ctx context.Context, lister invoker.FunctionLister) ([]string, error) {
	functions, err := lister.ListFunctions(ctx)
	if err != nil {
		return nil, err
	}
	if len(functions) == 0 {
		return nil, fmt.Errorf("functions: %w", ErrNoChoices)
	}

	names := make([]string, 0, len(functions))
	for _, fn := range functions {
		names = append(names, fn.Name)
	}
	sort.Strings(names)

	for {
		selection, err := p.Select("Select the function(s) to replay the events against:", names)
		if err != nil {
			return nil, err
		}
		if len(selection) > 0 {
			return selection, nil
		}
		fmt.Fprintln(p.out, "No selection.. try again!")
	}
}

// Confirm asks a yes/no question. Anything but y or yes declines.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N] ", question)

	line, err := p.readLine()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Select prints the numbered choices and reads a list of item numbers
// separated by commas or spaces. Out of range or malformed answers are asked
// again. An empty answer returns an empty selection. Items are returned in
// the order they are listed.
func (p *Prompter) Select(question string, choices []string) ([]string, error) {
	for {
		fmt.Fprintln(p.out, question)
		for i, c := range choices {
			fmt.Fprintf(p.out, "  %2d) %s\n", i+1, c)
		}
		fmt.Fprint(p.out, "> ")

		line, err := p.readLine()
		if err != nil {
			return nil, err
		}

		indexes, err := parseIndexes(line, len(choices))
		if err != nil {
			fmt.Fprintf(p.out, "Invalid selection.. %v\n", err)
			continue
		}

		selection := make([]string, 0, len(indexes))
		for _, i := range indexes {
			selection = append(selection, choices[i])
		}
		return selection, nil
	}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// parseIndexes converts 1-based item numbers into sorted, distinct 0-based indexes.
func parseIndexes(line string, n int) ([]int, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	seen := make(map[int]bool, len(fields))
	indexes := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", f)
		}
		if v < 1 || v > n {
			return nil, fmt.Errorf("%d is out of range 1-%d", v, n)
		}
		if !seen[v-1] {
			seen[v-1] = true
			indexes = append(indexes, v-1)
		}
	}

	sort.Ints(indexes)
	return indexes, nil
}
