package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/payload"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing-replay/store/file"
)

var inspectVerbose bool

func init() {
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false, "list every failed job")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint-dir>",
	Short: "Summarize a file checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("checkpoint directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("checkpoint directory: %s is not a directory", dir)
		}

		s, err := file.New(file.Config{Dir: dir})
		if err != nil {
			return err
		}

		jobs, err := loadJobs(cmd, s, store.DocumentJobs)
		if err != nil {
			return err
		}

		failed, err := loadJobs(cmd, s, store.DocumentFailed)
		if errors.Is(err, store.ErrDocumentNotFound) {
			failed = nil
		} else if err != nil {
			return err
		}

		printInspection(cmd.OutOrStdout(), dir, jobs, failed, inspectVerbose)
		return nil
	},
}

func loadJobs(cmd *cobra.Command, s *file.Store, document string) ([]replay.Job, error) {
	data, err := s.Load(cmd.Context(), document)
	if err != nil {
		return nil, err
	}
	return store.DecodeJobs(data)
}

func printInspection(out io.Writer, dir string, jobs, failed []replay.Job, verbose bool) {
	completed := 0
	for _, job := range jobs {
		if job.Result != nil {
			completed++
		}
	}

	fmt.Fprintf(out, "%s %s\n", boldText.Render("Checkpoint:"), dir)
	fmt.Fprintf(out, "  total     %d\n", len(jobs))
	fmt.Fprintf(out, "  completed %d\n", completed)
	fmt.Fprintf(out, "  pending   %d\n", len(jobs)-completed)

	if len(failed) == 0 {
		fmt.Fprintf(out, "  failed    %s\n", okText.Render("0"))
		return
	}
	fmt.Fprintf(out, "  failed    %s\n", failText.Render(fmt.Sprintf("%d", len(failed))))

	if !verbose {
		return
	}

	fmt.Fprintln(out)
	for _, job := range failed {
		kind, retries := "", 0
		if job.Result != nil {
			kind, retries = string(job.Result.Error), job.Result.Retries
		}

		objects := "?"
		if refs, err := payload.Decode(job.Payload); err == nil {
			objects = fmt.Sprintf("%d", len(refs))
		}

		fmt.Fprintf(out, "  %s %s %s %s %s\n",
			dimText.Render(fmt.Sprintf("#%d", job.ID)),
			job.Function,
			job.Label,
			dimText.Render(fmt.Sprintf("[%s objects]", objects)),
			warnText.Render(fmt.Sprintf("(%s, %d retries)", kind, retries)))
	}
}
