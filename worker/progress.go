package worker

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Progress writes the single-line job indicator shared by all workers.
// On a terminal each line overwrites the previous one; otherwise every job
// gets its own line so logs show the progression.
type Progress struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
}

// NewProgress creates a Progress writing to out.
// Interactive mode is enabled when out is a terminal.
func NewProgress(out io.Writer) *Progress {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &Progress{
		out:         out,
		interactive: interactive,
	}
}

// JobStarted reports that a worker pulled a job.
// When the job is the last one of the run, a cleanup notice follows.
func (p *Progress) JobStarted(worker, jobID, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\rWorker %02d - Job %d/%d - %s", worker, jobID+1, total, label)
	if !p.interactive {
		fmt.Fprint(p.out, "\n")
	}

	if jobID+1 == total {
		fmt.Fprint(p.out, "\nLast job dispatched. Waiting for workers to finish...\n")
	}
}
