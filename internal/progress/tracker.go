package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Tracker drives a terminal progress bar from events. The row total of a
// query is not known in advance, so the bar is a spinner with a counter.
type Tracker struct {
	bar       *progressbar.ProgressBar
	out       io.Writer
	current   atomic.Int64
	startTime time.Time

	mu         sync.Mutex
	activeJobs map[string]int
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// NewTracker creates a tracker that renders to w.
func NewTracker(w io.Writer) *Tracker {
	return &Tracker{
		out:        w,
		startTime:  time.Now(),
		activeJobs: make(map[string]int),
		bar: progressbar.NewOptions64(
			-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Transferring"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

// Emit updates the bar.
func (t *Tracker) Emit(e Event) {
	switch e.Type {
	case JobStarted:
		t.startJob(e.Job)
	case ChunkWritten:
		t.Add(e.Rows)
	case JobCompleted, JobFailed:
		t.endJob(e.Job)
	case RunCompleted:
		t.Finish()
	}
}

// Add increments the row counter.
func (t *Tracker) Add(n int64) {
	t.current.Add(n)
	t.bar.Add64(n)
}

// Current returns the number of rows counted so far.
func (t *Tracker) Current() int64 {
	return t.current.Load()
}

func (t *Tracker) startJob(name string) {
	t.mu.Lock()
	t.activeJobs[name]++
	t.describe()
	t.mu.Unlock()
	t.bar.RenderBlank()
}

func (t *Tracker) endJob(name string) {
	t.mu.Lock()
	t.activeJobs[name]--
	if t.activeJobs[name] <= 0 {
		delete(t.activeJobs, name)
	}
	t.describe()
	t.mu.Unlock()
}

// describe must be called with mu held.
func (t *Tracker) describe() {
	switch len(t.activeJobs) {
	case 0:
		t.bar.Describe("Transferring")
	case 1:
		for name := range t.activeJobs {
			t.bar.Describe(fmt.Sprintf("Transferring %s", name))
		}
	default:
		t.bar.Describe(fmt.Sprintf("Transferring (%d tables)", len(t.activeJobs)))
	}
}

// Finish stops the bar and logs the overall rate.
func (t *Tracker) Finish() {
	t.bar.Finish()

	elapsed := time.Since(t.startTime)
	rows := t.current.Load()
	rate := float64(rows) / elapsed.Seconds()

	fmt.Fprintln(t.out)
	logging.Info("Transferred %s rows in %s (%s rows/sec)",
		humanize.Comma(rows), elapsed.Round(time.Second), humanize.Comma(int64(rate)))
}
