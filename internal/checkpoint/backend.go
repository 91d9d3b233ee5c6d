// Package checkpoint records run history and per-job progress so that an
// interrupted or partly failed run can be resumed.
package checkpoint

import (
	"time"
)

// Run and job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one invocation of the transfer command.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	Mode        string
	ConfigHash  string
	Config      string // sanitized configuration as JSON
	Error       string
}

// Job is the recorded progress of one transfer job within a run.
type Job struct {
	RunID       string
	Name        string
	Source      string
	Destination string
	Status      string
	State       string // last state the job reached
	Chunks      int
	Rows        int64
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
}

// Backend persists run state. State (SQLite) keeps full history; FileState
// keeps only the latest run in a YAML file.
type Backend interface {
	CreateRun(run Run) error
	CompleteRun(id, status, errorMsg string) error
	GetRun(id string) (*Run, error)
	LastIncompleteRun() (*Run, error)
	MarkRunResumed(id string) error
	Runs(limit int) ([]Run, error)

	RegisterJobs(runID string, jobs []Job) error
	StartJob(runID, name string) error
	SaveProgress(runID, name, state string, chunks int, rows int64) error
	FinishJob(runID, name, status, state string, rows int64, errorMsg string) error
	Jobs(runID string) ([]Job, error)

	Close() error
}

var (
	_ Backend = (*State)(nil)
	_ Backend = (*FileState)(nil)
)

// JobsByName returns the recorded jobs of runID keyed by name.
func JobsByName(b Backend, runID string) (map[string]Job, error) {
	jobs, err := b.Jobs(runID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	return byName, nil
}

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02 15:04:05.000000"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
