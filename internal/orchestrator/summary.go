package orchestrator

import (
	"fmt"
	"time"

	"github.com/johndauphine/table-transfer/internal/transfer"
)

// Summary is the outcome of a run.
type Summary struct {
	RunID    string
	Mode     string
	Results  []transfer.Result
	Skipped  []string // jobs already complete in a resumed run
	Rows     int64
	Failed   int
	Duration time.Duration
}

func (s *Summary) tally() {
	s.Rows, s.Failed = 0, 0
	for _, r := range s.Results {
		s.Rows += r.Rows
		if !r.OK() {
			s.Failed++
		}
	}
}

// Failures lists the names of the failed jobs.
func (s *Summary) Failures() []string {
	var out []string
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r.Job)
		}
	}
	return out
}

// Err returns nil when every job succeeded. Otherwise it wraps the error of
// the first failed job, so its kind decides the exit code.
func (s *Summary) Err() error {
	for _, r := range s.Results {
		if !r.OK() {
			return fmt.Errorf("%d of %d jobs failed, first %s: %w", s.Failed, len(s.Results), r.Job, r.Err)
		}
	}
	return nil
}

// JobReport is the JSON form of one job result.
type JobReport struct {
	Job         string `json:"job"`
	Destination string `json:"destination"`
	State       string `json:"state"`
	FailedIn    string `json:"failed_in,omitempty"`
	Created     bool   `json:"created"`
	Chunks      int    `json:"chunks"`
	Rows        int64  `json:"rows"`
	DurationMs  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// Report is the JSON form of a Summary, written by --output-json.
type Report struct {
	RunID      string      `json:"run_id"`
	Mode       string      `json:"mode"`
	Status     string      `json:"status"`
	Jobs       []JobReport `json:"jobs"`
	Skipped    []string    `json:"skipped,omitempty"`
	Rows       int64       `json:"rows"`
	Failed     int         `json:"failed"`
	DurationMs int64       `json:"duration_ms"`
}

// Report converts s for JSON output.
func (s *Summary) Report() Report {
	rep := Report{
		RunID:      s.RunID,
		Mode:       s.Mode,
		Status:     "success",
		Skipped:    s.Skipped,
		Rows:       s.Rows,
		Failed:     s.Failed,
		DurationMs: s.Duration.Milliseconds(),
		Jobs:       make([]JobReport, 0, len(s.Results)),
	}
	if s.Failed > 0 {
		rep.Status = "failed"
	}
	for _, r := range s.Results {
		jr := JobReport{
			Job:         r.Job,
			Destination: r.Destination,
			State:       string(r.State),
			Created:     r.Created,
			Chunks:      r.Chunks,
			Rows:        r.Rows,
			DurationMs:  r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			jr.FailedIn = string(r.FailedIn)
			jr.Error = r.Err.Error()
		}
		rep.Jobs = append(rep.Jobs, jr)
	}
	return rep
}
