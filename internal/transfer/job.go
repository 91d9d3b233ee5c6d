// Package transfer runs one table-transfer job: resolve the source columns,
// ensure the destination table, then stream chunks from source to
// destination with an optional reference join in between.
package transfer

import (
	"fmt"
	"time"

	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/johndauphine/table-transfer/internal/transform"
)

// State is a step of the per-job state machine.
type State string

const (
	StateInit           State = "INIT"
	StateSchemaResolved State = "SCHEMA_RESOLVED"
	StateTableEnsured   State = "TABLE_ENSURED"
	StateStreaming      State = "STREAMING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Job is one source to destination transfer.
type Job struct {
	Name        string
	Source      source.Source
	Destination string
	Join        *transform.Spec // nil for a plain copy
	Resume      Resume
}

// Resume is what an earlier attempt of the job already committed. The
// first Rows output rows are read and dropped instead of written again,
// which relies on the source returning rows in a stable order.
type Resume struct {
	Chunks int
	Rows   int64
}

// Options tunes reading.
type Options struct {
	BatchSize int
	ReadAhead int
	Retry     source.Retry
}

// Stats breaks down where a job spent its time.
type Stats struct {
	ReadWait  time.Duration // waiting for the next chunk from the source
	JoinTime  time.Duration
	WriteTime time.Duration
}

// TotalTime is the sum of the measured phases.
func (s Stats) TotalTime() time.Duration {
	return s.ReadWait + s.JoinTime + s.WriteTime
}

func (s Stats) String() string {
	total := s.TotalTime()
	if total == 0 {
		return "no data"
	}
	pct := func(d time.Duration) float64 { return float64(d) / float64(total) * 100 }
	return fmt.Sprintf("read=%.1fs (%.0f%%), join=%.1fs (%.0f%%), write=%.1fs (%.0f%%)",
		s.ReadWait.Seconds(), pct(s.ReadWait),
		s.JoinTime.Seconds(), pct(s.JoinTime),
		s.WriteTime.Seconds(), pct(s.WriteTime))
}

// Result is the outcome of a job. Rows already committed stay in the
// destination when a job fails.
type Result struct {
	Job         string
	Destination string
	State       State // DONE or FAILED
	FailedIn    State // the state the job was in when it failed
	Created     bool  // the destination table was created by this job
	Chunks      int   // committed chunks, including resumed ones
	Rows        int64 // committed rows, including resumed ones
	Resumed     int64 // rows committed by an earlier attempt
	Duration    time.Duration
	Stats       Stats
	Err         error
}

// RowsPerSecond is the throughput of this attempt over its wall-clock
// duration.
func (r Result) RowsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Rows-r.Resumed) / r.Duration.Seconds()
}

// OK reports whether the job finished.
func (r Result) OK() bool {
	return r.State == StateDone && r.Err == nil
}
