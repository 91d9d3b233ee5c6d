// Package progress carries transfer events from the job runner to the
// console, a JSON stream and the progress bar.
package progress

import (
	"sync"
	"time"
)

// EventType names a point in the life of a run or job.
type EventType string

const (
	RunStarted   EventType = "run_started"
	JobStarted   EventType = "job_started"
	ChunkWritten EventType = "chunk_written"
	JobCompleted EventType = "job_completed"
	JobFailed    EventType = "job_failed"
	RunCompleted EventType = "run_completed"
)

// Event is one structured progress record.
type Event struct {
	Timestamp   string    `json:"timestamp"`
	Type        EventType `json:"event"`
	RunID       string    `json:"run_id,omitempty"`
	Job         string    `json:"job,omitempty"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Chunk       int       `json:"chunk,omitempty"`
	Rows        int64     `json:"rows,omitempty"`
	Total       int64     `json:"total_rows"`
	State       string    `json:"state,omitempty"`
	Error       string    `json:"error,omitempty"`
	Jobs        int       `json:"jobs,omitempty"`
	Failed      int       `json:"failed,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use;
// parallel jobs emit from their own goroutines.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans events out to several sinks in order.
type Multi []Sink

// Emit forwards e to every non-nil sink.
func (m Multi) Emit(e Event) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Recorder keeps every event in memory. Used in tests and for summaries.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
