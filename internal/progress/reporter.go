package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/table-transfer/internal/logging"
)

// JSONReporter writes one JSON event per line, for schedulers and other
// automation.
type JSONReporter struct {
	writer     io.Writer
	mu         sync.Mutex
	interval   time.Duration
	lastReport time.Time
	closed     bool
}

// NewJSONReporter creates a reporter writing to writer (stderr if nil).
// interval is the minimum time between chunk events; run and job events
// are never throttled.
func NewJSONReporter(writer io.Writer, interval time.Duration) *JSONReporter {
	if writer == nil {
		writer = os.Stderr
	}
	return &JSONReporter{
		writer:   writer,
		interval: interval,
	}
}

// Emit writes e, dropping chunk events that arrive within the interval.
func (r *JSONReporter) Emit(e Event) {
	if e.Type == ChunkWritten {
		r.Report(e)
		return
	}
	r.ReportImmediate(e)
}

// Report writes e unless the previous write was less than interval ago.
func (r *JSONReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	now := time.Now()
	if r.interval > 0 && now.Sub(r.lastReport) < r.interval {
		return
	}
	r.write(e, now)
}

// ReportImmediate writes e regardless of throttling.
func (r *JSONReporter) ReportImmediate(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.write(e, time.Now())
}

func (r *JSONReporter) write(e Event, now time.Time) {
	if e.Timestamp == "" {
		e.Timestamp = now.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(e)
	if err != nil {
		logging.Warn("Failed to marshal progress event: %v", err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
	r.lastReport = now
}

// Close stops further output.
func (r *JSONReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
