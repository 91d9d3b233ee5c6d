package progress

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johndauphine/table-transfer/internal/logging"
)

// LogSink writes events as human-readable log lines.
type LogSink struct{}

// Emit logs e at a level matching its type.
func (LogSink) Emit(e Event) {
	switch e.Type {
	case RunStarted:
		logging.Info("Starting run %s with %d jobs", e.RunID, e.Jobs)
	case JobStarted:
		logging.Info("Starting transfer: %s -> %s", e.Source, e.Destination)
	case ChunkWritten:
		logging.Info("[%s] Transferred %d rows... Total: %d", e.Job, e.Rows, e.Total)
	case JobCompleted:
		logging.Info("✅ Transfer complete for table: %s (%s rows in %s)",
			e.Destination, humanize.Comma(e.Total), duration(e.DurationMs))
	case JobFailed:
		logging.Error("❌ Transfer failed for table: %s in state %s after %s rows: %s",
			e.Destination, e.State, humanize.Comma(e.Total), e.Error)
	case RunCompleted:
		if e.Failed > 0 {
			logging.Warn("Run %s finished: %d of %d jobs failed, %s rows transferred",
				e.RunID, e.Failed, e.Jobs, humanize.Comma(e.Total))
			return
		}
		logging.Info("Run %s finished: %d jobs, %s rows transferred in %s",
			e.RunID, e.Jobs, humanize.Comma(e.Total), duration(e.DurationMs))
	}
}

func duration(ms int64) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if d > time.Second {
		return d.Round(time.Second)
	}
	return d
}
