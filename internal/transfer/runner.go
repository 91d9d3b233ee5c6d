package transfer

import (
	"context"
	"time"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/progress"
	"github.com/johndauphine/table-transfer/internal/reference"
	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/johndauphine/table-transfer/internal/target"
	"github.com/johndauphine/table-transfer/internal/transform"
)

// Runner executes jobs over one source and one target connection. A Runner
// is not safe for concurrent use; parallel runs use one Runner per worker.
type Runner struct {
	Source    *driver.Conn
	Target    *driver.Conn
	Reference *reference.Dataset // required by jobs with a join
	Options   Options
	Sink      progress.Sink
	RunID     string
}

// jobRun is the mutable state of one Run call.
type jobRun struct {
	r     *Runner
	job   Job
	res   Result
	start time.Time
	skip  int64 // committed rows still to drop from the output
}

// Run executes job to completion or failure.
//
// Cancelling ctx stops the job between chunks: a chunk that has started
// writing is committed, and no further chunk is started. The destination
// therefore always holds a whole number of chunks.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	if r.Sink == nil {
		r.Sink = progress.Discard
	}
	jr := &jobRun{
		r:     r,
		job:   job,
		start: time.Now(),
		skip:  job.Resume.Rows,
		res: Result{
			Job:         job.Name,
			Destination: job.Destination,
			State:       StateInit,
			Chunks:      job.Resume.Chunks,
			Rows:        job.Resume.Rows,
			Resumed:     job.Resume.Rows,
		},
	}
	r.emit(progress.Event{
		Type:        progress.JobStarted,
		Job:         job.Name,
		Source:      job.Source.Label(),
		Destination: job.Destination,
		State:       string(StateInit),
	})

	if err := jr.run(ctx); err != nil {
		return jr.fail(err)
	}

	jr.res.State = StateDone
	jr.res.Duration = time.Since(jr.start)
	logging.Debug("Job %s profile: %s, %.0f rows/sec", job.Name, jr.res.Stats, jr.res.RowsPerSecond())
	r.emit(progress.Event{
		Type:        progress.JobCompleted,
		Job:         job.Name,
		Destination: job.Destination,
		Total:       jr.res.Rows,
		Chunk:       jr.res.Chunks,
		State:       string(StateDone),
		DurationMs:  jr.res.Duration.Milliseconds(),
	})
	return jr.res
}

func (r *Runner) emit(e progress.Event) {
	e.RunID = r.RunID
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	r.Sink.Emit(e)
}

func (jr *jobRun) run(ctx context.Context) error {
	r, job := jr.r, jr.job
	if err := ctx.Err(); err != nil {
		return err
	}

	manifest, err := source.ColumnsOf(ctx, r.Source, job.Source, r.Options.Retry)
	if err != nil {
		return err
	}
	out := manifest
	var joiner *transform.Joiner
	if job.Join != nil {
		if joiner, err = transform.NewJoiner(manifest, r.Reference, *job.Join); err != nil {
			return err
		}
		out = joiner.Manifest()
	}
	jr.res.State = StateSchemaResolved
	logging.Debug("[%s] %s: %d columns", job.Name, jr.res.State, out.Len())

	created, err := target.EnsureTable(ctx, r.Target, job.Destination, out)
	if err != nil {
		return err
	}
	jr.res.Created = created
	writer, err := target.NewWriter(r.Target, job.Destination, out)
	if err != nil {
		return err
	}
	jr.res.State = StateTableEnsured

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	chunks, err := source.Stream(readCtx, r.Source, job.Source, manifest, source.Options{
		BatchSize: r.Options.BatchSize,
		ReadAhead: r.Options.ReadAhead,
		Retry:     r.Options.Retry,
	})
	if err != nil {
		return err
	}
	jr.res.State = StateStreaming
	if jr.skip > 0 {
		logging.Info("[%s] resuming after %d committed rows", job.Name, jr.skip)
	}

	// Writes are not cancelled midway; cancellation is checked between chunks.
	writeCtx := context.WithoutCancel(ctx)
	lastSeq := 0
	for {
		waitStart := time.Now()
		chunk, ok := <-chunks
		jr.res.Stats.ReadWait += time.Since(waitStart)
		if !ok {
			break
		}
		if chunk.Err != nil {
			return chunk.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		lastSeq = chunk.Seq

		if joiner != nil {
			joinStart := time.Now()
			chunk = joiner.Join(chunk)
			jr.res.Stats.JoinTime += time.Since(joinStart)
		}
		if err := jr.write(writeCtx, writer, jr.dropCommitted(chunk)); err != nil {
			return err
		}
	}
	// A cancelled reader closes the channel early.
	if err := ctx.Err(); err != nil {
		return err
	}

	if joiner != nil {
		if err := jr.write(writeCtx, writer, jr.dropCommitted(joiner.Remainder(lastSeq+1))); err != nil {
			return err
		}
	}
	if jr.skip > 0 {
		return errs.Newf(errs.KindState, "resume", job.Name,
			"source produced %d rows but %d were already committed", job.Resume.Rows-jr.skip, job.Resume.Rows)
	}
	return nil
}

// dropCommitted removes the leading rows that an earlier attempt already
// wrote to the destination.
func (jr *jobRun) dropCommitted(chunk source.Chunk) source.Chunk {
	if jr.skip == 0 || chunk.Len() == 0 {
		return chunk
	}
	n := min(int64(chunk.Len()), jr.skip)
	jr.skip -= n
	chunk.Rows = chunk.Rows[n:]
	return chunk
}

func (jr *jobRun) write(ctx context.Context, w *target.Writer, chunk source.Chunk) error {
	if chunk.Len() == 0 {
		return nil
	}

	start := time.Now()
	n, err := w.Write(ctx, chunk)
	jr.res.Stats.WriteTime += time.Since(start)
	if err != nil {
		return err
	}

	jr.res.Chunks++
	jr.res.Rows += int64(n)
	jr.r.emit(progress.Event{
		Type:        progress.ChunkWritten,
		Job:         jr.job.Name,
		Destination: jr.job.Destination,
		Chunk:       jr.res.Chunks,
		Rows:        int64(n),
		Total:       jr.res.Rows,
		State:       string(StateStreaming),
	})
	return nil
}

func (jr *jobRun) fail(err error) Result {
	jr.res.FailedIn = jr.res.State
	jr.res.State = StateFailed
	jr.res.Err = err
	jr.res.Duration = time.Since(jr.start)

	jr.r.emit(progress.Event{
		Type:        progress.JobFailed,
		Job:         jr.job.Name,
		Destination: jr.job.Destination,
		Total:       jr.res.Rows,
		Chunk:       jr.res.Chunks,
		State:       string(jr.res.FailedIn),
		Error:       err.Error(),
		DurationMs:  jr.res.Duration.Milliseconds(),
	})
	return jr.res
}
