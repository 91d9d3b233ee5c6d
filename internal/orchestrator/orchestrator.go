// Package orchestrator runs every configured transfer job, sequentially over
// one connection pair or in parallel with a connection pair per job, and
// records the run in the checkpoint store.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/johndauphine/table-transfer/internal/checkpoint"
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/notify"
	"github.com/johndauphine/table-transfer/internal/progress"
	"github.com/johndauphine/table-transfer/internal/reference"
	"github.com/johndauphine/table-transfer/internal/transfer"
)

// Options configures an Orchestrator beyond the config file.
type Options struct {
	// StateFile selects a single-run YAML state file instead of the SQLite
	// run history in the data directory.
	StateFile string
	// Sink receives progress events in addition to the log.
	Sink progress.Sink
	// Notifier overrides the Slack notifier built from the config.
	Notifier notify.Provider
}

// Orchestrator coordinates a transfer run.
type Orchestrator struct {
	config   *config.Config
	state    checkpoint.Backend
	notifier notify.Provider
	sink     progress.Sink
}

// New creates an orchestrator and opens its state backend.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	var (
		state checkpoint.Backend
		err   error
	)
	if opts.StateFile != "" {
		state, err = checkpoint.NewFileState(opts.StateFile)
	} else {
		state, err = checkpoint.New(cfg.Transfer.DataDir)
	}
	if err != nil {
		return nil, err
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.New(&cfg.Slack)
	}
	sink := progress.Multi{progress.LogSink{}}
	if opts.Sink != nil {
		sink = append(sink, opts.Sink)
	}

	return &Orchestrator{
		config:   cfg,
		state:    state,
		notifier: notifier,
		sink:     sink,
	}, nil
}

// Close releases the state backend.
func (o *Orchestrator) Close() error {
	return o.state.Close()
}

// State returns the run history backend.
func (o *Orchestrator) State() checkpoint.Backend {
	return o.state
}

// Run starts a new run over every configured job.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	jobs, err := BuildJobs(o.config)
	if err != nil {
		return nil, err
	}

	runID := checkpoint.NewRunID()
	sanitized := o.config.Sanitized()
	cfgJSON, _ := json.Marshal(sanitized)
	if err := o.state.CreateRun(checkpoint.Run{
		ID:         runID,
		Mode:       o.config.Transfer.Mode,
		ConfigHash: checkpoint.ConfigHash(sanitized),
		Config:     string(cfgJSON),
	}); err != nil {
		return nil, err
	}
	if err := o.state.RegisterJobs(runID, checkpointJobs(runID, jobs)); err != nil {
		return nil, err
	}

	return o.execute(ctx, runID, jobs, nil)
}

// Resume continues the most recent run that did not succeed. Jobs that
// completed are skipped; the others continue after the rows they already
// committed.
func (o *Orchestrator) Resume(ctx context.Context) (*Summary, error) {
	run, err := o.state.LastIncompleteRun()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errs.Newf(errs.KindState, "resume", "", "no incomplete run found - use 'run' to start a new transfer")
	}
	logging.Info("Resuming run: %s (started %s)", run.ID, run.StartedAt.Format(time.RFC3339))

	if hash := checkpoint.ConfigHash(o.config.Sanitized()); run.ConfigHash != "" && run.ConfigHash != hash {
		logging.Warn("Configuration changed since run %s started; completed jobs are still skipped", run.ID)
	}

	jobs, err := BuildJobs(o.config)
	if err != nil {
		return nil, err
	}
	if err := o.state.MarkRunResumed(run.ID); err != nil {
		return nil, err
	}
	if err := o.state.RegisterJobs(run.ID, checkpointJobs(run.ID, jobs)); err != nil {
		return nil, err
	}
	recorded, err := checkpoint.JobsByName(o.state, run.ID)
	if err != nil {
		return nil, err
	}

	var pending []transfer.Job
	var skipped []string
	for _, j := range jobs {
		rec := recorded[j.Name]
		if rec.Status == checkpoint.StatusSuccess {
			skipped = append(skipped, j.Name)
			continue
		}
		j.Resume = transfer.Resume{Chunks: rec.Chunks, Rows: rec.Rows}
		pending = append(pending, j)
	}
	if len(skipped) > 0 {
		logging.Info("Skipping %d already-complete jobs: %v", len(skipped), skipped)
	}

	return o.execute(ctx, run.ID, pending, skipped)
}

func (o *Orchestrator) execute(ctx context.Context, runID string, jobs []transfer.Job, skipped []string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: runID, Mode: o.config.Transfer.Mode, Skipped: skipped}

	o.emit(progress.Event{Type: progress.RunStarted, RunID: runID, Jobs: len(jobs)})
	if err := o.notifier.RunStarted(runID, o.config.Source.Redacted().Name(), o.config.Target.Redacted().Name(), len(jobs)); err != nil {
		logging.Warn("Slack notification failed: %v", err)
	}

	var ref *reference.Dataset
	if needsReference(jobs) {
		var err error
		ref, err = reference.Load(reference.Options{
			Path:     o.config.Reference.Path,
			Sheet:    o.config.Reference.Sheet,
			Key:      o.config.Reference.Key,
			Encoding: o.config.Reference.Encoding,
		})
		if err != nil {
			return o.abort(runID, start, err)
		}
	}

	sink := progress.Multi{o.sink, &checkpointSink{state: o.state}}
	var err error
	if o.config.Transfer.Mode == config.ModeParallel {
		summary.Results, err = o.runParallel(ctx, runID, jobs, sink)
	} else {
		summary.Results, err = o.runSequential(ctx, runID, jobs, ref, sink)
	}
	if err != nil {
		return o.abort(runID, start, err)
	}

	for _, res := range summary.Results {
		o.recordResult(runID, res)
	}
	summary.Duration = time.Since(start)
	summary.tally()
	o.finish(ctx, summary, start)

	return summary, summary.Err()
}

// recordResult stores a job outcome and notifies on failure.
func (o *Orchestrator) recordResult(runID string, res transfer.Result) {
	status, msg := checkpoint.StatusSuccess, ""
	if !res.OK() {
		status, msg = checkpoint.StatusFailed, res.Err.Error()
		if errors.Is(res.Err, context.Canceled) {
			status = checkpoint.StatusCancelled
		} else if err := o.notifier.JobFailed(runID, res.Job, string(res.FailedIn), res.Err); err != nil {
			logging.Warn("Slack notification failed: %v", err)
		}
	}
	state := res.State
	if !res.OK() {
		state = res.FailedIn
	}
	if err := o.state.FinishJob(runID, res.Job, status, string(state), res.Rows, msg); err != nil {
		logging.Warn("Recording job %s: %v", res.Job, err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, s *Summary, start time.Time) {
	status, msg := checkpoint.StatusSuccess, ""
	switch {
	case ctx.Err() != nil:
		status, msg = checkpoint.StatusCancelled, ctx.Err().Error()
	case s.Failed > 0:
		status, msg = checkpoint.StatusFailed, fmt.Sprintf("%d of %d jobs failed", s.Failed, len(s.Results))
	}
	if err := o.state.CompleteRun(s.RunID, status, msg); err != nil {
		logging.Warn("Recording run %s: %v", s.RunID, err)
	}

	o.emit(progress.Event{
		Type:       progress.RunCompleted,
		RunID:      s.RunID,
		Jobs:       len(s.Results),
		Failed:     s.Failed,
		Total:      s.Rows,
		DurationMs: s.Duration.Milliseconds(),
	})

	var err error
	if s.Failed > 0 {
		err = o.notifier.RunCompletedWithErrors(s.RunID, start, s.Duration, len(s.Results)-s.Failed, s.Failed, s.Rows, s.Failures())
	} else {
		err = o.notifier.RunCompleted(s.RunID, start, s.Duration, len(s.Results), s.Rows)
	}
	if err != nil {
		logging.Warn("Slack notification failed: %v", err)
	}
}

// abort ends a run that failed before or outside of any job.
func (o *Orchestrator) abort(runID string, start time.Time, err error) (*Summary, error) {
	status := checkpoint.StatusFailed
	if errors.Is(err, context.Canceled) {
		status = checkpoint.StatusCancelled
	}
	if serr := o.state.CompleteRun(runID, status, err.Error()); serr != nil {
		logging.Warn("Recording run %s: %v", runID, serr)
	}
	if nerr := o.notifier.RunFailed(runID, err, time.Since(start)); nerr != nil {
		logging.Warn("Slack notification failed: %v", nerr)
	}
	return nil, err
}

func (o *Orchestrator) emit(e progress.Event) {
	o.sink.Emit(e)
}

func checkpointJobs(runID string, jobs []transfer.Job) []checkpoint.Job {
	out := make([]checkpoint.Job, len(jobs))
	for i, j := range jobs {
		out[i] = checkpoint.Job{
			RunID:       runID,
			Name:        j.Name,
			Source:      j.Source.Label(),
			Destination: j.Destination,
		}
	}
	return out
}

// checkpointSink persists per-job progress as events arrive.
type checkpointSink struct {
	state checkpoint.Backend
}

func (c *checkpointSink) Emit(e progress.Event) {
	var err error
	switch e.Type {
	case progress.JobStarted:
		err = c.state.StartJob(e.RunID, e.Job)
	case progress.ChunkWritten:
		err = c.state.SaveProgress(e.RunID, e.Job, e.State, e.Chunk, e.Total)
	}
	if err != nil {
		logging.Warn("Saving progress for %s: %v", e.Job, err)
	}
}
