package orchestrator

import (
	"context"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/progress"
	"github.com/johndauphine/table-transfer/internal/reference"
	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/johndauphine/table-transfer/internal/transfer"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

func (o *Orchestrator) runnerOptions() transfer.Options {
	t := o.config.Transfer
	return transfer.Options{
		BatchSize: t.BatchSize,
		ReadAhead: lo.FromPtr(t.ReadAhead),
		Retry:     source.Retry{Retries: lo.FromPtr(t.ReadRetries), Backoff: t.RetryBackoff},
	}
}

// openPair opens a source and a target connection.
func (o *Orchestrator) openPair(ctx context.Context) (src, dst *driver.Conn, err error) {
	src, err = driver.Open(ctx, "source", &o.config.Source)
	if err != nil {
		return nil, nil, err
	}
	dst, err = driver.Open(ctx, "target", &o.config.Target)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return src, dst, nil
}

// runSequential runs jobs in order over one connection pair. A failed job
// does not stop the jobs after it.
func (o *Orchestrator) runSequential(ctx context.Context, runID string, jobs []transfer.Job,
	ref *reference.Dataset, sink progress.Sink) ([]transfer.Result, error) {
	src, dst, err := o.openPair(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	defer dst.Close()

	r := &transfer.Runner{
		Source:    src,
		Target:    dst,
		Reference: ref,
		Options:   o.runnerOptions(),
		Sink:      sink,
		RunID:     runID,
	}
	results := make([]transfer.Result, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, r.Run(ctx, job))
	}
	logPoolStats(src, dst)
	return results, nil
}

// runParallel runs up to max_workers jobs at a time. Every job opens its
// own connection pair from the config, so workers share nothing mutable.
func (o *Orchestrator) runParallel(ctx context.Context, runID string, jobs []transfer.Job,
	sink progress.Sink) ([]transfer.Result, error) {
	results := make([]transfer.Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(o.config.Transfer.MaxWorkers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = o.runIsolated(ctx, runID, job, sink)
			return nil
		})
	}
	g.Wait()
	return results, nil
}

func (o *Orchestrator) runIsolated(ctx context.Context, runID string, job transfer.Job, sink progress.Sink) transfer.Result {
	src, dst, err := o.openPair(ctx)
	if err != nil {
		res := transfer.Result{
			Job:         job.Name,
			Destination: job.Destination,
			State:       transfer.StateFailed,
			FailedIn:    transfer.StateInit,
			Err:         err,
		}
		sink.Emit(progress.Event{
			Type:        progress.JobFailed,
			RunID:       runID,
			Job:         job.Name,
			Destination: job.Destination,
			State:       string(transfer.StateInit),
			Error:       err.Error(),
		})
		return res
	}
	defer src.Close()
	defer dst.Close()

	r := &transfer.Runner{
		Source:  src,
		Target:  dst,
		Options: o.runnerOptions(),
		Sink:    sink,
		RunID:   runID,
	}
	return r.Run(ctx, job)
}

func logPoolStats(src, dst *driver.Conn) {
	logging.Debug("Session usage: %s; %s", src.Stats(), dst.Stats())
}
