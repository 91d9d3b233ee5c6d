package orchestrator

import (
	"context"
	"fmt"

	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/johndauphine/table-transfer/internal/target"
)

// ValidationResult compares source and destination row counts of one job.
type ValidationResult struct {
	Job        string `json:"job"`
	SourceRows int64  `json:"source_rows"`
	TargetRows int64  `json:"target_rows"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the counts match.
func (v ValidationResult) OK() bool {
	return v.Skipped || (v.Error == "" && v.SourceRows == v.TargetRows)
}

// Validate compares row counts between every job's source and destination.
// Join jobs are skipped since their output size is not the source size.
func (o *Orchestrator) Validate(ctx context.Context) ([]ValidationResult, error) {
	jobs, err := BuildJobs(o.config)
	if err != nil {
		return nil, err
	}
	src, dst, err := o.openPair(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	defer dst.Close()

	logging.Info("Validation Results:")
	logging.Info("-------------------")

	results := make([]ValidationResult, 0, len(jobs))
	failed := 0
	for _, j := range jobs {
		v := ValidationResult{Job: j.Name}
		if j.Join != nil {
			v.Skipped = true
			logging.Info("%-30s SKIP (joined with reference data)", j.Name)
			results = append(results, v)
			continue
		}

		if v.SourceRows, err = source.Count(ctx, src, j.Source); err != nil {
			v.Error = err.Error()
			logging.Error("%-30s ERROR getting source count: %v", j.Name, err)
		} else if v.TargetRows, err = target.RowCount(ctx, dst, j.Destination); err != nil {
			v.Error = err.Error()
			logging.Error("%-30s ERROR getting target count: %v", j.Name, err)
		} else if v.OK() {
			logging.Info("%-30s OK %d rows", j.Name, v.TargetRows)
		} else {
			logging.Error("%-30s FAIL source=%d target=%d (diff=%d)",
				j.Name, v.SourceRows, v.TargetRows, v.SourceRows-v.TargetRows)
		}
		if !v.OK() {
			failed++
		}
		results = append(results, v)
	}

	if failed > 0 {
		return results, fmt.Errorf("row count validation failed for %d of %d jobs", failed, len(jobs))
	}
	return results, nil
}
