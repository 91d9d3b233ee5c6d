package orchestrator

import (
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/johndauphine/table-transfer/internal/transfer"
	"github.com/johndauphine/table-transfer/internal/transform"
)

// BuildJobs turns the table mapping and the explicit jobs of cfg into one
// ordered job list: mapped tables first, in document order, then jobs.
func BuildJobs(cfg *config.Config) ([]transfer.Job, error) {
	jobs := make([]transfer.Job, 0, len(cfg.Tables)+len(cfg.Jobs))
	for _, m := range cfg.Tables {
		jobs = append(jobs, transfer.Job{
			Name:        m.Source,
			Source:      source.Table(m.Source),
			Destination: m.Destination,
		})
	}

	for _, jc := range cfg.Jobs {
		job := transfer.Job{
			Name:        jc.Name,
			Source:      source.Source{Table: jc.Table, Query: jc.Query},
			Destination: jc.Destination,
		}
		if jc.Join != nil {
			mode, err := transform.ParseMode(jc.Join.How)
			if err != nil {
				return nil, err
			}
			job.Join = &transform.Spec{
				SourceKey:        jc.Join.SourceKey,
				ReferenceKey:     jc.Join.ReferenceKey,
				Mode:             mode,
				IncludeReference: jc.Join.IncludeReference,
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func needsReference(jobs []transfer.Job) bool {
	for _, j := range jobs {
		if j.Join != nil {
			return true
		}
	}
	return false
}
