package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johndauphine/table-transfer/internal/checkpoint"
)

// PrintHistory writes the most recent runs as a table.
func (o *Orchestrator) PrintHistory(w io.Writer, limit int) error {
	runs, err := o.state.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No transfer history")
		return nil
	}

	fmt.Fprintf(w, "%-10s %-20s %-20s %-10s %-10s\n", "ID", "Started", "Completed", "Mode", "Status")
	fmt.Fprintln(w, "--------------------------------------------------------------------------")
	for _, r := range runs {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-10s %-20s %-20s %-10s %-10s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), completed, r.Mode, r.Status)
	}
	return nil
}

// PrintRun writes the jobs of one run.
func (o *Orchestrator) PrintRun(w io.Writer, runID string) error {
	run, err := o.state.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	jobs, err := o.state.Jobs(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	fmt.Fprintf(w, "Started: %s (%s)\n", run.StartedAt.Local().Format(time.RFC3339), humanize.Time(run.StartedAt))
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-30s %-10s %-16s %8s %14s\n", "Job", "Status", "State", "Chunks", "Rows")
	for _, j := range jobs {
		fmt.Fprintf(w, "%-30s %-10s %-16s %8d %14s\n", j.Name, j.Status, j.State, j.Chunks, humanize.Comma(j.Rows))
		if j.Error != "" && j.Status != checkpoint.StatusSuccess {
			fmt.Fprintf(w, "  %s\n", j.Error)
		}
	}
	return nil
}
