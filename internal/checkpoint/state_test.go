package checkpoint

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/johndauphine/table-transfer/internal/errs"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	state, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { state.Close() })

	file, err := NewFileState(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("NewFileState() error: %v", err)
	}
	return map[string]Backend{"sqlite": state, "file": file}
}

func TestRunLifecycle(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if r, err := b.LastIncompleteRun(); err != nil || r != nil {
				t.Fatalf("LastIncompleteRun() on empty store = %v, %v", r, err)
			}

			run := Run{ID: "run1", Mode: "sequential", ConfigHash: "abc"}
			if err := b.CreateRun(run); err != nil {
				t.Fatalf("CreateRun() error: %v", err)
			}
			jobs := []Job{
				{Name: "orders", Source: "ORDERS", Destination: "ORDERS_COPY"},
				{Name: "items", Source: "(SELECT ...)", Destination: "ITEMS"},
			}
			if err := b.RegisterJobs("run1", jobs); err != nil {
				t.Fatalf("RegisterJobs() error: %v", err)
			}

			if err := b.StartJob("run1", "orders"); err != nil {
				t.Fatal(err)
			}
			if err := b.SaveProgress("run1", "orders", "STREAMING", 2, 4); err != nil {
				t.Fatal(err)
			}
			if err := b.FinishJob("run1", "orders", StatusSuccess, "DONE", 5, ""); err != nil {
				t.Fatal(err)
			}
			if err := b.StartJob("run1", "items"); err != nil {
				t.Fatal(err)
			}
			if err := b.FinishJob("run1", "items", StatusFailed, "TABLE_ENSURED", 0, "WriteError: boom"); err != nil {
				t.Fatal(err)
			}
			if err := b.CompleteRun("run1", StatusFailed, "1 job failed"); err != nil {
				t.Fatal(err)
			}

			got, err := b.Jobs("run1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0].Name != "orders" || got[1].Name != "items" {
				t.Fatalf("Jobs() = %+v", got)
			}
			if got[0].Status != StatusSuccess || got[0].Rows != 5 || got[0].Chunks != 2 || got[0].State != "DONE" {
				t.Errorf("orders = %+v", got[0])
			}
			if got[1].Status != StatusFailed || got[1].Error != "WriteError: boom" || got[1].CompletedAt == nil {
				t.Errorf("items = %+v", got[1])
			}

			byName, err := JobsByName(b, "run1")
			if err != nil || byName["orders"].Status != StatusSuccess || byName["items"].Status != StatusFailed {
				t.Errorf("JobsByName() = %v, %v", byName, err)
			}

			last, err := b.LastIncompleteRun()
			if err != nil || last == nil || last.ID != "run1" || last.Status != StatusFailed {
				t.Fatalf("LastIncompleteRun() = %+v, %v", last, err)
			}
			if last.ConfigHash != "abc" || last.Mode != "sequential" {
				t.Errorf("run fields not kept: %+v", last)
			}

			if err := b.MarkRunResumed("run1"); err != nil {
				t.Fatal(err)
			}
			r, err := b.GetRun("run1")
			if err != nil || r == nil || r.Status != StatusRunning || r.CompletedAt != nil {
				t.Errorf("GetRun() after resume = %+v, %v", r, err)
			}

			// Re-registering keeps progress.
			if err := b.RegisterJobs("run1", jobs); err != nil {
				t.Fatal(err)
			}
			if byName, _ := JobsByName(b, "run1"); byName["orders"].Status != StatusSuccess || byName["orders"].Rows != 5 {
				t.Error("RegisterJobs() reset a finished job")
			}

			if err := b.CompleteRun("run1", StatusSuccess, ""); err != nil {
				t.Fatal(err)
			}
			if r, _ := b.LastIncompleteRun(); r != nil {
				t.Errorf("successful run reported as incomplete: %+v", r)
			}

			runs, err := b.Runs(10)
			if err != nil || len(runs) != 1 {
				t.Errorf("Runs() = %v, %v", runs, err)
			}
		})
	}
}

func TestStartJobKeepsCommittedProgress(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.CreateRun(Run{ID: "r", Mode: "parallel"}); err != nil {
				t.Fatal(err)
			}
			if err := b.RegisterJobs("r", []Job{{Name: "a", Source: "A", Destination: "A"}}); err != nil {
				t.Fatal(err)
			}
			if err := b.SaveProgress("r", "a", "STREAMING", 3, 30); err != nil {
				t.Fatal(err)
			}
			if err := b.StartJob("r", "a"); err != nil {
				t.Fatal(err)
			}
			jobs, _ := b.Jobs("r")
			if jobs[0].Rows != 30 || jobs[0].Chunks != 3 || jobs[0].Status != StatusRunning || jobs[0].StartedAt == nil {
				t.Errorf("after StartJob: %+v", jobs[0])
			}
		})
	}
}

func TestMarkRunResumedResetsRunningJobs(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.CreateRun(Run{ID: "r", Mode: "sequential"}); err != nil {
				t.Fatal(err)
			}
			if err := b.RegisterJobs("r", []Job{{Name: "a", Source: "A", Destination: "A"}}); err != nil {
				t.Fatal(err)
			}
			if err := b.StartJob("r", "a"); err != nil {
				t.Fatal(err)
			}
			if err := b.MarkRunResumed("r"); err != nil {
				t.Fatal(err)
			}
			jobs, _ := b.Jobs("r")
			if jobs[0].Status != StatusPending {
				t.Errorf("status = %s, want pending", jobs[0].Status)
			}
		})
	}
}

func TestRunsNewestFirst(t *testing.T) {
	state, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	for _, id := range []string{"first", "second", "third"} {
		if err := state.CreateRun(Run{ID: id, Mode: "sequential"}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := state.Runs(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Errorf("Runs(2) = %+v", runs)
	}
	if r, _ := state.GetRun("missing"); r != nil {
		t.Errorf("GetRun(missing) = %+v", r)
	}
}

func TestStateErrorsAreClassified(t *testing.T) {
	state, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	state.Close()

	if err := state.CreateRun(Run{ID: "x", Mode: "sequential"}); !errors.Is(err, errs.State) {
		t.Errorf("CreateRun() on closed store = %v, want StateError", err)
	}
}

func TestConfigHashAndRunID(t *testing.T) {
	type cfg struct{ A, B string }
	h1 := ConfigHash(cfg{"x", "y"})
	h2 := ConfigHash(cfg{"x", "y"})
	h3 := ConfigHash(cfg{"x", "z"})
	if h1 != h2 || h1 == h3 || len(h1) != 16 {
		t.Errorf("ConfigHash() = %s, %s, %s", h1, h2, h3)
	}
	if ConfigHash(make(chan int)) != "" {
		t.Error("unmarshalable config should hash to empty")
	}

	if id := NewRunID(); len(id) != 8 || id == NewRunID() {
		t.Errorf("NewRunID() = %q", id)
	}
}
