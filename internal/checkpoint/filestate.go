package checkpoint

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/table-transfer/internal/errs"
	"gopkg.in/yaml.v3"
)

// FileState keeps the latest run in a single YAML file. It suits
// schedulers and containers where a SQLite file is impractical; history
// is limited to one run.
type FileState struct {
	path  string
	mu    sync.RWMutex
	state *fileStateData
}

type fileStateData struct {
	RunID       string     `yaml:"run_id"`
	StartedAt   time.Time  `yaml:"started_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	Status      string     `yaml:"status"`
	Mode        string     `yaml:"mode"`
	Error       string     `yaml:"error,omitempty"`
	ConfigHash  string     `yaml:"config_hash,omitempty"`
	Jobs        []jobState `yaml:"jobs"`
}

type jobState struct {
	Name        string     `yaml:"name"`
	Source      string     `yaml:"source"`
	Destination string     `yaml:"destination"`
	Status      string     `yaml:"status"`
	State       string     `yaml:"state,omitempty"`
	Chunks      int        `yaml:"chunks,omitempty"`
	Rows        int64      `yaml:"rows,omitempty"`
	StartedAt   *time.Time `yaml:"started_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	Error       string     `yaml:"error,omitempty"`
}

// NewFileState opens a state file, loading it if it exists.
func NewFileState(path string) (*FileState, error) {
	fs := &FileState{path: path, state: &fileStateData{}}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errs.New(errs.KindState, "open", path, fmt.Errorf("reading state file: %w", err))
	default:
		if err := yaml.Unmarshal(data, fs.state); err != nil {
			return nil, errs.New(errs.KindState, "open", path, fmt.Errorf("parsing state file: %w", err))
		}
	}
	return fs, nil
}

// save must be called with mu held.
func (fs *FileState) save() error {
	data, err := yaml.Marshal(fs.state)
	if err != nil {
		return errs.New(errs.KindState, "save", fs.path, err)
	}
	if err := os.WriteFile(fs.path, data, 0600); err != nil {
		return errs.New(errs.KindState, "save", fs.path, err)
	}
	return nil
}

func (fs *FileState) run() *Run {
	return &Run{
		ID:          fs.state.RunID,
		StartedAt:   fs.state.StartedAt,
		CompletedAt: fs.state.CompletedAt,
		Status:      fs.state.Status,
		Mode:        fs.state.Mode,
		ConfigHash:  fs.state.ConfigHash,
		Error:       fs.state.Error,
	}
}

// job returns the named job of the current run, or nil. mu must be held.
func (fs *FileState) job(runID, name string) *jobState {
	if fs.state.RunID != runID {
		return nil
	}
	for i := range fs.state.Jobs {
		if fs.state.Jobs[i].Name == name {
			return &fs.state.Jobs[i]
		}
	}
	return nil
}

// CreateRun replaces the stored run.
func (fs *FileState) CreateRun(r Run) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.state = &fileStateData{
		RunID:      r.ID,
		StartedAt:  time.Now().UTC(),
		Status:     StatusRunning,
		Mode:       r.Mode,
		ConfigHash: r.ConfigHash,
	}
	return fs.save()
}

// CompleteRun sets the final status of the stored run.
func (fs *FileState) CompleteRun(id, status, errorMsg string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.state.RunID != id {
		return errs.Newf(errs.KindState, "complete run", id, "run ID mismatch: state file holds %s", fs.state.RunID)
	}
	t := time.Now().UTC()
	fs.state.Status = status
	fs.state.CompletedAt = &t
	fs.state.Error = errorMsg
	return fs.save()
}

// GetRun returns the stored run if it has the given ID.
func (fs *FileState) GetRun(id string) (*Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.state.RunID == "" || fs.state.RunID != id {
		return nil, nil
	}
	return fs.run(), nil
}

// LastIncompleteRun returns the stored run unless it succeeded.
func (fs *FileState) LastIncompleteRun() (*Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.state.RunID == "" || fs.state.Status == StatusSuccess {
		return nil, nil
	}
	return fs.run(), nil
}

// MarkRunResumed reopens the stored run.
func (fs *FileState) MarkRunResumed(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.state.RunID != id {
		return errs.Newf(errs.KindState, "resume run", id, "run ID mismatch: state file holds %s", fs.state.RunID)
	}
	fs.state.Status = StatusRunning
	fs.state.CompletedAt = nil
	fs.state.Error = ""
	for i := range fs.state.Jobs {
		if fs.state.Jobs[i].Status == StatusRunning {
			fs.state.Jobs[i].Status = StatusPending
			fs.state.Jobs[i].StartedAt = nil
		}
	}
	return fs.save()
}

// Runs returns the stored run, if any.
func (fs *FileState) Runs(int) ([]Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.state.RunID == "" {
		return nil, nil
	}
	return []Run{*fs.run()}, nil
}

// RegisterJobs adds jobs that are not yet known as pending.
func (fs *FileState) RegisterJobs(runID string, jobs []Job) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.state.RunID != runID {
		return errs.Newf(errs.KindState, "register jobs", runID, "run ID mismatch: state file holds %s", fs.state.RunID)
	}
	for _, j := range jobs {
		if fs.job(runID, j.Name) != nil {
			continue
		}
		fs.state.Jobs = append(fs.state.Jobs, jobState{
			Name:        j.Name,
			Source:      j.Source,
			Destination: j.Destination,
			Status:      StatusPending,
		})
	}
	return fs.save()
}

func (fs *FileState) update(op, runID, name string, fn func(*jobState)) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	j := fs.job(runID, name)
	if j == nil {
		return errs.Newf(errs.KindState, op, name, "job not registered in run %s", runID)
	}
	fn(j)
	return fs.save()
}

// StartJob marks a job as running and keeps its committed progress.
func (fs *FileState) StartJob(runID, name string) error {
	return fs.update("start job", runID, name, func(j *jobState) {
		t := time.Now().UTC()
		j.Status, j.State, j.Error = StatusRunning, "", ""
		j.StartedAt, j.CompletedAt = &t, nil
	})
}

// SaveProgress records the committed chunks and rows of a running job.
func (fs *FileState) SaveProgress(runID, name, state string, chunks int, rows int64) error {
	return fs.update("save progress", runID, name, func(j *jobState) {
		j.State, j.Chunks, j.Rows = state, chunks, rows
	})
}

// FinishJob records the outcome of a job.
func (fs *FileState) FinishJob(runID, name, status, state string, rows int64, errorMsg string) error {
	return fs.update("finish job", runID, name, func(j *jobState) {
		t := time.Now().UTC()
		j.Status, j.State, j.Rows, j.Error = status, state, rows, errorMsg
		j.CompletedAt = &t
	})
}

// Jobs returns the jobs of the stored run.
func (fs *FileState) Jobs(runID string) ([]Job, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.state.RunID != runID {
		return nil, nil
	}
	out := make([]Job, 0, len(fs.state.Jobs))
	for _, j := range fs.state.Jobs {
		out = append(out, Job{
			RunID:       runID,
			Name:        j.Name,
			Source:      j.Source,
			Destination: j.Destination,
			Status:      j.Status,
			State:       j.State,
			Chunks:      j.Chunks,
			Rows:        j.Rows,
			StartedAt:   j.StartedAt,
			CompletedAt: j.CompletedAt,
			Error:       j.Error,
		})
	}
	return out, nil
}

// Close is a no-op; every change is saved immediately.
func (fs *FileState) Close() error {
	return nil
}

// Path returns the state file path.
func (fs *FileState) Path() string {
	return fs.path
}
