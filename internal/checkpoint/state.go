package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johndauphine/table-transfer/internal/errs"
	_ "modernc.org/sqlite"
)

// StateFile is the name of the SQLite database inside the data directory.
const StateFile = "state.db"

// State stores run history in SQLite.
type State struct {
	db *sql.DB
}

// New opens (creating if needed) the state database in dataDir.
func New(dataDir string) (*State, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errs.New(errs.KindState, "open", dataDir, fmt.Errorf("creating data dir: %w", err))
	}

	dbPath := filepath.Join(dataDir, StateFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errs.New(errs.KindState, "open", dbPath, err)
	}
	// Parallel jobs report from several goroutines; SQLite has one writer.
	db.SetMaxOpenConns(1)

	s := &State{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errs.New(errs.KindState, "migrate", dbPath, err)
	}
	return s, nil
}

func (s *State) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		mode TEXT NOT NULL,
		config_hash TEXT,
		config TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		state TEXT,
		chunks INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		started_at TEXT,
		completed_at TEXT,
		error TEXT,
		UNIQUE(run_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_run_status ON jobs(run_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

func stateErr(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	return errs.New(errs.KindState, op, subject, err)
}

// CreateRun records a new run as running.
func (s *State) CreateRun(r Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, status, mode, config_hash, config)
		VALUES (?, ?, 'running', ?, ?, ?)
	`, r.ID, now(), r.Mode, r.ConfigHash, r.Config)
	return stateErr("create run", r.ID, err)
}

// CompleteRun sets the final status of a run.
func (s *State) CompleteRun(id, status, errorMsg string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, completed_at = ?, error = ?
		WHERE id = ?
	`, status, now(), errorMsg, id)
	return stateErr("complete run", id, err)
}

const runColumns = `id, started_at, completed_at, status, mode, config_hash, config, error`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r                        Run
		startedAt                string
		completedAt, hash, c, em sql.NullString
	)
	if err := row.Scan(&r.ID, &startedAt, &completedAt, &r.Status, &r.Mode, &hash, &c, &em); err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		r.CompletedAt = &t
	}
	r.ConfigHash, r.Config, r.Error = hash.String, c.String, em.String
	return &r, nil
}

// GetRun returns a run by ID, or nil if there is none.
func (s *State) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, stateErr("get run", id, err)
}

// LastIncompleteRun returns the most recent run if it did not succeed, or
// nil if the most recent run succeeded or there are none.
func (s *State) LastIncompleteRun() (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`
		SELECT ` + runColumns + ` FROM runs
		ORDER BY started_at DESC, rowid DESC LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, stateErr("last run", "", err)
	}
	if r.Status == StatusSuccess {
		return nil, nil
	}
	return r, nil
}

// MarkRunResumed reopens a run and resets jobs that were left running.
func (s *State) MarkRunResumed(id string) error {
	if _, err := s.db.Exec(`
		UPDATE runs SET status = 'running', completed_at = NULL, error = NULL
		WHERE id = ?
	`, id); err != nil {
		return stateErr("resume run", id, err)
	}
	_, err := s.db.Exec(`
		UPDATE jobs SET status = 'pending', started_at = NULL
		WHERE run_id = ? AND status = 'running'
	`, id)
	return stateErr("resume run", id, err)
}

// Runs returns the most recent runs, newest first.
func (s *State) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, stateErr("list runs", "", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, stateErr("list runs", "", err)
		}
		runs = append(runs, *r)
	}
	return runs, stateErr("list runs", "", rows.Err())
}

// RegisterJobs records the jobs of a run as pending. Jobs that are already
// registered keep their state.
func (s *State) RegisterJobs(runID string, jobs []Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return stateErr("register jobs", runID, err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		if _, err := tx.Exec(`
			INSERT INTO jobs (run_id, name, source, destination, status)
			VALUES (?, ?, ?, ?, 'pending')
			ON CONFLICT(run_id, name) DO NOTHING
		`, runID, j.Name, j.Source, j.Destination); err != nil {
			return stateErr("register jobs", j.Name, err)
		}
	}
	return stateErr("register jobs", runID, tx.Commit())
}

// StartJob marks a job as running. Committed chunks and rows of an
// earlier attempt are kept; a resumed job continues after them.
func (s *State) StartJob(runID, name string) error {
	_, err := s.db.Exec(`
		UPDATE jobs SET status = 'running', state = NULL,
			started_at = ?, completed_at = NULL, error = NULL
		WHERE run_id = ? AND name = ?
	`, now(), runID, name)
	return stateErr("start job", name, err)
}

// SaveProgress records the committed chunks and rows of a running job.
func (s *State) SaveProgress(runID, name, state string, chunks int, rows int64) error {
	_, err := s.db.Exec(`
		UPDATE jobs SET state = ?, chunks = ?, row_count = ?
		WHERE run_id = ? AND name = ?
	`, state, chunks, rows, runID, name)
	return stateErr("save progress", name, err)
}

// FinishJob records the outcome of a job.
func (s *State) FinishJob(runID, name, status, state string, rows int64, errorMsg string) error {
	_, err := s.db.Exec(`
		UPDATE jobs SET status = ?, state = ?, row_count = ?, completed_at = ?, error = ?
		WHERE run_id = ? AND name = ?
	`, status, state, rows, now(), errorMsg, runID, name)
	return stateErr("finish job", name, err)
}

// Jobs returns the jobs of a run in registration order.
func (s *State) Jobs(runID string) ([]Job, error) {
	rows, err := s.db.Query(`
		SELECT run_id, name, source, destination, status, state, chunks, row_count,
			started_at, completed_at, error
		FROM jobs WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, stateErr("list jobs", runID, err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j                          Job
			state, started, done, emsg sql.NullString
		)
		if err := rows.Scan(&j.RunID, &j.Name, &j.Source, &j.Destination, &j.Status, &state,
			&j.Chunks, &j.Rows, &started, &done, &emsg); err != nil {
			return nil, stateErr("list jobs", runID, err)
		}
		j.State, j.Error = state.String, emsg.String
		if started.Valid {
			t := parseTime(started.String)
			j.StartedAt = &t
		}
		if done.Valid {
			t := parseTime(done.String)
			j.CompletedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, stateErr("list jobs", runID, rows.Err())
}
