package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
	_ "github.com/johndauphine/table-transfer/internal/driver/sqlite"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/progress"
	"github.com/johndauphine/table-transfer/internal/reference"
	"github.com/johndauphine/table-transfer/internal/source"
	"github.com/johndauphine/table-transfer/internal/transform"
)

func openSQLite(t *testing.T, role string, stmts ...string) *driver.Conn {
	t.Helper()
	cfg := &config.Connection{Type: "sqlite", Database: filepath.Join(t.TempDir(), role+".db")}
	conn, err := driver.Open(context.Background(), role, cfg)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", role, err)
	}
	t.Cleanup(func() { conn.Close() })
	for _, s := range stmts {
		if _, err := conn.DB().Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return conn
}

func seedT(n int) []string {
	stmts := []string{"CREATE TABLE t (id TEXT, val TEXT)"}
	for i := 1; i <= n; i++ {
		stmts = append(stmts, fmt.Sprintf("INSERT INTO t VALUES ('%d', 'v%d')", i, i))
	}
	return stmts
}

func destRows(t *testing.T, conn *driver.Conn, query string) [][]sql.NullString {
	t.Helper()
	rows, err := conn.DB().Query(query)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()
	cols, _ := rows.Columns()

	var out [][]sql.NullString
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, vals)
	}
	return out
}

func countRows(t *testing.T, conn *driver.Conn, table string) int64 {
	t.Helper()
	var n int64
	if err := conn.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestRunCopiesQueryInChunks(t *testing.T) {
	src := openSQLite(t, "source", seedT(3)...)
	dst := openSQLite(t, "target")
	rec := &progress.Recorder{}

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 2, ReadAhead: 1}, Sink: rec, RunID: "run1"}
	res := r.Run(context.Background(), Job{
		Name:        "t",
		Source:      source.Query("SELECT id, val FROM t ORDER BY id"),
		Destination: "dest",
	})

	if !res.OK() {
		t.Fatalf("Run() failed in %s: %v", res.FailedIn, res.Err)
	}
	if !res.Created {
		t.Error("Created = false, want true")
	}
	if res.Rows != 3 || res.Chunks != 2 {
		t.Errorf("Rows, Chunks = %d, %d, want 3, 2", res.Rows, res.Chunks)
	}

	written := rec.OfType(progress.ChunkWritten)
	if len(written) != 2 {
		t.Fatalf("got %d chunk events, want 2", len(written))
	}
	wantRows := []int64{2, 1}
	for i, e := range written {
		if e.Chunk != i+1 || e.Rows != wantRows[i] || e.RunID != "run1" {
			t.Errorf("chunk event %d = %+v", i, e)
		}
	}
	if written[1].Total != 3 {
		t.Errorf("final total = %d, want 3", written[1].Total)
	}
	if got := rec.OfType(progress.JobCompleted); len(got) != 1 || got[0].Total != 3 {
		t.Errorf("completed events = %+v", got)
	}

	got := destRows(t, dst, "SELECT id, val FROM dest ORDER BY id")
	if len(got) != 3 || got[2][0].String != "3" || got[2][1].String != "v3" {
		t.Errorf("dest rows = %v", got)
	}
}

func TestRunRowSetIndependentOfBatchSize(t *testing.T) {
	const n = 25
	const ordered = "SELECT id, val FROM %s ORDER BY CAST(id AS INTEGER)"
	for _, batch := range []int{1, 7, 10000} {
		t.Run(fmt.Sprintf("batch=%d", batch), func(t *testing.T) {
			src := openSQLite(t, "source", seedT(n)...)
			dst := openSQLite(t, "target")

			r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: batch, ReadAhead: 2}}
			res := r.Run(context.Background(), Job{Name: "t", Source: source.Table("t"), Destination: "copy"})
			if !res.OK() {
				t.Fatalf("Run() error = %v", res.Err)
			}

			wantChunks := (n + batch - 1) / batch
			if res.Chunks != wantChunks {
				t.Errorf("Chunks = %d, want %d", res.Chunks, wantChunks)
			}
			if res.Rows != n {
				t.Errorf("Rows = %d, want %d", res.Rows, n)
			}

			want := destRows(t, src, fmt.Sprintf(ordered, "t"))
			got := destRows(t, dst, fmt.Sprintf(ordered, "copy"))
			if len(got) != len(want) {
				t.Fatalf("dest has %d rows, source has %d", len(got), len(want))
			}
			for i := range want {
				for j := range want[i] {
					if got[i][j] != want[i][j] {
						t.Errorf("row %d col %d = %+v, want %+v", i, j, got[i][j], want[i][j])
					}
				}
			}
		})
	}
}

func TestRunAppendsToExistingTable(t *testing.T) {
	src := openSQLite(t, "source", seedT(2)...)
	dst := openSQLite(t, "target",
		"CREATE TABLE dest (id TEXT, val TEXT)",
		"INSERT INTO dest VALUES ('0', 'old')",
	)

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 10}}
	res := r.Run(context.Background(), Job{Name: "t", Source: source.Table("t"), Destination: "dest"})
	if !res.OK() {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Created {
		t.Error("Created = true for an existing table")
	}
	if got := countRows(t, dst, "dest"); got != 3 {
		t.Errorf("dest count = %d, want 3", got)
	}
}

func TestRunCancelStopsBetweenChunks(t *testing.T) {
	src := openSQLite(t, "source", seedT(10)...)
	dst := openSQLite(t, "target")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	written := 0
	sink := progress.SinkFunc(func(e progress.Event) {
		if e.Type == progress.ChunkWritten {
			written++
			if written == 2 {
				cancel()
			}
		}
	})

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 2, ReadAhead: 1}, Sink: sink}
	res := r.Run(ctx, Job{Name: "t", Source: source.Query("SELECT id, val FROM t ORDER BY id"), Destination: "dest"})

	if res.OK() {
		t.Fatal("Run() succeeded after cancel")
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
	if res.FailedIn != StateStreaming {
		t.Errorf("FailedIn = %s, want %s", res.FailedIn, StateStreaming)
	}
	if got := countRows(t, dst, "dest"); got != 4 || res.Rows != 4 {
		t.Errorf("dest count = %d, Rows = %d, want 4 (two whole chunks)", got, res.Rows)
	}
}

func TestRunWriteFailureKeepsCommittedChunks(t *testing.T) {
	src := openSQLite(t, "source", seedT(5)...)
	dst := openSQLite(t, "target", "CREATE TABLE dest (id TEXT, val TEXT CHECK (val <> 'v3'))")
	rec := &progress.Recorder{}

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 2}, Sink: rec}
	res := r.Run(context.Background(), Job{Name: "t", Source: source.Query("SELECT id, val FROM t ORDER BY id"), Destination: "dest"})

	if res.OK() {
		t.Fatal("Run() succeeded despite constraint violation")
	}
	if !errors.Is(res.Err, errs.Write) {
		t.Errorf("Err = %v, want write error", res.Err)
	}
	if res.State != StateFailed || res.FailedIn != StateStreaming {
		t.Errorf("State, FailedIn = %s, %s", res.State, res.FailedIn)
	}
	if got := countRows(t, dst, "dest"); got != 2 {
		t.Errorf("dest count = %d, want 2 (first chunk only)", got)
	}
	failed := rec.OfType(progress.JobFailed)
	if len(failed) != 1 || failed[0].Total != 2 || failed[0].Error == "" {
		t.Errorf("failed events = %+v", failed)
	}
}

func TestRunSchemaFailure(t *testing.T) {
	src := openSQLite(t, "source")
	dst := openSQLite(t, "target")

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 2}}
	res := r.Run(context.Background(), Job{Name: "t", Source: source.Query("SELECT * FROM missing"), Destination: "dest"})

	if !errors.Is(res.Err, errs.Schema) {
		t.Errorf("Err = %v, want schema error", res.Err)
	}
	if res.FailedIn != StateInit {
		t.Errorf("FailedIn = %s, want %s", res.FailedIn, StateInit)
	}
	var n int
	dst.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'dest'").Scan(&n)
	if n != 0 {
		t.Error("destination table created after schema failure")
	}
}

func TestRunOuterJoin(t *testing.T) {
	src := openSQLite(t, "source", seedT(3)...)
	dst := openSQLite(t, "target")
	ref, err := reference.New("codes.csv", []string{"code", "name"}, [][]any{
		{"2", "two"},
		{"4", "four"},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := &Runner{Source: src, Target: dst, Reference: ref, Options: Options{BatchSize: 1}}
	res := r.Run(context.Background(), Job{
		Name:        "t",
		Source:      source.Query("SELECT id, val FROM t ORDER BY id"),
		Destination: "joined",
		Join: &transform.Spec{
			SourceKey:        "id",
			ReferenceKey:     "code",
			Mode:             transform.Outer,
			IncludeReference: true,
		},
	})
	if !res.OK() {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Rows != 4 || res.Chunks != 4 {
		t.Errorf("Rows, Chunks = %d, %d, want 4, 4", res.Rows, res.Chunks)
	}

	got := destRows(t, dst, "SELECT id, val, name FROM joined ORDER BY id")
	want := [][]sql.NullString{
		{{String: "1", Valid: true}, {String: "v1", Valid: true}, {}},
		{{String: "2", Valid: true}, {String: "v2", Valid: true}, {String: "two", Valid: true}},
		{{String: "3", Valid: true}, {String: "v3", Valid: true}, {}},
		{{String: "4", Valid: true}, {}, {String: "four", Valid: true}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %+v, want %+v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestRunJoinWithoutReference(t *testing.T) {
	src := openSQLite(t, "source", seedT(1)...)
	dst := openSQLite(t, "target")

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 1}}
	res := r.Run(context.Background(), Job{
		Name:        "t",
		Source:      source.Table("t"),
		Destination: "joined",
		Join:        &transform.Spec{SourceKey: "id", ReferenceKey: "code", Mode: transform.Inner},
	})
	if !errors.Is(res.Err, errs.Config) {
		t.Errorf("Err = %v, want config error", res.Err)
	}
}

func TestRunResumeDropsCommittedRows(t *testing.T) {
	src := openSQLite(t, "source", seedT(7)...)
	dst := openSQLite(t, "target",
		"CREATE TABLE dest (id TEXT, val TEXT)",
		"INSERT INTO dest VALUES ('1', 'v1')",
		"INSERT INTO dest VALUES ('2', 'v2')",
		"INSERT INTO dest VALUES ('3', 'v3')",
	)
	rec := &progress.Recorder{}

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 2}, Sink: rec}
	res := r.Run(context.Background(), Job{
		Name:        "t",
		Source:      source.Query("SELECT id, val FROM t ORDER BY CAST(id AS INTEGER)"),
		Destination: "dest",
		Resume:      Resume{Chunks: 1, Rows: 3},
	})
	if !res.OK() {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Rows != 7 || res.Resumed != 3 || res.Chunks != 4 {
		t.Errorf("Rows, Resumed, Chunks = %d, %d, %d, want 7, 3, 4", res.Rows, res.Resumed, res.Chunks)
	}

	got := destRows(t, dst, "SELECT id FROM dest ORDER BY CAST(id AS INTEGER)")
	if len(got) != 7 {
		t.Fatalf("dest rows = %v, want 7", got)
	}
	for i, row := range got {
		if want := fmt.Sprint(i + 1); row[0].String != want {
			t.Errorf("row %d id = %q, want %q", i, row[0].String, want)
		}
	}

	written := rec.OfType(progress.ChunkWritten)
	if len(written) != 3 || written[0].Rows != 1 || written[0].Total != 4 || written[2].Total != 7 {
		t.Errorf("chunk events = %+v", written)
	}
}

func TestRunResumeBeyondSourceFails(t *testing.T) {
	src := openSQLite(t, "source", seedT(3)...)
	dst := openSQLite(t, "target")

	r := &Runner{Source: src, Target: dst, Options: Options{BatchSize: 2}}
	res := r.Run(context.Background(), Job{
		Name:        "t",
		Source:      source.Table("t"),
		Destination: "dest",
		Resume:      Resume{Chunks: 3, Rows: 5},
	})
	if !errors.Is(res.Err, errs.State) {
		t.Errorf("Err = %v, want state error", res.Err)
	}
	if got := countRows(t, dst, "dest"); got != 0 {
		t.Errorf("dest count = %d, want 0", got)
	}
}
