package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/johndauphine/table-transfer/internal/errs"
	"gopkg.in/yaml.v3"
)

const baseConfig = `
source:
  type: oracle
  host: src.example.com
  service: ORCLPDB1
  user: scott
  password: tiger
target:
  type: oracle
  host: dst.example.com
  service: ORCLPDB2
  user: scott
  password: tiger
`

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(baseConfig + `
tables:
  CUSTOMERS:
`))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	if cfg.Source.Port != 1521 || cfg.Target.Port != 1521 {
		t.Errorf("expected default oracle port 1521, got %d/%d", cfg.Source.Port, cfg.Target.Port)
	}
	if cfg.Transfer.BatchSize != 50000 {
		t.Errorf("BatchSize = %d, want 50000", cfg.Transfer.BatchSize)
	}
	if cfg.Transfer.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want 4", cfg.Transfer.MaxWorkers)
	}
	if cfg.Transfer.Mode != ModeSequential {
		t.Errorf("Mode = %q, want %q", cfg.Transfer.Mode, ModeSequential)
	}
	if *cfg.Transfer.ReadAhead != 2 || *cfg.Transfer.ReadRetries != 2 {
		t.Errorf("ReadAhead/ReadRetries = %d/%d, want 2/2", *cfg.Transfer.ReadAhead, *cfg.Transfer.ReadRetries)
	}
	if cfg.Transfer.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff = %v, want 1s", cfg.Transfer.RetryBackoff)
	}
	if cfg.Transfer.DataDir != DefaultDataDir() {
		t.Errorf("DataDir = %q, want %q", cfg.Transfer.DataDir, DefaultDataDir())
	}
}

func TestLoadBytesExplicitZeroReadSettings(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantAhead   int
		wantRetries int
	}{
		{"omitted", "", 2, 2},
		{"both zero", "transfer:\n  read_ahead: 0\n  read_retries: 0\n", 0, 0},
		{"retries zero", "transfer:\n  read_retries: 0\n", 2, 0},
		{"ahead set", "transfer:\n  read_ahead: 5\n", 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBytes([]byte(baseConfig + tt.yaml + "tables:\n  CUSTOMERS:\n"))
			if err != nil {
				t.Fatalf("LoadBytes() error = %v", err)
			}
			if *cfg.Transfer.ReadAhead != tt.wantAhead {
				t.Errorf("ReadAhead = %d, want %d", *cfg.Transfer.ReadAhead, tt.wantAhead)
			}
			if *cfg.Transfer.ReadRetries != tt.wantRetries {
				t.Errorf("ReadRetries = %d, want %d", *cfg.Transfer.ReadRetries, tt.wantRetries)
			}
		})
	}
}

func TestDefaultPorts(t *testing.T) {
	tests := []struct {
		typ  string
		want int
	}{
		{"oracle", 1521},
		{"go-ora", 1521},
		{"postgres", 5432},
		{"PG", 5432},
		{"mssql", 1433},
		{"mysql", 3306},
		{"clickhouse", 9000},
		{"sqlite", 0},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			if got := defaultPort(tt.typ); got != tt.want {
				t.Errorf("defaultPort(%q) = %d, want %d", tt.typ, got, tt.want)
			}
		})
	}
}

func TestTableMappingOrder(t *testing.T) {
	cfg, err := LoadBytes([]byte(baseConfig + `
tables:
  ZEBRA: ZEBRA_COPY
  apple:
  MIDDLE: ""
  orders: ORDERS_ARCHIVE
`))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	want := TableMapping{
		{Source: "ZEBRA", Destination: "ZEBRA_COPY"},
		{Source: "apple", Destination: "apple"},
		{Source: "MIDDLE", Destination: "MIDDLE"},
		{Source: "orders", Destination: "ORDERS_ARCHIVE"},
	}
	if len(cfg.Tables) != len(want) {
		t.Fatalf("got %d mappings, want %d", len(cfg.Tables), len(want))
	}
	for i := range want {
		if cfg.Tables[i] != want[i] {
			t.Errorf("Tables[%d] = %+v, want %+v", i, cfg.Tables[i], want[i])
		}
	}
}

func TestTableMappingRejectsDuplicates(t *testing.T) {
	var m TableMapping
	err := yaml.Unmarshal([]byte("A: B\nA: C\n"), &m)
	if err == nil {
		t.Fatal("expected error for duplicate source table")
	}
}

func TestTableMappingRejectsSequence(t *testing.T) {
	var m TableMapping
	if err := yaml.Unmarshal([]byte("- A\n- B\n"), &m); err == nil {
		t.Fatal("expected error for sequence form")
	}
}

func TestTableMappingRoundTrip(t *testing.T) {
	in := TableMapping{{Source: "B", Destination: "B2"}, {Source: "A", Destination: "A"}}
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out TableMapping
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errorMsg string
	}{
		{
			name:     "no jobs",
			yaml:     baseConfig,
			errorMsg: "at least one entry",
		},
		{
			name: "missing source type",
			yaml: `
source: {host: h, service: s}
target: {type: sqlite, database: /tmp/x.db}
tables: {A: }
`,
			errorMsg: "source.type is required",
		},
		{
			name: "sqlite needs a path",
			yaml: `
source: {type: sqlite}
target: {type: sqlite, database: /tmp/x.db}
tables: {A: }
`,
			errorMsg: "source.database (file path) is required",
		},
		{
			name:     "bad mode",
			yaml:     baseConfig + "transfer: {mode: fanout}\ntables: {A: }\n",
			errorMsg: "transfer.mode must be",
		},
		{
			name:     "negative batch size",
			yaml:     baseConfig + "transfer: {batch_size: -5}\ntables: {A: }\n",
			errorMsg: "batch_size must be positive",
		},
		{
			name: "query and table both set",
			yaml: baseConfig + `
jobs:
  - name: both
    table: A
    query: SELECT 1 FROM DUAL
    destination: B
`,
			errorMsg: "exactly one of table or query",
		},
		{
			name: "join without reference",
			yaml: baseConfig + `
jobs:
  - name: merged
    query: SELECT * FROM ORDERS
    destination: ORDERS_MERGED
    join: {source_key: CUST_ID, how: left}
`,
			errorMsg: "join requires a reference.path",
		},
		{
			name: "bad join mode",
			yaml: baseConfig + `
reference: {path: ref.xlsx, key: ID}
jobs:
  - name: merged
    query: SELECT * FROM ORDERS
    destination: ORDERS_MERGED
    join: {source_key: CUST_ID, how: cross}
`,
			errorMsg: "join.how must be",
		},
		{
			name: "join in parallel mode",
			yaml: baseConfig + `
transfer: {mode: parallel}
reference: {path: ref.xlsx, key: ID}
jobs:
  - name: merged
    query: SELECT * FROM ORDERS
    destination: ORDERS_MERGED
    join: {source_key: CUST_ID}
`,
			errorMsg: "only supported in sequential mode",
		},
		{
			name: "duplicate names across tables and jobs",
			yaml: baseConfig + `
tables: {ORDERS: }
jobs:
  - name: orders
    table: X
    destination: Y
`,
			errorMsg: "duplicate job name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
			if !errors.Is(err, errs.Config) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestJoinDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(baseConfig + `
reference: {path: ref.xlsx, key: CUSTOMER_ID}
jobs:
  - query: SELECT * FROM ORDERS;
    destination: ORDERS_MERGED
    join: {source_key: CUST_ID, how: LEFT}
`))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	j := cfg.Jobs[0]
	if j.Name != "ORDERS_MERGED" {
		t.Errorf("Name = %q, want destination as default", j.Name)
	}
	if j.Join.How != "left" {
		t.Errorf("How = %q, want left", j.Join.How)
	}
	if j.Join.ReferenceKey != "CUSTOMER_ID" {
		t.Errorf("ReferenceKey = %q, want CUSTOMER_ID", j.Join.ReferenceKey)
	}
	if !cfg.HasJoins() {
		t.Error("HasJoins() = false")
	}
}

func TestCheckAfterOverride(t *testing.T) {
	cfg, err := LoadBytes([]byte(baseConfig + `
reference: {path: ref.csv, key: ID}
jobs:
  - table: ORDERS
    destination: ORDERS_MERGED
    join: {source_key: ID}
`))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if err := cfg.Check(); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	cfg.Transfer.Mode = ModeParallel
	if err := cfg.Check(); !errors.Is(err, errs.Config) {
		t.Errorf("Check() error = %v, want config error for parallel joins", err)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TT_SRC_PASSWORD", "p@ss:word")

	cfg, err := LoadBytes([]byte(`
source: {type: postgres, host: localhost, database: app, user: u, password: "${TT_SRC_PASSWORD}"}
target: {type: sqlite, database: /tmp/t.db}
tables: {A: }
`))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if cfg.Source.Password != "p@ss:word" {
		t.Errorf("Password = %q", cfg.Source.Password)
	}
}

func TestSanitized(t *testing.T) {
	cfg := &Config{
		Source: Connection{Type: "postgres", Password: "secret", DSN: "postgres://u:secret@h:5432/db"},
		Target: Connection{Type: "oracle", Password: "tiger"},
		Slack:  SlackConfig{WebhookURL: "https://hooks.slack.com/services/x"},
	}

	s := cfg.Sanitized()
	if s.Source.Password != "[REDACTED]" || s.Target.Password != "[REDACTED]" {
		t.Errorf("passwords not redacted: %q %q", s.Source.Password, s.Target.Password)
	}
	if strings.Contains(s.Source.DSN, "secret") {
		t.Errorf("DSN not redacted: %q", s.Source.DSN)
	}
	if s.Slack.WebhookURL != "[REDACTED]" {
		t.Errorf("webhook not redacted: %q", s.Slack.WebhookURL)
	}
	if cfg.Source.Password != "secret" {
		t.Error("Sanitized modified the original")
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot get home directory")
	}

	if got := expandTilde("~/some/path"); got != filepath.Join(home, "some/path") {
		t.Errorf("expandTilde = %q", got)
	}
	if got := expandTilde("/abs/path"); got != "/abs/path" {
		t.Errorf("expandTilde changed absolute path: %q", got)
	}
}

func TestLoadFileWarnsOnPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}

	path := filepath.Join(t.TempDir(), "transfer.yaml")
	body := `
source: {type: sqlite, database: /tmp/a.db}
target: {type: sqlite, database: /tmp/b.db}
tables: {A: }
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	if w := exposedTo(path); !strings.Contains(w, "all users") {
		t.Errorf("exposedTo(0644) = %q, want all users", w)
	}

	if err := os.Chmod(path, 0600); err != nil {
		t.Fatal(err)
	}
	if w := exposedTo(path); w != "" {
		t.Errorf("exposedTo(0600) = %q, want none", w)
	}

	if _, err := LoadWithOptions(path, LoadOptions{SuppressWarnings: true}); err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, errs.Config) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
