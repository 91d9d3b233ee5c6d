package mysql

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/johndauphine/table-transfer/internal/config"
)

func TestDriverOpen(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Connection
		wantErr  bool
		wantAddr string
		wantDB   string
	}{
		{
			name:     "fields",
			cfg:      config.Connection{Host: "db", Port: 3306, Database: "shop", User: "etl", Password: "p@ss", Options: map[string]string{"charset": "utf8mb4"}},
			wantAddr: "db:3306",
			wantDB:   "shop",
		},
		{
			name:     "raw dsn",
			cfg:      config.Connection{DSN: "etl:secret@tcp(other:3307)/inventory"},
			wantAddr: "other:3307",
			wantDB:   "inventory",
		},
		{
			name:    "malformed dsn",
			cfg:     config.Connection{DSN: "not a dsn"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, dsn, err := (&Driver{}).Open(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if name != "mysql" {
				t.Errorf("driver name = %q", name)
			}
			parsed, err := mysql.ParseDSN(dsn)
			if err != nil {
				t.Fatalf("Open() dsn %q does not parse: %v", dsn, err)
			}
			if parsed.Addr != tt.wantAddr || parsed.DBName != tt.wantDB {
				t.Errorf("addr, db = %q, %q", parsed.Addr, parsed.DBName)
			}
			if tt.cfg.Password != "" && parsed.Passwd != tt.cfg.Password {
				t.Errorf("password = %q", parsed.Passwd)
			}
			for k, v := range tt.cfg.Options {
				if parsed.Params[k] != v {
					t.Errorf("param %s = %q, want %q", k, parsed.Params[k], v)
				}
			}
		})
	}
}

func TestDialect(t *testing.T) {
	d := &Dialect{}

	if got := d.QuoteIdentifier("odd`name"); got != "`odd``name`" {
		t.Errorf("QuoteIdentifier() = %q", got)
	}
	if got := d.Placeholder(5); got != "?" {
		t.Errorf("Placeholder() = %q", got)
	}
	if got := d.SampleQuery("SELECT 1;"); got != "SELECT * FROM (SELECT 1) AS head LIMIT 1" {
		t.Errorf("SampleQuery() = %q", got)
	}
	q, args := d.TableExistsQuery("", "orders")
	if !strings.Contains(q, "DATABASE()") || len(args) != 1 {
		t.Errorf("TableExistsQuery() = %q %v", q, args)
	}
}
