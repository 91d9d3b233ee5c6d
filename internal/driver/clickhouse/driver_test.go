package clickhouse

import (
	"strings"
	"testing"

	"github.com/johndauphine/table-transfer/internal/config"
)

func TestDriverOpen(t *testing.T) {
	d := &Driver{}

	if _, _, err := d.Open(&config.Connection{Host: "ch", Port: 9000}); err == nil {
		t.Error("Open() without dsn should defer to OpenDB")
	}
	name, dsn, err := d.Open(&config.Connection{DSN: "clickhouse://ch:9000/default"})
	if err != nil || name != "clickhouse" || dsn != "clickhouse://ch:9000/default" {
		t.Errorf("Open() = %q, %q, %v", name, dsn, err)
	}
}

func TestOpenDB(t *testing.T) {
	d := &Driver{}

	db, err := d.OpenDB(&config.Connection{
		Host:     "ch",
		Port:     9000,
		Database: "analytics",
		Options:  map[string]string{"max_execution_time": "60"},
	})
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	db.Close()

	if _, err := d.OpenDB(&config.Connection{DSN: "://missing-scheme"}); err == nil {
		t.Error("OpenDB() accepted an invalid dsn")
	}
}

func TestDialect(t *testing.T) {
	d := &Dialect{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"fold", d.Fold("Events"), "Events"},
		{"quote", d.QuoteIdentifier("a`b"), "`a``b`"},
		{"count", d.CountQuery("SELECT 1;"), "SELECT toInt64(count()) FROM (SELECT 1) AS src"},
		{"create", d.CreateTableSQL("`t`", []string{"`a`"}), "CREATE TABLE `t` (`a` Nullable(String)) ENGINE = MergeTree ORDER BY tuple()"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	q, args := d.TableExistsQuery("", "events")
	if !strings.Contains(q, "currentDatabase()") || len(args) != 1 {
		t.Errorf("TableExistsQuery() = %q %v", q, args)
	}
}
