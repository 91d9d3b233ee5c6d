// Package sqlite provides the SQLite driver implementation on top of the
// pure-Go modernc.org/sqlite. It is used for local files and in tests.
package sqlite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
	_ "modernc.org/sqlite" // registers "sqlite" with database/sql
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for SQLite.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"sqlite3"}
}

// Defaults returns the default configuration values for SQLite.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{}
}

// Dialect returns the SQLite dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open uses the database path as the DSN and adds a busy timeout.
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	if cfg.DSN != "" {
		return "sqlite", cfg.DSN, nil
	}
	if cfg.Database == "" {
		return "", "", fmt.Errorf("sqlite: database path is required")
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	for k, v := range cfg.Options {
		params.Add("_pragma", fmt.Sprintf("%s(%s)", k, v))
	}
	return "sqlite", cfg.Database + "?" + params.Encode(), nil
}

// Dialect implements driver.Dialect for SQLite.
type Dialect struct{}

func (d *Dialect) DBType() string { return "sqlite" }

// Fold leaves names unchanged; SQLite matches identifiers case-insensitively.
func (d *Dialect) Fold(name string) string { return name }

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) Placeholder(int) string { return "?" }

func (d *Dialect) SampleQuery(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS head LIMIT 1", driver.TrimQuery(query))
}

func (d *Dialect) CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS src", driver.TrimQuery(query))
}

func (d *Dialect) TableExistsQuery(schema, table string) (string, []any) {
	master := "sqlite_master"
	if schema != "" {
		master = d.QuoteIdentifier(schema) + ".sqlite_master"
	}
	return "SELECT COUNT(*) FROM " + master + " WHERE type = 'table' AND name = ? COLLATE NOCASE", []any{table}
}

func (d *Dialect) CreateTableSQL(table string, columns []string) string {
	return driver.CreateTableDDL(table, columns, "TEXT", "")
}
