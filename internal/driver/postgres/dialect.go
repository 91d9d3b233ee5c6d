package postgres

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/lib/pq"
)

// Dialect implements driver.Dialect for PostgreSQL.
type Dialect struct{}

func (d *Dialect) DBType() string { return "postgres" }

// Fold lower-cases names, matching PostgreSQL's folding of unquoted identifiers.
func (d *Dialect) Fold(name string) string { return strings.ToLower(name) }

func (d *Dialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *Dialect) SampleQuery(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS head LIMIT 1", driver.TrimQuery(query))
}

func (d *Dialect) CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS src", driver.TrimQuery(query))
}

func (d *Dialect) TableExistsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1`, []any{table}
	}
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2`, []any{schema, table}
}

func (d *Dialect) CreateTableSQL(table string, columns []string) string {
	return driver.CreateTableDDL(table, columns, "TEXT", "")
}
