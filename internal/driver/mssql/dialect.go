package mssql

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/driver"
)

// Dialect implements driver.Dialect for SQL Server.
type Dialect struct{}

func (d *Dialect) DBType() string { return "mssql" }

// Fold leaves names unchanged; SQL Server identifiers follow the
// database collation, which is case-insensitive by default.
func (d *Dialect) Fold(name string) string { return name }

func (d *Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

func (d *Dialect) SampleQuery(query string) string {
	return fmt.Sprintf("SELECT TOP 1 * FROM (%s) AS head", driver.TrimQuery(query))
}

func (d *Dialect) CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT_BIG(*) FROM (%s) AS src", driver.TrimQuery(query))
}

func (d *Dialect) TableExistsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1`, []any{table}
	}
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`, []any{schema, table}
}

func (d *Dialect) CreateTableSQL(table string, columns []string) string {
	return driver.CreateTableDDL(table, columns, "NVARCHAR(4000)", "")
}
