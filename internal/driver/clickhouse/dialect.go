package clickhouse

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/driver"
)

// Dialect implements driver.Dialect for ClickHouse.
type Dialect struct{}

func (d *Dialect) DBType() string { return "clickhouse" }

// Fold leaves names unchanged; ClickHouse identifiers are case-sensitive.
func (d *Dialect) Fold(name string) string { return name }

func (d *Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Dialect) Placeholder(int) string { return "?" }

func (d *Dialect) SampleQuery(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS head LIMIT 1", driver.TrimQuery(query))
}

func (d *Dialect) CountQuery(query string) string {
	return fmt.Sprintf("SELECT toInt64(count()) FROM (%s) AS src", driver.TrimQuery(query))
}

func (d *Dialect) TableExistsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return "SELECT toInt64(count()) FROM system.tables WHERE database = currentDatabase() AND name = ?", []any{table}
	}
	return "SELECT toInt64(count()) FROM system.tables WHERE database = ? AND name = ?", []any{schema, table}
}

func (d *Dialect) CreateTableSQL(table string, columns []string) string {
	return driver.CreateTableDDL(table, columns, "Nullable(String)", "ENGINE = MergeTree ORDER BY tuple()")
}
