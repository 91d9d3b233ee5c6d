package oracle

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/driver"
)

// Dialect implements driver.Dialect for Oracle Database. It is shared by
// the godror and go-ora drivers.
type Dialect struct{}

func (d *Dialect) DBType() string { return "oracle" }

// Fold upper-cases names. Oracle folds unquoted identifiers to upper case,
// so quoting the upper-cased form keeps "FOO" and FOO the same object.
func (d *Dialect) Fold(name string) string { return strings.ToUpper(name) }

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) Placeholder(index int) string {
	return fmt.Sprintf(":%d", index)
}

func (d *Dialect) SampleQuery(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= 1", driver.TrimQuery(query))
}

func (d *Dialect) CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s)", driver.TrimQuery(query))
}

func (d *Dialect) TableExistsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return "SELECT COUNT(*) FROM USER_TABLES WHERE TABLE_NAME = :1", []any{table}
	}
	return "SELECT COUNT(*) FROM ALL_TABLES WHERE OWNER = :1 AND TABLE_NAME = :2", []any{schema, table}
}

func (d *Dialect) CreateTableSQL(table string, columns []string) string {
	return driver.CreateTableDDL(table, columns, "VARCHAR2(4000)", "")
}
