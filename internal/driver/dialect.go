package driver

import (
	"fmt"
	"strings"
)

// Dialect abstracts database-specific SQL syntax differences.
// Each database driver provides its own Dialect implementation.
type Dialect interface {
	// DBType returns the database type (e.g., "oracle", "postgres").
	DBType() string

	// Fold applies the database's case folding for unquoted identifiers.
	// Oracle: upper case. PostgreSQL: lower case. Others: unchanged.
	Fold(name string) string

	// QuoteIdentifier quotes an already folded identifier.
	// Oracle/PostgreSQL: "identifier"
	// MSSQL: [identifier]
	// MySQL/ClickHouse: `identifier`
	QuoteIdentifier(name string) string

	// Placeholder returns the bind placeholder for the 1-based index.
	// Oracle: :1, PostgreSQL: $1, MSSQL: @p1, others: ?
	Placeholder(index int) string

	// SampleQuery wraps query so that it returns at most one row.
	SampleQuery(query string) string

	// CountQuery wraps query in a COUNT(*).
	CountQuery(query string) string

	// TableExistsQuery returns a catalog query that yields a single count
	// of tables named table in schema (or the session default when schema
	// is empty). Names are already folded.
	TableExistsQuery(schema, table string) (string, []any)

	// CreateTableSQL returns DDL that creates table with every column as
	// the dialect's permissive text type. Inputs are quoted.
	CreateTableSQL(table string, columns []string) string
}

// TableName is a validated, folded table reference.
type TableName struct {
	Schema string
	Table  string
}

// String returns the folded, unquoted name.
func (t TableName) String() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

// ParseTableName validates name and folds it for d.
func ParseTableName(d Dialect, name string) (TableName, error) {
	schema, table, err := SplitQualified(name)
	if err != nil {
		return TableName{}, err
	}
	if schema != "" {
		schema = d.Fold(schema)
	}
	return TableName{Schema: schema, Table: d.Fold(table)}, nil
}

// QuoteTable returns the quoted, qualified form of t.
func QuoteTable(d Dialect, t TableName) string {
	if t.Schema == "" {
		return d.QuoteIdentifier(t.Table)
	}
	return d.QuoteIdentifier(t.Schema) + "." + d.QuoteIdentifier(t.Table)
}

// QuoteColumns validates, folds and quotes column names. It also returns
// the folded names.
func QuoteColumns(d Dialect, cols []string) (quoted, folded []string, err error) {
	quoted = make([]string, len(cols))
	folded = make([]string, len(cols))
	for i, c := range cols {
		if err := ValidateIdentifier(c); err != nil {
			return nil, nil, err
		}
		folded[i] = d.Fold(c)
		quoted[i] = d.QuoteIdentifier(folded[i])
	}
	return quoted, folded, nil
}

// InsertSQL builds a parameterized INSERT with the dialect's placeholders.
func InsertSQL(d Dialect, table string, quotedCols []string) string {
	ph := make([]string, len(quotedCols))
	for i := range quotedCols {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quotedCols, ", "), strings.Join(ph, ", "))
}

// CreateTableDDL is the shared CREATE TABLE builder used by dialects.
func CreateTableDDL(table string, columns []string, colType, suffix string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c + " " + colType
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if suffix != "" {
		ddl += " " + suffix
	}
	return ddl
}

// TrimQuery removes surrounding whitespace and trailing semicolons, which
// cannot appear inside a subquery.
func TrimQuery(q string) string {
	q = strings.TrimSpace(q)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}
