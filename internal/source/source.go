// Package source reads from the source database: it resolves the column
// manifest of a table or query and streams its rows in fixed-size chunks.
package source

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
)

// Source is either a bare table name or arbitrary query text.
type Source struct {
	Table string
	Query string
}

// Table returns a Source reading every column of a table.
func Table(name string) Source {
	return Source{Table: name}
}

// Query returns a Source reading the result of a SELECT.
func Query(sql string) Source {
	return Source{Query: sql}
}

// Label is a short description for logs and errors.
func (s Source) Label() string {
	if s.Table != "" {
		return s.Table
	}
	q := strings.Join(strings.Fields(s.Query), " ")
	if len(q) > 60 {
		q = q[:57] + "..."
	}
	return "(" + q + ")"
}

// SQL returns the statement to execute. Table names are validated and
// quoted; query text is used as given, minus a trailing semicolon.
func (s Source) SQL(d driver.Dialect) (string, error) {
	switch {
	case s.Table != "" && s.Query != "":
		return "", errs.New(errs.KindConfig, "source", s.Table, fmt.Errorf("table and query are mutually exclusive"))
	case s.Table != "":
		tn, err := driver.ParseTableName(d, s.Table)
		if err != nil {
			return "", err
		}
		return "SELECT * FROM " + driver.QuoteTable(d, tn), nil
	default:
		q := driver.TrimQuery(s.Query)
		if q == "" {
			return "", errs.New(errs.KindSchema, "source", "", fmt.Errorf("empty query"))
		}
		return q, nil
	}
}

// Manifest is the ordered list of column names a source produces.
type Manifest struct {
	Columns []string
}

// NewManifest copies cols into a Manifest.
func NewManifest(cols ...string) Manifest {
	return Manifest{Columns: append([]string(nil), cols...)}
}

// Len returns the number of columns.
func (m Manifest) Len() int {
	return len(m.Columns)
}

// Index returns the position of name, or -1. An exact match wins; otherwise
// the first case-insensitive match is used, since databases fold unquoted
// names differently.
func (m Manifest) Index(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	for i, c := range m.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Validate checks the manifest is non-empty, unique and made of valid
// identifiers.
func (m Manifest) Validate() error {
	if len(m.Columns) == 0 {
		return errs.Newf(errs.KindSchema, "introspect", "", "source returned no columns")
	}
	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if err := driver.ValidateIdentifier(c); err != nil {
			return err
		}
		key := strings.ToUpper(c)
		if seen[key] {
			return errs.Newf(errs.KindSchema, "introspect", c, "duplicate column name")
		}
		seen[key] = true
	}
	return nil
}

// Chunk is one batch of rows in source order. Every row has exactly as
// many values as the manifest has columns; nil is NULL. A chunk with a
// non-nil Err ends the stream.
type Chunk struct {
	Seq  int
	Rows [][]any
	Err  error
}

// Len returns the number of rows.
func (c Chunk) Len() int {
	return len(c.Rows)
}
