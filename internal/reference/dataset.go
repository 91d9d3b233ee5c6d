// Package reference loads the external tabular dataset a transfer is joined
// against. The whole file is read eagerly; a Dataset is immutable once built
// and safe for concurrent readers.
package reference

import (
	"strings"
	"sync"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"golang.org/x/text/unicode/norm"
)

// Dataset is an in-memory table with a header row. Cell values are strings,
// or nil for empty cells.
type Dataset struct {
	name    string
	columns []string
	rows    [][]any

	mu      sync.RWMutex
	indexes map[int]map[string][]int
}

// New builds a Dataset from already-parsed data. Rows shorter than the
// header are padded with nil; longer rows are a DataFormatError.
func New(name string, columns []string, rows [][]any) (*Dataset, error) {
	cols := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, errs.Newf(errs.KindDataFormat, "load", name, "empty header in column %d", i+1)
		}
		key := strings.ToUpper(c)
		if seen[key] {
			return nil, errs.Newf(errs.KindDataFormat, "load", name, "duplicate header %q", c)
		}
		seen[key] = true
		cols[i] = c
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.KindDataFormat, "load", name, "no header row")
	}

	data := make([][]any, 0, len(rows))
	for n, r := range rows {
		if len(r) > len(cols) {
			return nil, errs.Newf(errs.KindDataFormat, "load", name,
				"row %d has %d cells, header has %d", n+2, len(r), len(cols))
		}
		row := make([]any, len(cols))
		copy(row, r)
		data = append(data, row)
	}

	return &Dataset{
		name:    name,
		columns: cols,
		rows:    data,
		indexes: make(map[int]map[string][]int),
	}, nil
}

// Name is the file the dataset was loaded from.
func (d *Dataset) Name() string { return d.name }

// Columns returns a copy of the header.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Row returns row i. The slice is shared and must not be modified.
func (d *Dataset) Row(i int) []any { return d.rows[i] }

// ColumnIndex returns the position of a header, matching exactly first and
// then case-insensitively. It returns -1 when absent.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.columns {
		if c == name {
			return i
		}
	}
	for i, c := range d.columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// RequireColumn returns the index of name or a JoinKeyError.
func (d *Dataset) RequireColumn(name string) (int, error) {
	i := d.ColumnIndex(name)
	if i < 0 {
		return -1, errs.Newf(errs.KindJoinKey, "lookup", d.name, "column %q not found in reference data (have %v)", name, d.columns)
	}
	return i, nil
}

// Lookup returns the indexes of the rows whose column col has key, in file
// order. The per-column hash index is built on first use.
func (d *Dataset) Lookup(col int, key string) []int {
	d.mu.RLock()
	idx, ok := d.indexes[col]
	d.mu.RUnlock()

	if !ok {
		d.mu.Lock()
		if idx, ok = d.indexes[col]; !ok {
			idx = make(map[string][]int, len(d.rows))
			for i, row := range d.rows {
				if k, ok := Key(row[col]); ok {
					idx[k] = append(idx[k], i)
				}
			}
			d.indexes[col] = idx
		}
		d.mu.Unlock()
	}
	return idx[key]
}

// Key normalises a join key value to trimmed NFC text. Keys from the
// database and from the file are compared in this form. NULL and blank
// values never match.
func Key(v any) (string, bool) {
	t := driver.TextValue(v)
	var s string
	switch x := t.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return "", false
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	return s, s != ""
}
