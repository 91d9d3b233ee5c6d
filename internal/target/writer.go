package target

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/source"
)

// Writer inserts chunks into one destination table. The INSERT statement
// is built once, when the Writer is created.
type Writer struct {
	conn *driver.Conn
	stmt driver.Statement
	bulk driver.BulkInserter
}

// NewWriter validates the table and column names and prepares the
// statement text.
func NewWriter(conn *driver.Conn, table string, m source.Manifest) (*Writer, error) {
	d := conn.Dialect()
	tn, err := driver.ParseTableName(d, table)
	if err != nil {
		return nil, err
	}
	quoted, folded, err := driver.QuoteColumns(d, m.Columns)
	if err != nil {
		return nil, err
	}
	qt := driver.QuoteTable(d, tn)

	w := &Writer{
		conn: conn,
		stmt: driver.Statement{
			Name:    tn,
			Table:   qt,
			Columns: folded,
			SQL:     driver.InsertSQL(d, qt, quoted),
		},
	}
	if b, ok := conn.Driver().(driver.BulkInserter); ok {
		w.bulk = b
	}
	return w, nil
}

// Statement returns the prepared statement description.
func (w *Writer) Statement() driver.Statement {
	return w.stmt
}

// Write inserts every row of chunk in a single transaction and commits.
// It returns the number of rows in the chunk. On failure the transaction
// is rolled back, so the chunk is either fully written or absent.
func (w *Writer) Write(ctx context.Context, chunk source.Chunk) (int, error) {
	if len(chunk.Rows) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(chunk.Rows))
	for i, r := range chunk.Rows {
		if len(r) != len(w.stmt.Columns) {
			return 0, w.fail(chunk.Seq, fmt.Errorf("row %d has %d values, table has %d columns", i, len(r), len(w.stmt.Columns)))
		}
		rows[i] = driver.TextRow(r)
	}

	tx, err := w.conn.BeginTx(ctx)
	if err != nil {
		return 0, w.fail(chunk.Seq, fmt.Errorf("beginning transaction: %w", err))
	}

	if w.bulk != nil {
		err = w.bulk.BulkInsert(ctx, tx, w.stmt, rows)
	} else {
		err = insertRows(ctx, tx, w.stmt.SQL, rows)
	}
	if err != nil {
		tx.Rollback()
		return 0, w.fail(chunk.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, w.fail(chunk.Seq, fmt.Errorf("committing: %w", err))
	}
	return len(rows), nil
}

func (w *Writer) fail(seq int, err error) error {
	return errs.New(errs.KindWrite, fmt.Sprintf("write chunk %d", seq), w.stmt.Name.String(), err)
}

// insertRows executes a prepared INSERT once per row inside tx.
func insertRows(ctx context.Context, tx *sql.Tx, query string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}
	return nil
}
