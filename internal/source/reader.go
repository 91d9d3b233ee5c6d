package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
)

// Options configures Stream.
type Options struct {
	// BatchSize is the maximum number of rows per chunk. Must be positive.
	BatchSize int
	// ReadAhead is how many chunks may wait in the channel for the consumer.
	ReadAhead int
	// Retry applies to opening the query, before any row is consumed.
	Retry Retry
}

// Stream executes src once and returns a channel that yields its rows in
// chunks of at most BatchSize, in source order, and is closed when the
// source is exhausted. Every chunk except the last has exactly BatchSize
// rows. A read failure is delivered as a final chunk with Err set.
//
// The query is opened before Stream returns, so errors in the statement
// are reported directly. Cancelling ctx stops the reader goroutine.
func Stream(ctx context.Context, conn *driver.Conn, src Source, m Manifest, opts Options) (<-chan Chunk, error) {
	if opts.BatchSize <= 0 {
		return nil, errs.Newf(errs.KindConfig, "stream", src.Label(), "batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.ReadAhead < 0 {
		opts.ReadAhead = 0
	}

	query, err := src.SQL(conn.Dialect())
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	err = opts.Retry.do(ctx, "open "+src.Label(), func(ctx context.Context) error {
		var err error
		rows, err = conn.DB().QueryContext(ctx, query)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyQueryError("open", src.Label(), err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errs.New(errs.KindSchema, "open", src.Label(), err)
	}
	if len(cols) != m.Len() {
		rows.Close()
		return nil, errs.Newf(errs.KindSchema, "open", src.Label(),
			"query returned %d columns, manifest has %d", len(cols), m.Len())
	}

	var normalize func([]any)
	if n, ok := conn.Driver().(driver.RowNormalizer); ok {
		normalize = n.NormalizeRow
	}

	out := make(chan Chunk, opts.ReadAhead)
	go func() {
		defer close(out)
		defer rows.Close()

		seq := 0
		for {
			batch, err := fetch(rows, len(cols), opts.BatchSize, normalize)
			if err != nil {
				select {
				case out <- Chunk{Seq: seq + 1, Err: errs.New(errs.KindConnection, "fetch", src.Label(), err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(batch) == 0 {
				return
			}

			seq++
			logging.Debug("Fetched chunk %d of %s (%d rows)", seq, src.Label(), len(batch))
			select {
			case out <- Chunk{Seq: seq, Rows: batch}:
			case <-ctx.Done():
				return
			}

			if len(batch) < opts.BatchSize {
				return
			}
		}
	}()

	return out, nil
}

// fetch scans up to n rows. Scanning into *any copies []byte values out of
// the driver's buffer.
func fetch(rows *sql.Rows, width, n int, normalize func([]any)) ([][]any, error) {
	batch := make([][]any, 0, min(n, 4096))
	ptrs := make([]any, width)

	for len(batch) < n && rows.Next() {
		row := make([]any, width)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if normalize != nil {
			normalize(row)
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

// Count returns the number of rows src produces.
func Count(ctx context.Context, conn *driver.Conn, src Source) (int64, error) {
	d := conn.Dialect()
	query, err := src.SQL(d)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := conn.DB().QueryRowContext(ctx, d.CountQuery(query)).Scan(&n); err != nil {
		return 0, classifyQueryError("count", src.Label(), err)
	}
	return n, nil
}
