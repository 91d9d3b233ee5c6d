package source

import (
	"context"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
)

// ColumnsOf resolves the column manifest of src by running it wrapped in
// the dialect's one-row sample query and reading the result set's column names.
// No rows are scanned, so sources that return nothing still resolve.
func ColumnsOf(ctx context.Context, conn *driver.Conn, src Source, retry Retry) (Manifest, error) {
	d := conn.Dialect()
	query, err := src.SQL(d)
	if err != nil {
		return Manifest{}, err
	}
	sample := d.SampleQuery(query)

	var cols []string
	err = retry.do(ctx, "introspect "+src.Label(), func(ctx context.Context) error {
		rows, err := conn.DB().QueryContext(ctx, sample)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err = rows.Columns()
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return Manifest{}, ctx.Err()
		}
		return Manifest{}, classifyQueryError("introspect", src.Label(), err)
	}

	m := NewManifest(cols...)
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}

	logging.Debug("Resolved %d columns for %s: %v", m.Len(), src.Label(), m.Columns)
	return m, nil
}

// classifyQueryError maps a failed source query to ConnectionError when
// the session looks broken and SchemaError otherwise.
func classifyQueryError(op, subject string, err error) error {
	if IsTransient(err) {
		return errs.New(errs.KindConnection, op, subject, err)
	}
	return errs.New(errs.KindSchema, op, subject, err)
}
