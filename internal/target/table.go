// Package target manages destination tables and writes chunks into them.
package target

import (
	"context"
	"fmt"

	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/source"
)

// EnsureTable creates table with one permissive text column per manifest
// column unless it already exists. It reports whether it created the
// table. An existing table is left exactly as it is.
func EnsureTable(ctx context.Context, conn *driver.Conn, table string, m source.Manifest) (bool, error) {
	d := conn.Dialect()
	tn, err := driver.ParseTableName(d, table)
	if err != nil {
		return false, err
	}
	quoted, _, err := driver.QuoteColumns(d, m.Columns)
	if err != nil {
		return false, err
	}
	if len(quoted) == 0 {
		return false, errs.Newf(errs.KindSchema, "ensure table", table, "no columns")
	}

	exists, err := TableExists(ctx, conn, tn)
	if err != nil {
		return false, errs.New(errs.KindSchema, "ensure table", table, err)
	}
	if exists {
		logging.Debug("Table %s already exists", tn)
		return false, nil
	}

	ddl := d.CreateTableSQL(driver.QuoteTable(d, tn), quoted)
	logging.Debug("Creating table: %s", ddl)
	if _, err := conn.DB().ExecContext(ctx, ddl); err != nil {
		// Another writer may have created it between the check and the CREATE.
		if again, cerr := TableExists(ctx, conn, tn); cerr == nil && again {
			logging.Debug("Table %s was created concurrently", tn)
			return false, nil
		}
		return false, errs.New(errs.KindSchema, "create table", table, err)
	}

	logging.Info("Created table %s (%d columns)", tn, len(quoted))
	return true, nil
}

// TableExists looks tn up in the database catalog. tn must already be
// folded for the dialect.
func TableExists(ctx context.Context, conn *driver.Conn, tn driver.TableName) (bool, error) {
	query, args := conn.Dialect().TableExistsQuery(tn.Schema, tn.Table)

	var n int64
	if err := conn.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking table %s: %w", tn, err)
	}
	return n > 0, nil
}

// RowCount returns the number of rows in table.
func RowCount(ctx context.Context, conn *driver.Conn, table string) (int64, error) {
	d := conn.Dialect()
	tn, err := driver.ParseTableName(d, table)
	if err != nil {
		return 0, err
	}

	var n int64
	query := "SELECT COUNT(*) FROM " + driver.QuoteTable(d, tn)
	if err := conn.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, errs.New(errs.KindSchema, "count", table, err)
	}
	return n, nil
}
