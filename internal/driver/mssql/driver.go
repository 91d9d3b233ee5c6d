// Package mssql provides the SQL Server driver implementation on top of
// github.com/microsoft/go-mssqldb. Chunks are loaded with TDS bulk copy.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
	mssql "github.com/microsoft/go-mssqldb"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for Microsoft SQL Server.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "mssql"
}

// Aliases returns alternative names for the driver.
func (d *Driver) Aliases() []string {
	return []string{"sqlserver", "sql-server"}
}

// Defaults returns the default configuration values for MSSQL.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 1433}
}

// Dialect returns the MSSQL dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open returns a sqlserver:// URL.
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	if cfg.DSN != "" {
		return "sqlserver", cfg.DSN, nil
	}
	return "sqlserver", BuildDSN(cfg), nil
}

// BuildDSN builds a sqlserver:// URL with credentials escaped.
func BuildDSN(cfg *config.Connection) string {
	params := url.Values{}
	params.Set("database", cfg.Name())
	for k, v := range cfg.Options {
		params.Set(k, v)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: params.Encode(),
	}
	return u.String()
}

// BulkInsert sends the chunk with TDS bulk copy inside tx.
func (d *Driver) BulkInsert(ctx context.Context, tx *sql.Tx, stmt driver.Statement, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	bulk, err := tx.PrepareContext(ctx, mssql.CopyIn(stmt.Table, mssql.BulkOptions{
		RowsPerBatch: len(rows),
	}, stmt.Columns...))
	if err != nil {
		return fmt.Errorf("prepare bulk copy: %w", err)
	}
	defer bulk.Close()

	for _, row := range rows {
		if _, err := bulk.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("adding row: %w", err)
		}
	}

	res, err := bulk.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("finalizing bulk insert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != int64(len(rows)) {
		return fmt.Errorf("bulk insert: expected %d rows, got %d", len(rows), n)
	}
	return nil
}
