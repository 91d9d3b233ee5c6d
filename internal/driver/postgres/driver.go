// Package postgres provides the PostgreSQL driver implementations.
// "postgres" runs on lib/pq and bulk loads chunks with COPY; "pgx" runs on
// the pgx stdlib adapter with parameterized inserts. Both register
// themselves with the driver registry on import.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/lib/pq"
)

func init() {
	driver.Register(&Driver{})
	driver.Register(&PgxDriver{})
}

// Driver implements driver.Driver for PostgreSQL via lib/pq.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "postgres"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"postgresql", "pg"}
}

// Defaults returns the default configuration values for PostgreSQL.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 5432}
}

// Dialect returns the PostgreSQL dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open returns a lib/pq connection URL.
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	if cfg.DSN != "" {
		return "postgres", cfg.DSN, nil
	}
	return "postgres", BuildDSN(cfg), nil
}

// BuildDSN builds a postgres:// URL with credentials escaped.
func BuildDSN(cfg *config.Connection) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name(),
	}

	params := url.Values{}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	params.Set("sslmode", sslMode)
	for k, v := range cfg.Options {
		params.Set(k, v)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// BulkInsert streams the chunk through COPY FROM STDIN inside tx.
func (d *Driver) BulkInsert(ctx context.Context, tx *sql.Tx, stmt driver.Statement, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	query := pq.CopyIn(stmt.Name.Table, stmt.Columns...)
	if stmt.Name.Schema != "" {
		query = pq.CopyInSchema(stmt.Name.Schema, stmt.Name.Table, stmt.Columns...)
	}

	copyStmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	defer copyStmt.Close()

	for _, row := range rows {
		if _, err := copyStmt.ExecContext(ctx, driver.TextRow(row)...); err != nil {
			return fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err := copyStmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("finalizing copy: %w", err)
	}
	return nil
}
