// Package clickhouse provides the ClickHouse driver implementation on top
// of github.com/ClickHouse/clickhouse-go/v2. Destination tables use the
// MergeTree engine and chunks are sent as one native block per transaction.
package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for ClickHouse.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "clickhouse"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"ch"}
}

// Defaults returns the default configuration values for ClickHouse.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 9000}
}

// Dialect returns the ClickHouse dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open returns the raw DSN when one is configured. Discrete settings go
// through OpenDB.
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	if cfg.DSN == "" {
		return "", "", fmt.Errorf("clickhouse: use OpenDB for host based connections")
	}
	return "clickhouse", cfg.DSN, nil
}

// OpenDB builds the handle from clickhouse.Options.
func (d *Driver) OpenDB(cfg *config.Connection) (*sql.DB, error) {
	if cfg.DSN != "" {
		opts, err := clickhouse.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parsing clickhouse dsn: %w", err)
		}
		return clickhouse.OpenDB(opts), nil
	}

	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Name(),
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
		Settings:    clickhouse.Settings{},
	}
	for k, v := range cfg.Options {
		opts.Settings[k] = v
	}
	return clickhouse.OpenDB(opts), nil
}

// BulkInsert appends the chunk to a single batch; the batch is sent
// when the caller commits tx.
func (d *Driver) BulkInsert(ctx context.Context, tx *sql.Tx, stmt driver.Statement, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(stmt.Columns))
	for i, c := range stmt.Columns {
		quoted[i] = (&Dialect{}).QuoteIdentifier(c)
	}
	batch, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)", stmt.Table, strings.Join(quoted, ", ")))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer batch.Close()

	for _, row := range rows {
		if _, err := batch.ExecContext(ctx, driver.TextRow(row)...); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return nil
}
