//go:build cgo

package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/godror/godror"
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for Oracle via godror.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "oracle"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"godror"}
}

// Defaults returns the default configuration values for Oracle.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 1521}
}

// Dialect returns the Oracle dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open builds godror connection parameters. A raw dsn is parsed with
// godror.ParseDSN so that logfmt and Easy Connect strings both work.
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	var params godror.ConnectionParams
	if cfg.DSN != "" {
		p, err := godror.ParseDSN(cfg.DSN)
		if err != nil {
			return "", "", fmt.Errorf("parsing oracle dsn: %w", err)
		}
		params = p
	} else {
		params.Username = cfg.User
		params.Password = godror.NewPassword(cfg.Password)
		params.ConnectString = fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name())
	}

	if tz := cfg.Options["timezone"]; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", "", fmt.Errorf("loading timezone %s: %w", tz, err)
		}
		params.Timezone = loc
	}
	if cs := cfg.Options["charset"]; cs != "" {
		params.Charset = cs
	}

	return "godror", params.StringWithPassword(), nil
}

// BulkInsert uses godror array binding for the whole chunk.
func (d *Driver) BulkInsert(ctx context.Context, tx *sql.Tx, stmt driver.Statement, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	prepared, err := tx.PrepareContext(ctx, stmt.SQL)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer prepared.Close()

	batch := &godror.Batch{
		Stmt:  prepared,
		Limit: len(rows),
	}
	for _, row := range rows {
		if err := batch.Add(ctx, row...); err != nil {
			return fmt.Errorf("batch add: %w", err)
		}
	}
	if err := batch.Flush(ctx); err != nil {
		return fmt.Errorf("batch flush: %w", err)
	}
	return nil
}

// NormalizeRow converts godror.Number to its decimal string so that the
// value keeps its precision and binds on any destination.
func (d *Driver) NormalizeRow(row []any) {
	for i, v := range row {
		if n, ok := v.(godror.Number); ok {
			row[i] = n.String()
		}
	}
}
