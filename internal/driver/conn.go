package driver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/stats"
)

// Conn is an open session to one database. The underlying pool is capped
// at a single connection so that every statement of a job runs on the
// same session and a dropped session fails the job instead of silently
// reconnecting mid-transfer.
type Conn struct {
	role string
	db   *sql.DB
	drv  Driver
}

// Open resolves the driver for cfg.Type, opens the database and pings it.
// Every failure is a ConnectionError.
func Open(ctx context.Context, role string, cfg *config.Connection) (*Conn, error) {
	drv, err := Get(cfg.Type)
	if err != nil {
		return nil, errs.New(errs.KindConnection, "open", role, err)
	}

	db, err := openDB(drv, cfg)
	if err != nil {
		return nil, errs.New(errs.KindConnection, "open", role, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.New(errs.KindConnection, "ping", role, err)
	}

	logging.Debug("Connected %s (%s) %s", role, drv.Name(), describe(cfg))
	return &Conn{role: role, db: db, drv: drv}, nil
}

func openDB(drv Driver, cfg *config.Connection) (*sql.DB, error) {
	if opener, ok := drv.(DBOpener); ok {
		return opener.OpenDB(cfg)
	}

	driverName, dsn, err := drv.Open(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	return db, nil
}

// Wrap builds a Conn around an existing handle. Used when the caller
// manages the *sql.DB lifecycle.
func Wrap(role string, db *sql.DB, drv Driver) *Conn {
	return &Conn{role: role, db: db, drv: drv}
}

func describe(cfg *config.Connection) string {
	if cfg.Host == "" {
		return cfg.Name()
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name())
}

// Role returns the label the connection was opened with ("source", "target").
func (c *Conn) Role() string { return c.role }

// DB returns the handle used for statement execution and cursors.
func (c *Conn) DB() *sql.DB { return c.db }

// Driver returns the registered driver.
func (c *Conn) Driver() Driver { return c.drv }

// Dialect returns the driver's SQL dialect.
func (c *Conn) Dialect() Dialect { return c.drv.Dialect() }

// BeginTx starts an explicit transaction.
func (c *Conn) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// Stats snapshots the session usage for logging.
func (c *Conn) Stats() stats.PoolStats {
	return stats.FromDB(c.role, c.drv.Name(), c.db.Stats())
}

// Close releases the connection.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
