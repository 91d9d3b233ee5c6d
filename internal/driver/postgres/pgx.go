package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
)

// PgxDriver implements driver.Driver for PostgreSQL via the pgx stdlib adapter.
type PgxDriver struct{}

// Name returns the primary driver name.
func (d *PgxDriver) Name() string {
	return "pgx"
}

// Aliases returns alternative names for this driver.
func (d *PgxDriver) Aliases() []string {
	return nil
}

// Defaults returns the default configuration values for PostgreSQL.
func (d *PgxDriver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 5432}
}

// Dialect returns the PostgreSQL dialect.
func (d *PgxDriver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open parses the connection string with pgx and registers the resulting
// config with the stdlib adapter, which hands back a DSN naming it.
func (d *PgxDriver) Open(cfg *config.Connection) (string, string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = BuildDSN(cfg)
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "", "", fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if name := cfg.Options["application_name"]; name != "" {
		connConfig.RuntimeParams["application_name"] = name
	}
	return "pgx", stdlib.RegisterConnConfig(connConfig), nil
}
