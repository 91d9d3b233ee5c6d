// Package driver provides pluggable database driver abstractions.
// Each database (Oracle, PostgreSQL, MSSQL, MySQL, etc.) implements the Driver
// interface and registers itself from init(), so the engine only ever sees
// a *Conn and its Dialect.
package driver

import (
	"context"
	"database/sql"

	"github.com/johndauphine/table-transfer/internal/config"
)

// Defaults contains default values for a database driver.
type Defaults struct {
	// Port is the default port (e.g., 1521 for Oracle, 5432 for PostgreSQL).
	Port int
}

// Driver represents a pluggable database driver.
//
// To add a new database:
// 1. Create a package under internal/driver/<dbname>/
// 2. Implement the Driver interface
// 3. Register via init(): driver.Register(&MyDriver{})
type Driver interface {
	// Name returns the primary driver name (e.g., "oracle", "postgres").
	Name() string

	// Aliases returns alternative names for this driver.
	Aliases() []string

	// Defaults returns the default configuration values for this driver.
	Defaults() Defaults

	// Dialect returns the SQL dialect for this database.
	Dialect() Dialect

	// Open returns the database/sql driver name and data source name
	// for a connection descriptor.
	Open(cfg *config.Connection) (driverName, dsn string, err error)
}

// Statement is a prepared INSERT for one destination table.
type Statement struct {
	// Name is the folded, unquoted destination table.
	Name TableName
	// Table is the quoted, qualified destination table.
	Table string
	// Columns are the folded (unquoted) destination column names.
	Columns []string
	// SQL is the parameterized INSERT text.
	SQL string
}

// BulkInserter is implemented by drivers with a native bulk path
// (array binds, TDS bulk copy, block inserts). The rows must be written
// inside tx; the caller owns commit and rollback.
type BulkInserter interface {
	BulkInsert(ctx context.Context, tx *sql.Tx, stmt Statement, rows [][]any) error
}

// RowNormalizer is implemented by drivers that return driver-specific
// value types (e.g. Oracle NUMBER) which other databases cannot bind.
// NormalizeRow rewrites row in place.
type RowNormalizer interface {
	NormalizeRow(row []any)
}

// DBOpener is implemented by drivers whose library builds the *sql.DB
// itself from structured options instead of a DSN string.
type DBOpener interface {
	OpenDB(cfg *config.Connection) (*sql.DB, error)
}
