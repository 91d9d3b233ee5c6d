// Package mysql provides the MySQL/MariaDB driver implementation on top of
// github.com/go-sql-driver/mysql.
package mysql

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for MySQL.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "mysql"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"mariadb"}
}

// Defaults returns the default configuration values for MySQL.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 3306}
}

// Dialect returns the MySQL dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open formats a go-sql-driver DSN. A raw dsn is parsed first so that
// malformed strings fail here instead of on first use.
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		return "mysql", parsed.FormatDSN(), nil
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Name()
	if len(cfg.Options) > 0 {
		mc.Params = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}
	return "mysql", mc.FormatDSN(), nil
}

// Dialect implements driver.Dialect for MySQL.
type Dialect struct{}

func (d *Dialect) DBType() string { return "mysql" }

// Fold leaves names unchanged.
func (d *Dialect) Fold(name string) string { return name }

func (d *Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Dialect) Placeholder(int) string { return "?" }

func (d *Dialect) SampleQuery(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS head LIMIT 1", driver.TrimQuery(query))
}

func (d *Dialect) CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS src", driver.TrimQuery(query))
}

func (d *Dialect) TableExistsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = ?`, []any{table}
	}
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?`, []any{schema, table}
}

func (d *Dialect) CreateTableSQL(table string, columns []string) string {
	return driver.CreateTableDDL(table, columns, "TEXT", "")
}
