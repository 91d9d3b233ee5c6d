// Package goora provides a pure-Go Oracle driver implementation on top of
// github.com/sijms/go-ora/v2. It needs no Oracle client libraries and is
// the driver to use for cgo-free builds.
package goora

import (
	"fmt"
	"strings"

	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
	"github.com/johndauphine/table-transfer/internal/driver/oracle"
	go_ora "github.com/sijms/go-ora/v2"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for Oracle via go-ora.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "go-ora"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"oracle-go", "goora"}
}

// Defaults returns the default configuration values for Oracle.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Port: 1521}
}

// Dialect returns the Oracle dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &oracle.Dialect{}
}

// Open builds an oracle:// URL. go-ora registers itself as "oracle".
func (d *Driver) Open(cfg *config.Connection) (string, string, error) {
	if cfg.DSN != "" {
		if !strings.HasPrefix(strings.ToLower(cfg.DSN), "oracle://") {
			return "", "", fmt.Errorf("go-ora dsn must start with oracle://")
		}
		return "oracle", cfg.DSN, nil
	}

	var opts map[string]string
	if len(cfg.Options) > 0 {
		opts = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			opts[strings.ToUpper(k)] = v
		}
	}
	return "oracle", go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.Name(), cfg.User, cfg.Password, opts), nil
}
