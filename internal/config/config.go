package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/johndauphine/table-transfer/internal/errs"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	// ModeSequential runs jobs one after another over a single connection pair.
	ModeSequential = "sequential"
	// ModeParallel runs jobs on a bounded worker pool, each with its own connections.
	ModeParallel = "parallel"
)

// Join modes accepted in job definitions.
var joinModes = map[string]bool{"inner": true, "left": true, "right": true, "outer": true}

// expandTilde expands ~ or ~/ at the start of a path to the user's home directory
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Config holds all configuration for a transfer run
type Config struct {
	Source    Connection       `yaml:"source"`
	Target    Connection       `yaml:"target"`
	Transfer  TransferConfig   `yaml:"transfer"`
	Reference *ReferenceConfig `yaml:"reference,omitempty"`
	Tables    TableMapping     `yaml:"tables,omitempty"`
	Jobs      []JobConfig      `yaml:"jobs,omitempty"`
	Slack     SlackConfig      `yaml:"slack"`
}

// Connection describes how to reach one database. Either DSN is given
// verbatim or the driver builds one from the discrete fields.
type Connection struct {
	Type     string `yaml:"type"` // oracle, go-ora, postgres, mssql, mysql, clickhouse, sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Service  string `yaml:"service"`  // Oracle service name
	Database string `yaml:"database"` // database name, or file path for sqlite
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`
	DSN      string `yaml:"dsn"`      // overrides the discrete fields when set
	SSLMode  string `yaml:"ssl_mode"` // PostgreSQL: disable, require, verify-ca, verify-full
	// Options are appended to the generated DSN as driver-specific parameters.
	Options map[string]string `yaml:"options,omitempty"`
}

// Name returns the service or database the connection targets.
func (c Connection) Name() string {
	if c.Service != "" {
		return c.Service
	}
	return c.Database
}

// Redacted returns a copy with the password removed.
func (c Connection) Redacted() Connection {
	if c.Password != "" {
		c.Password = "[REDACTED]"
	}
	if c.DSN != "" {
		c.DSN = redactDSN(c.DSN)
	}
	return c
}

var dsnPassword = regexp.MustCompile(`(://[^:/@]+:)[^@]*@`)

func redactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, "${1}[REDACTED]@")
}

// TransferConfig holds batching and execution settings
type TransferConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	MaxWorkers   int           `yaml:"max_workers"`
	Mode         string        `yaml:"mode"`          // sequential (default) or parallel
	ReadAhead    *int          `yaml:"read_ahead"`    // chunks buffered between reader and writer, 0 is unbuffered
	ReadRetries  *int          `yaml:"read_retries"`  // retries for introspection and query open, 0 disables
	RetryBackoff time.Duration `yaml:"retry_backoff"` // initial backoff, doubled per retry
	DataDir      string        `yaml:"data_dir"`      // run history location
}

// ReferenceConfig points at the spreadsheet or CSV used for joins
type ReferenceConfig struct {
	Path     string `yaml:"path"`
	Sheet    string `yaml:"sheet"`    // xlsx only, default first sheet
	Key      string `yaml:"key"`      // reference key column
	Encoding string `yaml:"encoding"` // csv only: utf-8 (default), shift_jis, euc-jp
}

// JobConfig is an explicit query or table job
type JobConfig struct {
	Name        string      `yaml:"name"`
	Table       string      `yaml:"table"` // source table; mutually exclusive with query
	Query       string      `yaml:"query"`
	Destination string      `yaml:"destination"`
	Join        *JoinConfig `yaml:"join,omitempty"`
}

// JoinConfig describes how a job's rows are merged with the reference dataset
type JoinConfig struct {
	SourceKey        string `yaml:"source_key"`
	ReferenceKey     string `yaml:"reference_key"` // defaults to reference.key
	How              string `yaml:"how"`           // inner, left, right, outer (default inner)
	IncludeReference bool   `yaml:"include_reference_columns"`
}

// SlackConfig holds Slack notification settings
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
	Enabled    bool   `yaml:"enabled"`
}

// LoadOptions controls configuration loading behavior.
type LoadOptions struct {
	SuppressWarnings bool
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions reads configuration from a YAML file with options.
func LoadWithOptions(path string, opts LoadOptions) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindConfig, "read config", path, err)
	}

	cfg, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	if !opts.SuppressWarnings && cfg.hasSecrets() {
		if who := exposedTo(path); who != "" {
			logging.Warn("Config file %s holds credentials and is readable by %s", path, who)
		}
	}
	return cfg, nil
}

// hasSecrets reports whether the file carried any password, dsn or webhook.
func (c *Config) hasSecrets() bool {
	return c.Source.Password != "" || c.Target.Password != "" ||
		c.Source.DSN != "" || c.Target.DSN != "" || c.Slack.WebhookURL != ""
}

// LoadBytes reads configuration from YAML bytes.
func LoadBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errs.New(errs.KindConfig, "parsing config", "", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, errs.New(errs.KindConfig, "invalid config", "", err)
	}

	return &cfg, nil
}

// DefaultDataDir returns the default data directory for run history.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".table-transfer")
}

func defaultPort(typ string) int {
	switch strings.ToLower(typ) {
	case "oracle", "godror", "go-ora", "oracle-go":
		return 1521
	case "postgres", "postgresql", "pg", "pgx":
		return 5432
	case "mssql", "sqlserver":
		return 1433
	case "mysql", "mariadb":
		return 3306
	case "clickhouse", "ch":
		return 9000
	default:
		return 0
	}
}

func isFileDatabase(typ string) bool {
	switch strings.ToLower(typ) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

func (c *Config) applyDefaults() {
	for _, conn := range []*Connection{&c.Source, &c.Target} {
		if conn.Port == 0 && conn.DSN == "" {
			conn.Port = defaultPort(conn.Type)
		}
		if conn.SSLMode == "" {
			conn.SSLMode = "prefer"
		}
		if isFileDatabase(conn.Type) {
			conn.Database = expandTilde(conn.Database)
		}
	}

	if c.Transfer.BatchSize == 0 {
		c.Transfer.BatchSize = 50000
	}
	if c.Transfer.MaxWorkers == 0 {
		c.Transfer.MaxWorkers = 4
	}
	if c.Transfer.Mode == "" {
		c.Transfer.Mode = ModeSequential
	}
	c.Transfer.Mode = strings.ToLower(c.Transfer.Mode)
	// Pointers so an explicit 0 survives defaulting.
	if c.Transfer.ReadAhead == nil {
		c.Transfer.ReadAhead = lo.ToPtr(2)
	}
	if c.Transfer.ReadRetries == nil {
		c.Transfer.ReadRetries = lo.ToPtr(2)
	}
	if c.Transfer.RetryBackoff == 0 {
		c.Transfer.RetryBackoff = time.Second
	}
	if c.Transfer.DataDir == "" {
		c.Transfer.DataDir = DefaultDataDir()
	} else {
		c.Transfer.DataDir = expandTilde(c.Transfer.DataDir)
	}

	if c.Reference != nil {
		c.Reference.Path = expandTilde(c.Reference.Path)
	}

	for i := range c.Jobs {
		j := &c.Jobs[i]
		if j.Name == "" {
			j.Name = j.Destination
		}
		if j.Join != nil {
			if j.Join.How == "" {
				j.Join.How = "inner"
			}
			j.Join.How = strings.ToLower(j.Join.How)
			if j.Join.ReferenceKey == "" && c.Reference != nil {
				j.Join.ReferenceKey = c.Reference.Key
			}
		}
	}
}

func validateConnection(role string, c Connection) error {
	if c.Type == "" {
		return fmt.Errorf("%s.type is required", role)
	}
	if c.DSN != "" {
		return nil
	}
	if isFileDatabase(c.Type) {
		if c.Database == "" {
			return fmt.Errorf("%s.database (file path) is required for %s", role, c.Type)
		}
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("%s.host is required", role)
	}
	if c.Name() == "" {
		return fmt.Errorf("%s.service or %s.database is required", role, role)
	}
	return nil
}

func (c *Config) validate() error {
	if err := validateConnection("source", c.Source); err != nil {
		return err
	}
	if err := validateConnection("target", c.Target); err != nil {
		return err
	}

	if c.Transfer.BatchSize <= 0 {
		return fmt.Errorf("transfer.batch_size must be positive, got %d", c.Transfer.BatchSize)
	}
	if c.Transfer.MaxWorkers <= 0 {
		return fmt.Errorf("transfer.max_workers must be positive, got %d", c.Transfer.MaxWorkers)
	}
	if lo.FromPtr(c.Transfer.ReadAhead) < 0 {
		return fmt.Errorf("transfer.read_ahead must not be negative")
	}
	if lo.FromPtr(c.Transfer.ReadRetries) < 0 {
		return fmt.Errorf("transfer.read_retries must not be negative")
	}
	if c.Transfer.Mode != ModeSequential && c.Transfer.Mode != ModeParallel {
		return fmt.Errorf("transfer.mode must be '%s' or '%s', got '%s'", ModeSequential, ModeParallel, c.Transfer.Mode)
	}

	if len(c.Tables) == 0 && len(c.Jobs) == 0 {
		return fmt.Errorf("at least one entry in tables or jobs is required")
	}

	names := make(map[string]bool)
	for _, m := range c.Tables {
		key := strings.ToUpper(m.Source)
		if names[key] {
			return fmt.Errorf("duplicate job name %q", m.Source)
		}
		names[key] = true
	}

	joins := false
	for i, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("jobs[%d]: name or destination is required", i)
		}
		key := strings.ToUpper(j.Name)
		if names[key] {
			return fmt.Errorf("duplicate job name %q", j.Name)
		}
		names[key] = true

		if j.Destination == "" {
			return fmt.Errorf("jobs[%d] %s: destination is required", i, j.Name)
		}
		if (j.Table == "") == (strings.TrimSpace(j.Query) == "") {
			return fmt.Errorf("jobs[%d] %s: exactly one of table or query is required", i, j.Name)
		}
		if j.Join == nil {
			continue
		}
		joins = true
		if c.Reference == nil || c.Reference.Path == "" {
			return fmt.Errorf("jobs[%d] %s: join requires a reference.path", i, j.Name)
		}
		if j.Join.SourceKey == "" {
			return fmt.Errorf("jobs[%d] %s: join.source_key is required", i, j.Name)
		}
		if j.Join.ReferenceKey == "" {
			return fmt.Errorf("jobs[%d] %s: join.reference_key or reference.key is required", i, j.Name)
		}
		if !joinModes[j.Join.How] {
			return fmt.Errorf("jobs[%d] %s: join.how must be inner, left, right or outer, got '%s'", i, j.Name, j.Join.How)
		}
	}

	if joins && c.Transfer.Mode == ModeParallel {
		return fmt.Errorf("reference joins are only supported in sequential mode")
	}
	return nil
}

// Check re-validates the config, e.g. after command-line overrides.
func (c *Config) Check() error {
	if err := c.validate(); err != nil {
		return errs.New(errs.KindConfig, "invalid config", "", err)
	}
	return nil
}

// HasJoins reports whether any job merges with the reference dataset.
func (c *Config) HasJoins() bool {
	for _, j := range c.Jobs {
		if j.Join != nil {
			return true
		}
	}
	return false
}

// StatePath returns the run history database path.
func (c *Config) StatePath() string {
	return filepath.Join(c.Transfer.DataDir, "state.db")
}

// Sanitized returns a copy of the config with sensitive fields redacted
func (c *Config) Sanitized() *Config {
	sanitized := *c // shallow copy

	sanitized.Source = c.Source.Redacted()
	sanitized.Target = c.Target.Redacted()

	if sanitized.Slack.WebhookURL != "" {
		sanitized.Slack.WebhookURL = "[REDACTED]"
	}

	return &sanitized
}
