package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/johndauphine/table-transfer/internal/config"
	"github.com/johndauphine/table-transfer/internal/driver"
	_ "github.com/johndauphine/table-transfer/internal/driver/clickhouse"
	_ "github.com/johndauphine/table-transfer/internal/driver/goora"
	_ "github.com/johndauphine/table-transfer/internal/driver/mssql"
	_ "github.com/johndauphine/table-transfer/internal/driver/mysql"
	_ "github.com/johndauphine/table-transfer/internal/driver/oracle"
	_ "github.com/johndauphine/table-transfer/internal/driver/postgres"
	_ "github.com/johndauphine/table-transfer/internal/driver/sqlite"
	"github.com/johndauphine/table-transfer/internal/exitcodes"
	"github.com/johndauphine/table-transfer/internal/logging"
	"github.com/johndauphine/table-transfer/internal/orchestrator"
	"github.com/johndauphine/table-transfer/internal/progress"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()

	stateFlag := &cli.StringFlag{
		Name:  "state-file",
		Usage: "Use a YAML state file instead of the SQLite run history (for schedulers/headless)",
	}

	app := &cli.App{
		Name:    "table-transfer",
		Usage:   "Batched, resumable table transfer between databases with optional spreadsheet joins",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to configuration file",
			},
			stateFlag,
			&cli.BoolFlag{
				Name:  "output-json",
				Usage: "Output JSON result to stdout on completion (logs go to stderr)",
			},
			&cli.StringFlag{
				Name:  "output-file",
				Usage: "Write JSON result to file on completion",
			},
			&cli.BoolFlag{
				Name:  "progress-json",
				Usage: "Emit progress events as JSON lines on stderr",
			},
			&cli.DurationFlag{
				Name:  "progress-interval",
				Value: 5 * time.Second,
				Usage: "Minimum interval between JSON chunk events",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Value: "info",
				Usage: "Log verbosity level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "ask-password",
				Usage: "Prompt for source and target passwords that are not set",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.ParseLevel(c.String("verbosity"))
			if err != nil {
				return exitcodes.NewExitError(err, exitcodes.ConfigError)
			}
			logging.SetLevel(level)

			if _, err := logging.ParseFormat(c.String("log-format")); err != nil {
				return exitcodes.NewExitError(err, exitcodes.ConfigError)
			}
			logging.SetFormat(c.String("log-format"))

			if c.Bool("output-json") || c.String("output-file") != "" || c.Bool("progress-json") {
				logging.SetOutput(os.Stderr)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start a new transfer run",
				Action: runTransfer,
				Flags: []cli.Flag{
					stateFlag,
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Override transfer.mode (sequential or parallel)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Override transfer.max_workers",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Override transfer.batch_size",
					},
				},
			},
			{
				Name:   "resume",
				Usage:  "Resume the last incomplete run, skipping jobs that completed",
				Action: resumeTransfer,
				Flags:  []cli.Flag{stateFlag},
			},
			{
				Name:   "validate",
				Usage:  "Compare source and destination row counts",
				Action: validateTransfer,
			},
			{
				Name:   "health-check",
				Usage:  "Test connectivity to source and target",
				Action: healthCheck,
			},
			{
				Name:  "history",
				Usage: "List transfer runs, or view the jobs of one run",
				Flags: []cli.Flag{
					stateFlag,
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show details for a specific run ID",
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Number of runs to list",
					},
				},
				Action: showHistory,
			},
			{
				Name:   "drivers",
				Usage:  "List available database drivers",
				Action: listDrivers,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitcodes.FromError(err))
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, exitcodes.NewExitError(fmt.Errorf("configuration file not found: %s", path), exitcodes.ConfigError)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.Bool("ask-password") {
		if err := promptPasswords(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func promptPasswords(cfg *config.Config) error {
	for _, p := range []struct {
		role string
		conn *config.Connection
	}{{"source", &cfg.Source}, {"target", &cfg.Target}} {
		if p.conn.Password != "" || p.conn.DSN != "" || p.conn.Type == "sqlite" {
			continue
		}
		fmt.Fprintf(os.Stderr, "%s password for %s: ", p.role, p.conn.User)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading %s password: %w", p.role, err)
		}
		p.conn.Password = string(pw)
	}
	return nil
}

// getStateFile checks the command flag first, then the global one.
func getStateFile(c *cli.Context) string {
	for _, ctx := range c.Lineage() {
		if ctx == nil {
			continue
		}
		if sf := ctx.String("state-file"); sf != "" {
			return sf
		}
	}
	return ""
}

// newOrchestrator wires progress output according to the global flags.
// The returned finish func flushes progress output.
func newOrchestrator(c *cli.Context, cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	var sinks progress.Multi
	finish := func() {}

	switch {
	case c.Bool("progress-json"):
		reporter := progress.NewJSONReporter(os.Stderr, c.Duration("progress-interval"))
		sinks = append(sinks, reporter)
		finish = reporter.Close
	case !c.Bool("output-json") && progress.IsTerminal():
		tracker := progress.NewTracker(os.Stderr)
		sinks = append(sinks, tracker)
		finish = tracker.Finish
	}

	orch, err := orchestrator.New(cfg, orchestrator.Options{
		StateFile: getStateFile(c),
		Sink:      sinks,
	})
	if err != nil {
		return nil, nil, err
	}
	return orch, finish, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. Jobs stop after the
// chunk being written.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Finishing the current chunk...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runTransfer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if mode := c.String("mode"); mode != "" {
		cfg.Transfer.Mode = strings.ToLower(mode)
	}
	if c.IsSet("workers") {
		cfg.Transfer.MaxWorkers = c.Int("workers")
	}
	if c.IsSet("batch-size") {
		cfg.Transfer.BatchSize = c.Int("batch-size")
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	orch, finish, err := newOrchestrator(c, cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	summary, runErr := orch.Run(ctx)
	finish()
	return report(c, summary, runErr)
}

func resumeTransfer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	orch, finish, err := newOrchestrator(c, cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	summary, runErr := orch.Resume(ctx)
	finish()
	return report(c, summary, runErr)
}

type result struct {
	*orchestrator.Report
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// report writes the JSON result when requested and passes runErr through.
func report(c *cli.Context, summary *orchestrator.Summary, runErr error) error {
	if !c.Bool("output-json") && c.String("output-file") == "" {
		return runErr
	}

	res := result{ExitCode: exitcodes.FromError(runErr)}
	if summary != nil {
		rep := summary.Report()
		res.Report = &rep
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	if err := outputJSON(c, res); err != nil {
		logging.Warn("Failed to output JSON: %v", err)
	}
	return runErr
}

func outputJSON(c *cli.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if c.Bool("output-json") {
		fmt.Println(string(data))
	}
	if outputFile := c.String("output-file"); outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	}
	return nil
}

func validateTransfer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	orch, _, err := newOrchestrator(c, cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	results, err := orch.Validate(context.Background())
	if c.Bool("output-json") || c.String("output-file") != "" {
		if jerr := outputJSON(c, results); jerr != nil {
			logging.Warn("Failed to output JSON: %v", jerr)
		}
	}
	if err != nil && results != nil {
		return exitcodes.NewExitError(err, exitcodes.ValidationError)
	}
	return err
}

func healthCheck(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	orch, _, err := newOrchestrator(c, cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	res := orch.HealthCheck(context.Background())
	if c.Bool("output-json") {
		if err := outputJSON(c, res); err != nil {
			return err
		}
	} else {
		logging.Info("Source (%s): connected=%t latency=%dms %s", res.SourceDBType, res.SourceConnected, res.SourceLatencyMs, res.SourceError)
		logging.Info("Target (%s): connected=%t latency=%dms %s", res.TargetDBType, res.TargetConnected, res.TargetLatencyMs, res.TargetError)
	}
	if !res.Healthy {
		return exitcodes.NewExitError(errors.New("health check failed"), exitcodes.ConnectionError)
	}
	return nil
}

func showHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	orch, _, err := newOrchestrator(c, cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	if runID := c.String("run"); runID != "" {
		return orch.PrintRun(os.Stdout, runID)
	}
	return orch.PrintHistory(os.Stdout, c.Int("limit"))
}

func listDrivers(c *cli.Context) error {
	for _, name := range driver.Available() {
		d, err := driver.Get(name)
		if err != nil {
			continue
		}
		aliases := ""
		if a := d.Aliases(); len(a) > 0 {
			aliases = " (aliases: " + strings.Join(a, ", ") + ")"
		}
		fmt.Printf("%-12s default port %d%s\n", name, d.Defaults().Port, aliases)
	}
	return nil
}
