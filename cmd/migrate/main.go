package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/logtower/backend/internal/infrastructure/config"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/migration"
	"github.com/logtower/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to the TOML config file (default: ./config.toml)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		log.Error("Failed to load configuration", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	err = run(&cfg.Database, args, os.Stdout, log)
	_ = log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one migration command against the configured store
func run(dbCfg *config.DatabaseConfig, args []string, out io.Writer, log *zap.Logger) (err error) {
	command := args[0]
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("driver", dbCfg.Driver),
	)

	// list reads the embedded files only
	if command == "list" {
		names, err := migration.List(dbCfg.Driver)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, "  -", name)
		}
		return nil
	}

	switch command {
	case "up", "down", "steps", "version", "force":
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", command)
	}

	m, err := persistence.NewMigrator(dbCfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "steps":
		if len(args) < 2 {
			return fmt.Errorf("step count required. Usage: migrate steps <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[1])
		}
		return m.Steps(n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(out, "No migrations applied")
			return nil
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", version, dirty)
		return nil

	default: // force
		if len(args) < 2 {
			return fmt.Errorf("version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q", args[1])
		}
		log.Warn("Forcing migration version - use with caution!")
		return m.Force(version)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Logtower Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  steps <n>             Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version (use with caution)
  list                  List the embedded migrations

Flags:
  -config string        Path to the TOML config file (default: ./config.toml)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  LOGTOWER_DATABASE_DRIVER, LOGTOWER_DATABASE_PATH, LOGTOWER_DATABASE_HOST,
  LOGTOWER_DATABASE_PORT, LOGTOWER_DATABASE_USER, LOGTOWER_DATABASE_PASSWORD,
  LOGTOWER_DATABASE_DBNAME, LOGTOWER_DATABASE_SSLMODE

Examples:
  # Apply all pending migrations to rotas.db
  migrate up

  # Roll back the last migration
  migrate steps -1

  # Check current version
  migrate -config config.toml version`)
}
