// Command burrow searches Sogou, stores the extracted results and reports
// on what it has gathered.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/burrow/internal/config"
	"github.com/FranksOps/burrow/internal/logger"
	"github.com/FranksOps/burrow/internal/storage"
	"github.com/FranksOps/burrow/internal/storage/csvbackend"
	"github.com/FranksOps/burrow/internal/storage/jsonbackend"
	"github.com/FranksOps/burrow/internal/storage/postgres"
	"github.com/FranksOps/burrow/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "burrow:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "burrow",
		Short:         "Sogou search result extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, toml or json)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("backend", config.BackendSQLite, "storage backend: none, sqlite, postgres, json, csv")
	pf.String("dsn", "burrow.db", "storage file path or postgres connection string")

	root.AddCommand(newSearchCmd(), newReportCmd())
	return root
}

// Flags shared by every command, keyed by config key.
var persistentBindings = map[string]string{
	"log.level":       "log-level",
	"log.format":      "log-format",
	"storage.backend": "backend",
	"storage.dsn":     "dsn",
}

// env bundles what every command needs after startup.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	close  func() error
}

// setup loads the config with cmd's flags bound on top and builds the logger.
func setup(cmd *cobra.Command, bindings map[string]string) (*env, error) {
	v := config.NewViper()
	if err := bindFlags(v, cmd, persistentBindings); err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd, bindings); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, err
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	return &env{cfg: cfg, logger: log, close: closer}, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	for key, name := range bindings {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// openBackend returns nil for the "none" backend.
func openBackend(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendSQLite:
		return sqlite.New(sc.DSN)
	case config.BackendPostgres:
		return postgres.New(ctx, sc.DSN)
	case config.BackendJSON:
		return jsonbackend.New(sc.DSN)
	case config.BackendCSV:
		return csvbackend.New(sc.DSN)
	}
	return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
}
