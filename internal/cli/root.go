// Package cli implements the backlogd command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backlogd/backlogd/internal/backlog"
	"github.com/backlogd/backlogd/internal/cache"
	"github.com/backlogd/backlogd/internal/config"
	"github.com/backlogd/backlogd/internal/db"
	"github.com/backlogd/backlogd/internal/db/driver"
	"github.com/backlogd/backlogd/internal/errors"
	"github.com/backlogd/backlogd/internal/lock"
	"github.com/backlogd/backlogd/internal/status"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backlogd",
	Short: "Backlog workflow manager",
	Long: `backlogd manages a project's backlogs, their ordered workflow
statuses, and the finish migration that carries unfinished work forward.

Quick start:
  backlogd backlog create "Sprint 1" --project proj-1
  backlogd status create <backlog-id> "To Do" --default
  backlogd status create <backlog-id> "Done" --closed
  backlogd backlog finish <backlog-id> --action move-to-new --name "Sprint 2"`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var ce *errors.CoreError
		if errors.AsCore(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.UserMessage())
		}
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .backlogd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	// Add subcommands
	rootCmd.AddCommand(newBacklogCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.Dir)
		viper.AddConfigPath("$HOME/" + config.Dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("BACKLOGD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves the effective configuration from file and environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()

	if used := viper.ConfigFileUsed(); used != "" {
		loaded, err := config.Load(used)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := viper.GetString("database.dialect"); v != "" {
		cfg.Database.Dialect = v
	}
	if v := viper.GetString("database.dsn"); v != "" {
		cfg.Database.DSN = v
	}
	if v := viper.GetInt("cache.ttl_seconds"); v != 0 {
		cfg.Cache.TTLSeconds = v
	}

	return cfg, cfg.Validate()
}

// services wires the store, cache, and workflow engines for a command.
type services struct {
	store       *db.Store
	engine      *status.Engine
	coordinator *backlog.Coordinator
}

func openServices() (*services, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	dialect, err := driver.ParseDialect(cfg.Database.Dialect)
	if err != nil {
		return nil, nil, err
	}

	store, err := db.OpenStoreWithDialect(cfg.DatabaseDSN(), dialect)
	if err != nil {
		return nil, nil, err
	}

	locks := lock.NewKeyed()
	coordinator := backlog.NewCoordinator(store, cache.NewMemory(), locks)
	coordinator.CacheTTL = cfg.CacheTTL()

	svc := &services{
		store:       store,
		engine:      status.NewEngine(store, locks),
		coordinator: coordinator,
	}
	cleanup := func() { _ = store.Close() }
	return svc, cleanup, nil
}
