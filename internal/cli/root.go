package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/strata/internal/apperror"
	"github.com/lazypower/strata/internal/config"
	"github.com/lazypower/strata/internal/decay"
	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "strata",
	Short:         "Sector-aware relational memory graph",
	Long:          "Strata stores an agent's long-term relationships in a graph whose edges fade by memory sector. Constitutive edges are protected by bilateral consent.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flags struct {
	envFile     string
	dbPath      string
	decayConfig string
	logLevel    string
}

// Execute runs the root command. Operation failures are printed as a JSON
// status body on stdout before the error is returned.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}
	if appErr, ok := apperror.As(err); ok {
		body := map[string]any{"status": appErr.Code, "error": appErr.Message}
		for k, v := range appErr.Details {
			body[k] = v
		}
		printJSON(rootCmd.OutOrStdout(), body)
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&flags.dbPath, "db", "", "database path (overrides STRATA_DB)")
	pf.StringVar(&flags.decayConfig, "decay-config", "", "decay parameters YAML (overrides STRATA_DECAY_CONFIG)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(edgeCmd)
	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(reclassifyCmd)
}

// loadConfig resolves config from dotenv, the environment, and flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return cfg, err
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.decayConfig != "" {
		cfg.Decay.Path = flags.decayConfig
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path, err = store.DefaultDBPath()
		if err != nil {
			return cfg, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// openEngine loads config, opens the database, and builds an engine. The
// returned close func releases the database.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(cfg)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	eng := engine.New(db, decay.Load(cfg.Decay.Path, log), log)
	return eng, func() { db.Close() }, nil
}
