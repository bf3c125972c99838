// Package main implements the spock CLI, a thin terminal front end over the
// SPOCK GOS engine (internal/engine).
//
// # File Index
//
//   - main.go      - Entry point, rootCmd, global flags, init()
//   - cmd_run.go   - runCmd: execute a script file as a one-shot learn call
//   - cmd_theory.go - theoryCmd: list/show/delete subcommands
//   - cmd_replay.go - replayCmd: re-run a trace twice and diff the results
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spock/internal/config"
)

var (
	// Global flags
	verbose   bool
	workspace string
	seed      int64
	logLevel  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "spock",
	Short: "SPOCK GOS - a neuro-symbolic reasoning engine",
	Long: `SPOCK GOS parses and executes SpockDSL scripts against a shared
conceptual vector space, dispatching statements to kernel, numeric, planning,
theory-versioning, and user-macro verbs, and emitting a replayable trace of
every step taken.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg = zap.NewDevelopmentConfig()
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose development logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "engine working folder (default: .spock)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "override the engine's random seed (0 keeps the config default)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the engine's category log level")

	theoryCmd.AddCommand(theoryListCmd, theoryShowCmd, theoryDeleteCmd)
	rootCmd.AddCommand(runCmd, theoryCmd, replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEngineConfig builds a config.Config from the engine's defaults,
// overridden by whichever persistent flags the caller set.
func loadEngineConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if workspace != "" {
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
		cfg.WorkingFolder = abs
	}
	if seed != 0 {
		cfg.RandomSeed = seed
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return cfg, nil
}
