package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"instinct/internal/config"
	"instinct/internal/logging"
)

var (
	// Global flags
	configPath string
	debugMode  bool

	// Loaded once in PersistentPreRunE, shared by all subcommands.
	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "instinct",
	Short: "instinct - tabular reinforcement-learning policy engine",
	Long: `instinct learns action policies from experience using tabular Q-learning.

It keeps a Q-table over (state, action) pairs, selects actions via
epsilon-greedy or Thompson sampling, shapes task outcomes into scalar
rewards, and persists versioned policy snapshots to SQLite so learned
behavior survives restarts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debugMode {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "instinct.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable categorized debug logging")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
