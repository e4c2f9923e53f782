package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/cmd/credops/commands"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", errors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credops",
		Short: "Credential operations - encrypted, scoped credential storage",
		Long: `credops keeps credentials encrypted at rest under a local master key and
organizes them by context, domain, and scope for lookup.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Path = configFile
			// The default config file is optional; one named explicitly
			// must exist.
			cfg.Optional = !cmd.Flags().Changed("config")
			if err := cfg.Load(); err != nil {
				return err
			}
			cfg.Logger = logging.New(debug || cfg.Debug(), noColor || cfg.NoColor())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "credops.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		commands.NewEncryptCommand(cfg),
		commands.NewDecryptCommand(cfg),
		commands.NewListCommand(cfg),
		commands.NewAddCommand(cfg),
		commands.NewRemoveCommand(cfg),
		commands.NewPolicyCommand(cfg),
		commands.NewDomainsCommand(cfg),
	)

	return rootCmd.Execute()
}
