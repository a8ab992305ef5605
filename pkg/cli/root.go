// Package cli implements the typology command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"census-typology/internal/config"
	"census-typology/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]interface{}{
				"error": err.Error(),
				"kind":  domain.FailureKind(err),
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	output     string
	logLevel   string
}

// loadConfig reads the configuration file and environment.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

// newLogger builds the stderr logger and reports config warnings through it.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return logger
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "typology",
		Short:         "Census building typology distribution engine",
		Long:          "Distributes census building counts over structural typologies using a material-based classification scheme.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("TYPOLOGY_OUTPUT"); v != "" {
					g.output = v
				}
			}
			return validateOutputFormat(g.output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to the YAML run configuration")
	rootCmd.PersistentFlags().StringVarP(&g.output, "output", "o", defaultOutputFormat(), "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(g))
	rootCmd.AddCommand(newValidateCmd(g))
	rootCmd.AddCommand(newAggregateStoreysCmd())
	rootCmd.AddCommand(newRunsCmd(g))
	rootCmd.AddCommand(newScheduleCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
