// Package main provides the price engine CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autoprice/resale-engine/internal/config"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/service"
)

const version = "0.1.0"

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "price-cli",
		Short: "Used-car resale price engine CLI",
		Long: `price-cli prices used-car listings with the trained resale models.

Use this tool to:
- Price a single listing from flags
- Price a CSV file of listings
- Inspect the name and torque parsers
- List models, their metrics and largest coefficients
- Browse the prediction history

All commands support --json for automation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := "warn"
			if verbose {
				level = cfg.Observability.LogLevel
			}
			logFormat := "console"
			if outputJSON {
				logFormat = "json"
			}

			logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      logFormat,
				Output:      os.Stderr,
				ServiceName: "price-cli",
			})

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(newParseCmd())
	root.AddCommand(newPredictCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newWeightsCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		NewUI(os.Stderr, false, noColor).Error("%v", err)
		os.Exit(1)
	}
}

// newUI builds the UI for a command from the global flags.
func newUI(cmd *cobra.Command) *UI {
	return NewUI(cmd.OutOrStdout(), outputJSON, noColor)
}

// openRuntime loads the artifacts and backing stores behind a spinner.
func openRuntime(ctx context.Context, ui *UI) (*service.Runtime, error) {
	stop := ui.Spinner("Loading model artifacts...")
	rt, err := service.Open(ctx, cfg, logger)
	stop()
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return rt, nil
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				return newUI(cmd).JSON(map[string]string{
					"version": version,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "price-cli v%s\n", version)
			return nil
		},
	}
}
