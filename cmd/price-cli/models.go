package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newModelsCmd creates the models subcommand.
func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the loaded models and their holdout metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			ui := newUI(cmd)
			rt, err := openRuntime(ctx, ui)
			if err != nil {
				return err
			}
			defer rt.Close()

			models := rt.Predictor.Models()
			if outputJSON {
				return ui.JSON(map[string]any{
					"artifact_version": rt.Predictor.Bundle().Version,
					"models":           models,
				})
			}

			ui.Info("Artifacts %s", rt.Predictor.Bundle().Version)
			rows := make([][]string, 0, len(models))
			for _, m := range models {
				rows = append(rows, []string{
					m.ID,
					m.Description,
					fmt.Sprintf("%d", m.Features),
					fmt.Sprintf("%.4f", m.Metrics.R2),
					fmt.Sprintf("%.4g", m.Metrics.MSE),
					fmt.Sprintf("%.4f", m.Metrics.WMSPE),
				})
			}
			ui.Table([]string{"Model", "Description", "Features", "R2", "MSE", "WMSPE"}, rows)
			return nil
		},
	}
}

// newWeightsCmd creates the weights subcommand.
func newWeightsCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "weights <model>",
		Short: "Show the largest coefficients of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			ui := newUI(cmd)
			rt, err := openRuntime(ctx, ui)
			if err != nil {
				return err
			}
			defer rt.Close()

			weights, err := rt.Predictor.Weights(args[0], top)
			if err != nil {
				return err
			}
			if outputJSON {
				return ui.JSON(weights)
			}

			rows := make([][]string, 0, len(weights))
			for i, w := range weights {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					w.Feature,
					fmt.Sprintf("%+.6f", w.Value),
				})
			}
			ui.Table([]string{"#", "Feature", "Coefficient"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 20, "number of coefficients, 0 for all")
	return cmd
}
