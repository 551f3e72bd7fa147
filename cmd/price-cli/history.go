package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/autoprice/resale-engine/internal/storage"
)

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	var (
		limit int
		model string
		batch string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent predictions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter := storage.ListFilter{Model: model, Limit: limit}
			if batch != "" {
				id, err := uuid.Parse(batch)
				if err != nil {
					return fmt.Errorf("invalid batch id: %w", err)
				}
				filter.BatchID = uuid.NullUUID{UUID: id, Valid: true}
			}

			ui := newUI(cmd)
			rt, err := openRuntime(ctx, ui)
			if err != nil {
				return err
			}
			defer rt.Close()

			preds, err := rt.Predictor.History(ctx, filter)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}

			if outputJSON {
				return ui.JSON(preds)
			}
			if len(preds) == 0 {
				ui.Info("No predictions recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(preds))
			for _, p := range preds {
				cached := ""
				if p.Cached {
					cached = "yes"
				}
				rows = append(rows, []string{
					p.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					p.Model,
					p.Name,
					FormatPrice(p.Price),
					cached,
					p.ID.String()[:8],
				})
			}
			ui.Table([]string{"Time", "Model", "Listing", "Price", "Cached", "ID"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "maximum rows to show")
	cmd.Flags().StringVarP(&model, "model", "m", "", "only show this model")
	cmd.Flags().StringVar(&batch, "batch", "", "only show rows of this batch id")
	return cmd
}
