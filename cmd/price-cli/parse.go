package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autoprice/resale-engine/internal/nameparse"
	"github.com/autoprice/resale-engine/internal/torque"
)

// newParseCmd creates the parse subcommand and its children.
func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Run the listing parsers on raw text",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "name <text>",
		Short: "Extract brand, model, trim and other attributes from a listing name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := newUI(cmd)
			parsed := nameparse.ParseString(strings.Join(args, " "))
			if outputJSON {
				return ui.JSON(parsed)
			}

			ui.Section("Parsed name")
			ui.KeyValue("Brand", orDash(parsed.Brand))
			ui.KeyValue("Model", orDash(parsed.Model))
			ui.KeyValue("Series", orDash(parsed.Series))
			ui.KeyValue("Trim", orDash(parsed.Trim))
			ui.KeyValue("Fuel", orDash(parsed.Fuel))
			ui.KeyValue("Transmission", orDash(parsed.Transmission))
			ui.KeyValue("Body type", orDash(parsed.BodyType))
			ui.KeyValue("Emission norm", orDash(parsed.EmissionNorm))
			ui.KeyValue("Drive", orDash(parsed.Drive))
			if parsed.EngineDisplacement != nil {
				ui.KeyValue("Displacement", fmt.Sprintf("%d cc", *parsed.EngineDisplacement))
			} else {
				ui.KeyValue("Displacement", "-")
			}
			ui.KeyValue("Sport", parsed.IsSport)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "torque <text>",
		Short: "Normalise a torque specification to Nm and rpm",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := newUI(cmd)
			v := torque.ParseString(strings.Join(args, " "))
			if outputJSON {
				return ui.JSON(v)
			}

			ui.Section("Parsed torque")
			ui.KeyValue("Torque (Nm)", formatMeasure(v.Torque, 2))
			ui.KeyValue("Max torque rpm", formatMeasure(v.MaxTorqueRPM, 0))
			return nil
		},
	})

	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatMeasure(f float64, prec int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "unknown"
	}
	return fmt.Sprintf("%.*f", prec, f)
}
