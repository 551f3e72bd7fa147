package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/service"
)

// listingFlags holds one listing described on the command line. The defaults
// are the example listing shown on the pricing form.
type listingFlags struct {
	name         string
	year         float64
	kmDriven     float64
	age          float64
	fuel         string
	sellerType   string
	transmission string
	owner        string
	mileage      string
	engine       string
	maxPower     string
	torque       string
	seats        float64
}

func (f *listingFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "Hyundai i20 2015-2017 Sportz 1.2", "listing name")
	fs.Float64Var(&f.year, "year", 2007, "manufacturing year")
	fs.Float64Var(&f.kmDriven, "km", 60000, "kilometres driven")
	fs.Float64Var(&f.age, "age", 7, "age in years")
	fs.StringVar(&f.fuel, "fuel", "Diesel", "fuel type")
	fs.StringVar(&f.sellerType, "seller-type", "Individual", "seller type")
	fs.StringVar(&f.transmission, "transmission", "Manual", "transmission")
	fs.StringVar(&f.owner, "owner", "First Owner", "ownership history")
	fs.StringVar(&f.mileage, "mileage", "23.4 kmpl", "fuel economy")
	fs.StringVar(&f.engine, "engine", "1248 CC", "engine displacement")
	fs.StringVar(&f.maxPower, "max-power", "74 bhp", "maximum power")
	fs.StringVar(&f.torque, "torque", "190Nm@ 2000rpm", "torque specification")
	fs.Float64Var(&f.seats, "seats", 5, "number of seats")
}

func (f *listingFlags) record() listing.Record {
	return listing.Record{
		Name:         listing.Text(f.name),
		Year:         listing.Number(f.year),
		KmDriven:     listing.Number(f.kmDriven),
		Age:          listing.Number(f.age),
		Fuel:         listing.Text(f.fuel),
		SellerType:   listing.Text(f.sellerType),
		Transmission: listing.Text(f.transmission),
		Owner:        listing.Text(f.owner),
		Mileage:      listing.Text(f.mileage),
		Engine:       listing.Text(f.engine),
		MaxPower:     listing.Text(f.maxPower),
		Torque:       listing.Text(f.torque),
		Seats:        listing.Number(f.seats),
	}
}

// newPredictCmd creates the predict subcommand.
func newPredictCmd() *cobra.Command {
	var (
		model string
		lf    listingFlags
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Price a single listing",
		Long: `Predict prices one listing described by flags. Model 1 uses the name,
fuel, transmission, owner and seats only; model 2 uses every field.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			ui := newUI(cmd)
			rt, err := openRuntime(ctx, ui)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Predictor.Predict(ctx, model, []listing.Record{lf.record()})
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}

			if outputJSON {
				return ui.JSON(res)
			}

			ui.Section("Prediction")
			ui.KeyValue("Listing", lf.name)
			ui.KeyValue("Model", res.Model)
			ui.KeyValue("Artifacts", res.ArtifactVersion)
			ui.KeyValue("Price", "₹ "+FormatPrice(res.Prices[0]))
			ui.KeyValue("Cached", res.CacheHits > 0)
			ui.KeyValue("Latency", FormatDuration(res.Duration))
			ui.KeyValue("Prediction ID", res.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", artifact.Model2, "model to use (model1 or model2)")
	lf.register(cmd)
	return cmd
}

// newBatchCmd creates the batch subcommand.
func newBatchCmd() *cobra.Command {
	var (
		model  string
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Price every listing of a CSV file",
		Long: `Batch reads a CSV of listings, prices every row and writes the same
table with a predicted_price column appended. The output defaults to
<input>_priced.csv next to the input; use --out - for stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ui := newUI(cmd)
			defer ui.Close()

			in, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			total, err := service.CountCSVRows(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if _, err := in.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind input: %w", err)
			}

			rt, err := openRuntime(ctx, ui)
			if err != nil {
				return err
			}
			defer rt.Close()

			if output == "" {
				output = defaultOutputPath(input)
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			ui.Step("Pricing %d listings from %s with %s", total, input, model)
			var progress func(int)
			if bar := ui.ProgressBar("Pricing", int64(total)); bar != nil && total > 0 {
				progress = func(rows int) { bar.IncrBy(rows) }
				defer bar.SetCurrent(int64(total))
			}

			res, err := rt.Predictor.PredictCSV(ctx, model, in, w, progress)
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}

			if outputJSON {
				return ui.JSON(map[string]any{
					"prediction_id":    res.ID,
					"model":            res.Model,
					"artifact_version": res.ArtifactVersion,
					"rows":             len(res.Prices),
					"cache_hits":       res.CacheHits,
					"output":           output,
					"latency_ms":       res.Duration.Milliseconds(),
				})
			}
			ui.Success("Priced %d listings in %s (%d cached)", len(res.Prices), FormatDuration(res.Duration), res.CacheHits)
			if output != "-" {
				ui.Info("Wrote %s", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", artifact.Model2, "model to use (model1 or model2)")
	cmd.Flags().StringVarP(&input, "in", "i", "", "input CSV file")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output CSV file, - for stdout")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return input[:len(input)-len(ext)] + "_priced.csv"
}
