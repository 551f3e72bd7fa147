package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/pipeline"
)

// PriceColumn is appended to every batch output.
const PriceColumn = "predicted_price"

// Table is a parsed CSV upload.
type Table struct {
	Header  []string
	Rows    [][]string
	Records []listing.Record
}

// ReadCSV parses a headed CSV into raw listings. Empty cells become nulls.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, pipeline.InvalidInput("csv is empty", nil)
	}
	if err != nil {
		return nil, pipeline.InvalidInput("csv header is malformed", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, pipeline.InvalidInput("csv row is malformed", err)
		}
		t.Rows = append(t.Rows, row)
		t.Records = append(t.Records, listing.FromCSV(header, row))
	}
	return t, nil
}

// MissingHeaders returns the required columns absent from the header.
func (t *Table) MissingHeaders(required []string) []string {
	have := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		have[h] = true
	}
	var missing []string
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// WriteCSV writes the input columns followed by the predicted price.
func WriteCSV(w io.Writer, t *Table, prices []float64) error {
	if len(prices) != len(t.Rows) {
		return fmt.Errorf("csv: %d prices for %d rows", len(prices), len(t.Rows))
	}

	cw := csv.NewWriter(w)
	header := append(append([]string{}, t.Header...), PriceColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	out := make([]string, len(header))
	for i, row := range t.Rows {
		for j := range t.Header {
			out[j] = ""
			if j < len(row) {
				out[j] = row[j]
			}
		}
		out[len(t.Header)] = strconv.FormatFloat(prices[i], 'f', 2, 64)
		if err := cw.Write(out); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// PredictCSV reads listings from r, prices them and writes the priced table
// to w. Every missing required column is reported at once. progress, when
// set, receives row counts as chunks finish.
func (p *Predictor) PredictCSV(ctx context.Context, model string, r io.Reader, w io.Writer, progress func(rows int)) (*Result, error) {
	required, ok := pipeline.RequiredColumns(model)
	if !ok {
		return nil, pipeline.InvalidInput(fmt.Sprintf("unknown model %q", model), nil)
	}

	t, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if missing := t.MissingHeaders(required); len(missing) > 0 {
		e := pipeline.InvalidInput("missing required columns", nil)
		e.Columns = missing
		return nil, e
	}

	res, err := p.predict(ctx, model, t.Records, progress)
	if err != nil {
		return nil, err
	}
	if err := WriteCSV(w, t, res.Prices); err != nil {
		return nil, pipeline.InternalError("write priced csv", err)
	}
	return res, nil
}

// CountCSVRows counts data rows without parsing records, for progress bars.
func CountCSVRows(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	n := -1
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	return max(n, 0), nil
}
