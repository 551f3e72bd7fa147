// Package regression runs inference for the exported linear price models.
package regression

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/autoprice/resale-engine/internal/frame"
)

// Model predicts one price per frame row.
type Model interface {
	Predict(f *frame.Frame) ([]float64, error)
}

// Target transforms.
const (
	TargetIdentity = "identity"
	TargetLog      = "log"
)

// ErrMissingCoefficient is returned when a numeric feature has no weight.
var ErrMissingCoefficient = errors.New("regression: missing coefficient")

// Linear is an exported Ridge/OLS model. Numeric columns are weighted by the
// coefficient of the same name. Text columns are weighted by the coefficient
// named "<column>_<value>", and values without one contribute nothing.
// With TargetLog the linear output is a log price and is exponentiated.
type Linear struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Target       string             `json:"target"`
}

// LoadLinear decodes a JSON model export.
func LoadLinear(r io.Reader) (*Linear, error) {
	var m Linear
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("regression: decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadLinearFile decodes a JSON model export from disk.
func LoadLinearFile(path string) (*Linear, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regression: %w", err)
	}
	defer f.Close()
	return LoadLinear(f)
}

// Validate checks the target transform and weights.
func (m *Linear) Validate() error {
	switch m.Target {
	case "":
		m.Target = TargetIdentity
	case TargetIdentity, TargetLog:
	default:
		return fmt.Errorf("regression: unknown target transform %q", m.Target)
	}
	if len(m.Coefficients) == 0 {
		return errors.New("regression: model has no coefficients")
	}
	for name, w := range m.Coefficients {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("regression: coefficient %q is not finite", name)
		}
	}
	return nil
}

// Predict returns one prediction per row of f.
func (m *Linear) Predict(f *frame.Frame) ([]float64, error) {
	out := make([]float64, f.Len())
	for i := range out {
		out[i] = m.Intercept
	}
	for _, name := range f.Names() {
		col, _ := f.Column(name)
		if col.Kind() == frame.Text {
			for i := range out {
				out[i] += m.Coefficients[name+"_"+col.Text(i)]
			}
			continue
		}
		w, ok := m.Coefficients[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingCoefficient, name)
		}
		for i := range out {
			out[i] += w * col.Float(i)
		}
	}
	if m.Target == TargetLog {
		for i, v := range out {
			out[i] = math.Exp(v)
		}
	}
	return out, nil
}

// Weight is one named coefficient.
type Weight struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// TopWeights returns up to n coefficients ordered by absolute value, largest
// first. n <= 0 returns all of them.
func (m *Linear) TopWeights(n int) []Weight {
	weights := make([]Weight, 0, len(m.Coefficients))
	for name, w := range m.Coefficients {
		weights = append(weights, Weight{Feature: name, Value: w})
	}
	sort.Slice(weights, func(i, j int) bool {
		ai, aj := math.Abs(weights[i].Value), math.Abs(weights[j].Value)
		if ai != aj {
			return ai > aj
		}
		return weights[i].Feature < weights[j].Feature
	})
	if n > 0 && n < len(weights) {
		weights = weights[:n]
	}
	return weights
}
