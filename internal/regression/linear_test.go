package regression

import (
	"math"
	"strings"
	"testing"

	"github.com/autoprice/resale-engine/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear_Predict(t *testing.T) {
	m := &Linear{
		Intercept: 1,
		Coefficients: map[string]float64{
			"km_driven":     -0.5,
			"FS_owner":      2,
			"brand_Hyundai": 0.25,
		},
	}
	require.NoError(t, m.Validate())
	assert.Equal(t, TargetIdentity, m.Target)

	f := frame.New(frame.Sequential(2))
	require.NoError(t, f.AddFloat("km_driven", []float64{4, 2}))
	require.NoError(t, f.AddInt("FS_owner", []int64{1, 0}))
	require.NoError(t, f.AddText("brand", []string{"Hyundai", "Lada"}))

	got, err := m.Predict(f)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1 - 2 + 2 + 0.25, 1 - 1}, got, 1e-12)
}

func TestLinear_PredictLogTarget(t *testing.T) {
	m := &Linear{Intercept: 13, Coefficients: map[string]float64{"x": 0.5}, Target: TargetLog}
	f := frame.New(frame.Sequential(1))
	require.NoError(t, f.AddFloat("x", []float64{2}))

	got, err := m.Predict(f)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(14), got[0], 1e-6)
}

func TestLinear_PredictMissingCoefficient(t *testing.T) {
	m := &Linear{Coefficients: map[string]float64{"x": 1}}
	f := frame.New(frame.Sequential(1))
	require.NoError(t, f.AddFloat("y", []float64{2}))

	_, err := m.Predict(f)
	assert.ErrorIs(t, err, ErrMissingCoefficient)
}

func TestLoadLinear(t *testing.T) {
	m, err := LoadLinear(strings.NewReader(`{"intercept": 12.5, "target": "log", "coefficients": {"a": 1, "b": -3, "c": 0.5}}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, m.Intercept)

	assert.Equal(t, []Weight{{"b", -3}, {"a", 1}}, m.TopWeights(2))
	assert.Len(t, m.TopWeights(0), 3)
	assert.Len(t, m.TopWeights(10), 3)

	_, err = LoadLinear(strings.NewReader(`{"coefficients": {"a": 1}, "target": "sqrt"}`))
	assert.Error(t, err)
	_, err = LoadLinear(strings.NewReader(`{"intercept": 1}`))
	assert.Error(t, err)
}
