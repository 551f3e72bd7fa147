package numeric

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/autoprice/resale-engine/internal/frame"
)

// Output columns of the numeric block.
const (
	ColKmDriven     = "km_driven"
	ColMileage      = "mileage"
	ColEngine       = "engine"
	ColMaxPower     = "max_power"
	ColTorque       = "torque"
	ColMaxTorqueRPM = "max_torque_rpm"
	ColHorseVolume  = "horse*volume"
	ColYearSquared  = "year^2"

	ColFSOwner = "FS_owner"
	ColTFOwner = "TF_owner"
)

// Columns is the order of the frame produced by Normalize.
var Columns = []string{
	ColKmDriven, ColMileage, ColEngine, ColMaxPower, ColTorque,
	ColMaxTorqueRPM, ColHorseVolume, ColYearSquared,
}

// logColumns are log-transformed after clamping. Mileage is left linear.
var logColumns = map[string]bool{
	ColKmDriven:     true,
	ColEngine:       true,
	ColMaxPower:     true,
	ColTorque:       true,
	ColMaxTorqueRPM: true,
	ColHorseVolume:  true,
	ColYearSquared:  true,
}

// logEpsilon keeps ln finite for zero values.
const logEpsilon = 1e-6

// ErrMissingParam is returned when a mean or bound is not available for a
// column.
var ErrMissingParam = errors.New("numeric: missing fitted parameter")

// Bound is a learned clamping interval.
type Bound struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// UnmarshalJSON accepts either {"lower":..,"upper":..} or a [lower, upper]
// pair, which is how the training notebooks export bounds.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("numeric: bound needs 2 values, got %d", len(pair))
		}
		b.Lower, b.Upper = pair[0], pair[1]
		return nil
	}
	type plain Bound
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Bound(p)
	return nil
}

// Clamp limits v to [b.Lower, b.Upper].
func (b Bound) Clamp(v float64) float64 {
	return math.Min(math.Max(v, b.Lower), b.Upper)
}

// Params are the training-time statistics the numeric block is replayed with.
type Params struct {
	Means  map[string]float64
	Bounds map[string]Bound
}

// Validate checks that every output column has a mean and a bound.
func (p Params) Validate() error {
	for _, col := range Columns {
		if _, ok := p.Means[col]; !ok {
			return fmt.Errorf("%w: mean for %q", ErrMissingParam, col)
		}
		b, ok := p.Bounds[col]
		if !ok {
			return fmt.Errorf("%w: bound for %q", ErrMissingParam, col)
		}
		if b.Lower > b.Upper {
			return fmt.Errorf("numeric: bound for %q has lower %v above upper %v", col, b.Lower, b.Upper)
		}
	}
	return nil
}

// Input is one row of raw numeric values, already coerced to float.
type Input struct {
	Year         float64
	KmDriven     float64
	Mileage      float64
	Engine       float64
	MaxPower     float64
	Torque       float64
	MaxTorqueRPM float64
}

// Normalize derives, imputes, clamps and log-transforms the numeric block.
// Rows are indexed 0..len(rows)-1.
func Normalize(rows []Input, p Params) (*frame.Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	values := make(map[string][]float64, len(Columns))
	for _, col := range Columns {
		values[col] = make([]float64, len(rows))
	}
	for i, r := range rows {
		values[ColKmDriven][i] = r.KmDriven
		values[ColMileage][i] = r.Mileage
		values[ColEngine][i] = r.Engine
		values[ColMaxPower][i] = r.MaxPower
		values[ColTorque][i] = r.Torque
		values[ColMaxTorqueRPM][i] = r.MaxTorqueRPM
		values[ColHorseVolume][i] = r.Engine * r.MaxPower
		values[ColYearSquared][i] = r.Year * r.Year
	}

	out := frame.New(frame.Sequential(len(rows)))
	for _, col := range Columns {
		mean, bound := p.Means[col], p.Bounds[col]
		vs := values[col]
		for i, v := range vs {
			if math.IsNaN(v) {
				v = mean
			}
			v = bound.Clamp(v)
			if logColumns[col] {
				v = math.Log(v + logEpsilon)
			}
			vs[i] = v
		}
		if err := out.AddFloat(col, vs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var (
	frontOwners = map[string]bool{"First Owner": true, "Second Owner": true}
	tailOwners  = map[string]bool{"Third Owner": true, "Fourth & Above Owner": true}
)

// OwnerFeatures turns the owner column into the FS_owner and TF_owner flags.
// Owners outside both groups (Test Drive Car, missing) set neither.
func OwnerFeatures(owners []string) (*frame.Frame, error) {
	fs := make([]int64, len(owners))
	tf := make([]int64, len(owners))
	for i, o := range owners {
		if frontOwners[o] {
			fs[i] = 1
		}
		if tailOwners[o] {
			tf[i] = 1
		}
	}
	out := frame.New(frame.Sequential(len(owners)))
	if err := out.AddInt(ColFSOwner, fs); err != nil {
		return nil, err
	}
	if err := out.AddInt(ColTFOwner, tf); err != nil {
		return nil, err
	}
	return out, nil
}
