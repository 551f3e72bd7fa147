// Package pipeline turns raw listings into the exact feature frames the two
// pre-fitted price models were trained on.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/categorical"
	"github.com/autoprice/resale-engine/internal/encoder"
	"github.com/autoprice/resale-engine/internal/frame"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/numeric"
	"github.com/autoprice/resale-engine/internal/torque"
)

// Model1Columns are the input columns the categorical model needs.
var Model1Columns = []string{
	listing.ColName, listing.ColFuel, listing.ColTransmission, listing.ColOwner, listing.ColSeats,
}

// Model2Columns are the input columns the full-feature model needs.
var Model2Columns = append(append([]string{}, Model1Columns...),
	listing.ColYear, listing.ColKmDriven, listing.ColMileage, listing.ColEngine,
	listing.ColMaxPower, listing.ColTorque, listing.ColSellerType,
)

// RequiredColumns returns the input columns a model needs.
func RequiredColumns(model string) ([]string, bool) {
	switch model {
	case artifact.Model1:
		return Model1Columns, true
	case artifact.Model2:
		return Model2Columns, true
	}
	return nil, false
}

// Preparer builds model features from raw listings. It only reads the
// bundle and is safe for concurrent use.
type Preparer struct {
	bundle *artifact.Bundle
}

// NewPreparer creates a preparer over a loaded bundle.
func NewPreparer(bundle *artifact.Bundle) *Preparer {
	return &Preparer{bundle: bundle}
}

// Prepare dispatches on the model identifier.
func (p *Preparer) Prepare(model string, records []listing.Record) (*frame.Frame, error) {
	switch model {
	case artifact.Model1:
		return p.PrepareModel1(records)
	case artifact.Model2:
		return p.PrepareModel2(records)
	}
	return nil, InvalidInput(fmt.Sprintf("unknown model %q", model), nil)
}

// PrepareModel1 parses names, casts the categorical frame, one-hot encodes
// it and selects the model's features in declared order.
func (p *Preparer) PrepareModel1(records []listing.Record) (*frame.Frame, error) {
	if err := validate(records, Model1Columns); err != nil {
		return nil, err
	}

	cat, err := categorical.Model1Frame(categorical.AssembleAll(records))
	if err != nil {
		var se *categorical.SeatsError
		if errors.As(err, &se) {
			e := InvalidInput("seats must be a whole number", err)
			e.Columns, e.Row = []string{listing.ColSeats}, se.Row
			return nil, e
		}
		return nil, InternalError("build categorical frame", err)
	}

	encoded, err := p.bundle.Model1.Encoder.Transform(cat)
	if err != nil {
		var uc *encoder.UnknownCategoryError
		if errors.As(err, &uc) {
			e := EncodingError("category not in the fitted vocabulary", err)
			e.Columns, e.Row = []string{uc.Column}, uc.Row
			return nil, e
		}
		return nil, ArtifactError("encoder does not fit the categorical frame", err)
	}

	out, err := encoded.Select(p.bundle.Model1.Features...)
	if err != nil {
		e := EncodingError("encoded frame lacks model features", err)
		var mc *frame.MissingColumnsError
		if errors.As(err, &mc) {
			e.Columns = mc.Columns
		}
		return nil, e
	}
	return out, nil
}

// PrepareModel2 builds the numeric block, the owner flags and the text
// categoricals, joins them on the shared row index and selects the model's
// features in declared order.
func (p *Preparer) PrepareModel2(records []listing.Record) (*frame.Frame, error) {
	if err := validate(records, Model2Columns); err != nil {
		return nil, err
	}

	inputs := make([]numeric.Input, len(records))
	for i, r := range records {
		tq := torque.Parse(r.Torque)
		inputs[i] = numeric.Input{
			Year:         numeric.CoerceNumber(r.Year),
			KmDriven:     numeric.CoerceNumber(r.KmDriven),
			Mileage:      numeric.CoerceUnit(r.Mileage),
			Engine:       numeric.CoerceUnit(r.Engine),
			MaxPower:     numeric.CoerceUnit(r.MaxPower),
			Torque:       tq.Torque,
			MaxTorqueRPM: tq.MaxTorqueRPM,
		}
	}
	num, err := numeric.Normalize(inputs, p.bundle.Model2.Params)
	if err != nil {
		if errors.Is(err, numeric.ErrMissingParam) {
			return nil, ArtifactError("numeric parameters incomplete", err)
		}
		return nil, InternalError("normalize numeric block", err)
	}

	rows := categorical.AssembleAll(records)
	owners := make([]string, len(rows))
	for i, r := range rows {
		owners[i] = r.Owner
	}
	flags, err := numeric.OwnerFeatures(owners)
	if err != nil {
		return nil, InternalError("build owner features", err)
	}
	cat, err := categorical.TextFrame(rows)
	if err != nil {
		return nil, InternalError("build categorical frame", err)
	}

	all, err := frame.Concat(num, flags, cat)
	if err != nil {
		return nil, InternalError("join feature blocks", err)
	}
	out, err := all.Select(p.bundle.Model2.Features...)
	if err != nil {
		e := ArtifactError("feature list names columns the pipeline does not produce", err)
		var mc *frame.MissingColumnsError
		if errors.As(err, &mc) {
			e.Columns = mc.Columns
		}
		return nil, e
	}
	return out, nil
}

func validate(records []listing.Record, required []string) error {
	if len(records) == 0 {
		return InvalidInput("no records", nil)
	}
	if missing := listing.MissingColumns(records, required); len(missing) > 0 {
		e := InvalidInput("missing required columns", nil)
		e.Columns = missing
		return e
	}
	return nil
}
