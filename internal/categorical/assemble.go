// Package categorical merges the attributes parsed out of a listing name with
// the listing's own categorical columns into the frame the encoders expect.
package categorical

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/autoprice/resale-engine/internal/frame"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/nameparse"
)

// Column names of the categorical block.
const (
	ColBrand              = "brand"
	ColDrive              = "drive"
	ColModel              = "model"
	ColEngineDisplacement = "engine_displacement"
	ColIsSport            = "is_sport"
	ColBodyType           = "body_type"
	ColTrim               = "trim"
	ColEmissionNorm       = "emission_norm"
	ColSeries             = "series"
	ColFuel               = listing.ColFuel
	ColTransmission       = listing.ColTransmission
	ColOwner              = listing.ColOwner
	ColSeats              = listing.ColSeats
)

// Columns is the column order of every frame built here.
var Columns = []string{
	ColBrand, ColDrive, ColModel, ColEngineDisplacement, ColIsSport,
	ColBodyType, ColTrim, ColEmissionNorm, ColSeries,
	ColFuel, ColTransmission, ColOwner, ColSeats,
}

// Row is the categorical view of one listing. Absent text is
// listing.MissingMarker and an absent displacement is NaN.
type Row struct {
	Brand              string
	Drive              string
	Model              string
	EngineDisplacement float64
	IsSport            bool
	BodyType           string
	Trim               string
	EmissionNorm       string
	Series             string
	Fuel               string
	Transmission       string
	Owner              string
	Seats              listing.Cell
}

// Assemble builds the categorical row for a listing. The raw fuel and
// transmission columns take precedence over anything found in the name.
func Assemble(rec listing.Record) Row {
	p := nameparse.Parse(rec.Name)
	disp := math.NaN()
	if p.EngineDisplacement != nil {
		disp = float64(*p.EngineDisplacement)
	}
	return Row{
		Brand:              orMissing(p.Brand),
		Drive:              orMissing(nameparse.RemapDrive(p.Drive)),
		Model:              orMissing(p.Model),
		EngineDisplacement: disp,
		IsSport:            p.IsSport,
		BodyType:           orMissing(p.BodyType),
		Trim:               orMissing(p.Trim),
		EmissionNorm:       orMissing(p.EmissionNorm),
		Series:             orMissing(p.Series),
		Fuel:               cellText(rec.Fuel),
		Transmission:       cellText(rec.Transmission),
		Owner:              cellText(rec.Owner),
		Seats:              rec.Seats,
	}
}

// AssembleAll assembles every record in order.
func AssembleAll(records []listing.Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Assemble(rec)
	}
	return rows
}

func orMissing(s string) string {
	if s == "" {
		return listing.MissingMarker
	}
	return s
}

func cellText(c listing.Cell) string {
	return orMissing(c.String())
}

// SeatsError reports a seats value that is not a whole number.
type SeatsError struct {
	Row   int
	Value string
}

func (e *SeatsError) Error() string {
	return fmt.Sprintf("row %d: seats %q is not a whole number", e.Row, e.Value)
}

// Seats reads a seat count. Missing, fractional and non-numeric values fail.
func Seats(c listing.Cell) (int64, bool) {
	var v float64
	switch c.Kind() {
	case listing.KindNumber:
		v, _ = c.Num()
	case listing.KindText:
		s, _ := c.Str()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

type columns struct {
	brand, drive, model, bodyType, trim, emission, series []string
	fuel, transmission, owner                             []string
}

func split(rows []Row) columns {
	n := len(rows)
	c := columns{
		brand: make([]string, n), drive: make([]string, n), model: make([]string, n),
		bodyType: make([]string, n), trim: make([]string, n), emission: make([]string, n),
		series: make([]string, n), fuel: make([]string, n), transmission: make([]string, n),
		owner: make([]string, n),
	}
	for i, r := range rows {
		c.brand[i], c.drive[i], c.model[i] = r.Brand, r.Drive, r.Model
		c.bodyType[i], c.trim[i], c.emission[i], c.series[i] = r.BodyType, r.Trim, r.EmissionNorm, r.Series
		c.fuel[i], c.transmission[i], c.owner[i] = r.Fuel, r.Transmission, r.Owner
	}
	return c
}

// Model1Frame casts the rows for the one-hot encoder: text everywhere except
// engine_displacement (float), is_sport and seats (int).
func Model1Frame(rows []Row) (*frame.Frame, error) {
	disp := make([]float64, len(rows))
	sport := make([]int64, len(rows))
	seats := make([]int64, len(rows))
	for i, r := range rows {
		disp[i] = r.EngineDisplacement
		if r.IsSport {
			sport[i] = 1
		}
		s, ok := Seats(r.Seats)
		if !ok {
			return nil, &SeatsError{Row: i, Value: r.Seats.String()}
		}
		seats[i] = s
	}
	c := split(rows)
	return build(len(rows), c,
		func(f *frame.Frame) error { return f.AddFloat(ColEngineDisplacement, disp) },
		func(f *frame.Frame) error { return f.AddInt(ColIsSport, sport) },
		func(f *frame.Frame) error { return f.AddInt(ColSeats, seats) },
	)
}

// TextFrame renders every column as text, the way the full-feature model
// was trained on them.
func TextFrame(rows []Row) (*frame.Frame, error) {
	disp := make([]string, len(rows))
	sport := make([]string, len(rows))
	seats := make([]string, len(rows))
	for i, r := range rows {
		disp[i] = listing.FormatFloat(r.EngineDisplacement)
		sport[i] = "0"
		if r.IsSport {
			sport[i] = "1"
		}
		seats[i] = r.Seats.String()
	}
	c := split(rows)
	return build(len(rows), c,
		func(f *frame.Frame) error { return f.AddText(ColEngineDisplacement, disp) },
		func(f *frame.Frame) error { return f.AddText(ColIsSport, sport) },
		func(f *frame.Frame) error { return f.AddText(ColSeats, seats) },
	)
}

// build lays the columns out in Columns order; disp, sport and seats add the
// three columns whose type depends on the target model.
func build(n int, c columns, disp, sport, seats func(*frame.Frame) error) (*frame.Frame, error) {
	f := frame.New(frame.Sequential(n))
	text := func(name string, vs []string) func(*frame.Frame) error {
		return func(f *frame.Frame) error { return f.AddText(name, vs) }
	}
	steps := []func(*frame.Frame) error{
		text(ColBrand, c.brand),
		text(ColDrive, c.drive),
		text(ColModel, c.model),
		disp,
		sport,
		text(ColBodyType, c.bodyType),
		text(ColTrim, c.trim),
		text(ColEmissionNorm, c.emission),
		text(ColSeries, c.series),
		text(ColFuel, c.fuel),
		text(ColTransmission, c.transmission),
		text(ColOwner, c.owner),
		seats,
	}
	for _, step := range steps {
		if err := step(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}
