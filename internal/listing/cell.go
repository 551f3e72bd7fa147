// Package listing defines the raw used-car listing record accepted by the
// preprocessing pipelines.
//
// Listing attributes arrive loosely typed: a CSV cell, a JSON string, a JSON
// number or nothing at all. Cell keeps that distinction because the parsers
// treat "not text" differently from "text that does not parse".
package listing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind describes what a Cell holds.
type Kind uint8

const (
	// KindMissing means the column was not supplied at all.
	KindMissing Kind = iota
	// KindNull means the column was supplied without a value.
	KindNull
	KindText
	KindNumber
)

// MissingMarker is how an absent value renders as text. The fitted encoders
// saw pandas' astype(str) rendering of NaN, so this must stay "nan".
const MissingMarker = "nan"

// Cell is one raw listing attribute.
type Cell struct {
	kind Kind
	text string
	num  float64
}

// Text returns a text cell.
func Text(s string) Cell {
	return Cell{kind: KindText, text: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{kind: KindNumber, num: f}
}

// Null returns a present but empty cell.
func Null() Cell {
	return Cell{kind: KindNull}
}

// Kind reports what the cell holds.
func (c Cell) Kind() Kind { return c.kind }

// Present reports whether the column was supplied, even if null.
func (c Cell) Present() bool { return c.kind != KindMissing }

// IsZero reports whether the cell is missing. Used by omitzero.
func (c Cell) IsZero() bool { return c.kind == KindMissing }

// Str returns the text content when the cell holds text.
func (c Cell) Str() (string, bool) {
	if c.kind != KindText {
		return "", false
	}
	return c.text, true
}

// Num returns the numeric content when the cell holds a number.
func (c Cell) Num() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// String renders the cell the way the training frames were stringified:
// text as-is, integral numbers without a fraction, absent values as "nan".
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return FormatNumber(c.num)
	default:
		return MissingMarker
	}
}

// FormatNumber renders an integral value without a fractional part and any
// other value in its shortest form. NaN renders as the missing marker.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return MissingMarker
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatFloat renders a float column value: integral values keep a ".0"
// suffix (1200 -> "1200.0"), NaN renders as the missing marker.
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return MissingMarker
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*c = Null()
	case string:
		*c = Text(val)
	case float64:
		*c = Number(val)
	case bool:
		if val {
			*c = Number(1)
		} else {
			*c = Number(0)
		}
	default:
		return fmt.Errorf("listing: unsupported cell value %s", string(data))
	}
	return nil
}

// MarshalJSON writes the cell back as a JSON scalar.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindText:
		return json.Marshal(c.text)
	case KindNumber:
		if math.IsNaN(c.num) || math.IsInf(c.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(c.num)
	default:
		return []byte("null"), nil
	}
}
