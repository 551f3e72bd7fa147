// Package numeric builds the numeric feature block of the full-feature model:
// unit stripping, derived features, mean imputation, clamping to learned
// bounds and log transforms.
package numeric

import (
	"math"
	"strconv"
	"strings"

	"github.com/autoprice/resale-engine/internal/listing"
)

// CoerceUnit reads a value that may carry a trailing unit, such as
// "23.4 kmpl" or "1248 CC". Unreadable values are NaN.
func CoerceUnit(c listing.Cell) float64 {
	if n, ok := c.Num(); ok {
		return n
	}
	s, ok := c.Str()
	if !ok {
		return math.NaN()
	}
	if v, err := parseFloat(s); err == nil {
		return v
	}
	head, _, _ := strings.Cut(s, " ")
	if v, err := parseFloat(head); err == nil {
		return v
	}
	return math.NaN()
}

// CoerceNumber reads a plain number, ignoring thousands separators.
func CoerceNumber(c listing.Cell) float64 {
	if n, ok := c.Num(); ok {
		return n
	}
	s, ok := c.Str()
	if !ok {
		return math.NaN()
	}
	v, err := parseFloat(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
