// Package torque decomposes free-text torque specifications such as
// "190Nm@ 2000rpm" or "12.7@ 2,700(kgm@ rpm)" into a torque in newton metres
// and the engine speed at which it peaks.
package torque

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/autoprice/resale-engine/internal/listing"
)

// KgmToNm converts kilogram-force metres to newton metres.
const KgmToNm = 9.80665

// Value is a parsed torque specification. Either field is NaN when it could
// not be read.
type Value struct {
	Torque       float64 `json:"torque"`
	MaxTorqueRPM float64 `json:"max_torque_rpm"`
}

// Unknown is the result for anything that cannot be parsed.
func Unknown() Value {
	return Value{Torque: math.NaN(), MaxTorqueRPM: math.NaN()}
}

// MarshalJSON writes unreadable fields as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Torque       *float64 `json:"torque"`
		MaxTorqueRPM *float64 `json:"max_torque_rpm"`
	}{finite(v.Torque), finite(v.MaxTorqueRPM)})
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

var errShape = errors.New("torque: unexpected layout")

type branch struct {
	marker string
	parse  func(s string) (Value, error)
}

// branches are tried in order; the first marker found in the lowercased
// text decides the layout for the whole string.
var branches = []branch{
	{"+/-", parseTolerance},
	{"nm@ ", parseNmAt},
	{"(kgm@ rpm)", parseKgmSuffix},
	{"kgm@ ", parseKgmAt},
	{"kgm at ", parseKgmWordAt},
	{"nm at ", parseNmWordAt},
	{"@ ", parseGenericAt},
	{"nm", parseBareNm},
	{" / ", parseSlash},
}

// Parse parses a raw torque cell. Non-text cells are Unknown.
func Parse(raw listing.Cell) Value {
	s, ok := raw.Str()
	if !ok {
		return Unknown()
	}
	return ParseString(s)
}

// ParseString parses a torque specification. It never fails: text that does
// not match the expected layout yields Unknown.
func ParseString(raw string) Value {
	s := strings.ToLower(raw)
	for _, b := range branches {
		if !strings.Contains(s, b.marker) {
			continue
		}
		v, err := b.parse(s)
		if err != nil {
			return Unknown()
		}
		return v
	}
	return Unknown()
}

// "14.9 kgm@ 2,000-3,000+/-500(nm@ rpm)" style
func parseTolerance(s string) (Value, error) {
	parts := strings.Split(s, "@ ")
	if len(parts) < 2 {
		return Value{}, errShape
	}
	torque := parts[0]
	if strings.Contains(torque, "nm") {
		torque = before(torque, "nm")
	}
	t, err := toFloat(torque)
	if err != nil {
		return Value{}, err
	}
	rpm, err := toInt(before(parts[1], "+/-"))
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t, MaxTorqueRPM: rpm}, nil
}

// "190nm@ 2000rpm", "250nm@ 1500-2500rpm"
func parseNmAt(s string) (Value, error) {
	parts := strings.Split(s, "nm@ ")
	t, err := toFloat(parts[0])
	if err != nil {
		return Value{}, err
	}
	rpm := dropUnit(parts[1])
	switch {
	case strings.Contains(rpm, "-"):
		rpm = last(rpm, "-")
	case strings.Contains(rpm, "~"):
		rpm = last(rpm, "~")
	}
	r, err := toInt(rpm)
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t, MaxTorqueRPM: r}, nil
}

// "12.7@ 2,700(kgm@ rpm)"
func parseKgmSuffix(s string) (Value, error) {
	parts := strings.Split(s, "@ ")
	if len(parts) < 2 {
		return Value{}, errShape
	}
	t, err := toFloat(parts[0])
	if err != nil {
		return Value{}, err
	}
	rpm := before(parts[1], "(")
	if strings.Contains(rpm, "-") {
		rpm = last(rpm, "-")
	}
	r, err := toInt(rpm)
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t * KgmToNm, MaxTorqueRPM: r}, nil
}

// "11.5kgm@ 4500rpm"
func parseKgmAt(s string) (Value, error) {
	parts := strings.Split(s, "kgm@ ")
	t, err := toFloat(parts[0])
	if err != nil {
		return Value{}, err
	}
	r, err := rangeUpper(dropUnit(parts[1]))
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t * KgmToNm, MaxTorqueRPM: r}, nil
}

// "22.4 kgm at 1750-2750rpm"
func parseKgmWordAt(s string) (Value, error) {
	parts := strings.Split(s, " kgm at ")
	if len(parts) < 2 {
		return Value{}, errShape
	}
	t, err := toFloat(parts[0])
	if err != nil {
		return Value{}, err
	}
	r, err := toInt(dropUnit(last(parts[1], "-")))
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t * KgmToNm, MaxTorqueRPM: r}, nil
}

// "250nm at 1500-2500rpm"
func parseNmWordAt(s string) (Value, error) {
	parts := strings.Split(s, "nm at ")
	t, err := toFloat(parts[0])
	if err != nil {
		return Value{}, err
	}
	r, err := toInt(before(last(parts[1], "-"), "r"))
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t, MaxTorqueRPM: r}, nil
}

// "110(11.2)@ 4800", "200nm(20.4kgm)@ 1750-2500rpm"
func parseGenericAt(s string) (Value, error) {
	parts := strings.Split(s, "@ ")
	torque := parts[0]
	if strings.Contains(torque, "nm") {
		torque = before(torque, "nm")
	}
	if strings.Contains(torque, "(") {
		torque = before(torque, "(")
	}
	t, err := toFloat(torque)
	if err != nil {
		return Value{}, err
	}
	r, err := rangeUpper(dropUnit(parts[1]))
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t, MaxTorqueRPM: r}, nil
}

// "190nm" carries no engine speed.
func parseBareNm(s string) (Value, error) {
	t, err := toFloat(before(s, "nm"))
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t, MaxTorqueRPM: math.NaN()}, nil
}

// "250 / 1750"
func parseSlash(s string) (Value, error) {
	parts := strings.Split(s, " / ")
	t, err := toFloat(parts[0])
	if err != nil {
		return Value{}, err
	}
	r, err := toFloat(parts[1])
	if err != nil {
		return Value{}, err
	}
	return Value{Torque: t, MaxTorqueRPM: r}, nil
}

// rangeUpper reads "1750-2750" as its upper bound and anything else as a
// plain decimal.
func rangeUpper(s string) (float64, error) {
	if strings.Contains(s, "-") {
		return toInt(last(s, "-"))
	}
	return toFloat(s)
}

// dropUnit removes a trailing three-letter unit such as "rpm".
func dropUnit(s string) string {
	if len(s) <= 3 {
		return ""
	}
	return s[:len(s)-3]
}

func before(s, sep string) string {
	head, _, _ := strings.Cut(s, sep)
	return head
}

func last(s, sep string) string {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s
	}
	return s[i+len(sep):]
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

func toFloat(s string) (float64, error) {
	return strconv.ParseFloat(clean(s), 64)
}

// toInt accepts whole numbers only, so "4.5" in an rpm slot is rejected.
func toInt(s string) (float64, error) {
	n, err := strconv.ParseInt(clean(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}
