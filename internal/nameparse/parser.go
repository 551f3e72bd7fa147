// Package nameparse turns a free-text used-car listing name such as
// "Hyundai i20 2015-2017 Sportz 1.2" into structured attributes.
//
// Every lookup is independent and optional. Nothing in this package returns
// an error: a listing that does not mention a body type simply has none.
package nameparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/autoprice/resale-engine/internal/listing"
)

// ParsedName holds the attributes found in a listing name. Empty strings and
// a nil EngineDisplacement mean the attribute was not found.
type ParsedName struct {
	Brand              string `json:"brand,omitempty"`
	Model              string `json:"model,omitempty"`
	Fuel               string `json:"fuel,omitempty"`
	Transmission       string `json:"transmission,omitempty"`
	BodyType           string `json:"body_type,omitempty"`
	Trim               string `json:"trim,omitempty"`
	EmissionNorm       string `json:"emission_norm,omitempty"`
	Drive              string `json:"drive,omitempty"`
	Series             string `json:"series,omitempty"`
	EngineDisplacement *int   `json:"engine_displacement,omitempty"`
	IsSport            bool   `json:"is_sport"`
}

var (
	tokenRe         = regexp.MustCompile(`[a-z0-9+]+`)
	nonAlnumRe      = regexp.MustCompile(`[^A-Za-z0-9]`)
	emissionRe      = regexp.MustCompile(`\bbs[-\s]?([0-9ivx]+)\b`)
	emissionTokenRe = regexp.MustCompile(`^bs[0-9ivx]+`)
	nonDigitRe      = regexp.MustCompile(`[^0-9]`)
	digitRe         = regexp.MustCompile(`[0-9]`)
	litersRe        = regexp.MustCompile(`(\d\.\d)\s*l?`)
	ccRe            = regexp.MustCompile(`(\d{3,4})\s*(?:cc|cm3)`)
	bareLitersRe    = regexp.MustCompile(`\b(\d\.\d)\b`)

	driveRes  = wholeWordPatterns(driveCodes)
	trimRes   = wholeWordPatterns(trimKeywords)
	seriesRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(i[0-9]{1,2})\b`),     // i10, i20
		regexp.MustCompile(`\b([A-Z][0-9]{1,2})\b`), // X5, Q7, A4
		regexp.MustCompile(`\b([0-9]\s+Series)\b`),  // 3 Series
	}
)

func wholeWordPatterns(words []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		res[i] = regexp.MustCompile(`\b(` + regexp.QuoteMeta(w) + `)\b`)
	}
	return res
}

// Parse parses a raw name cell. Anything that is not text yields the zero
// ParsedName.
func Parse(name listing.Cell) ParsedName {
	s, ok := name.Str()
	if !ok {
		return ParsedName{}
	}
	return ParseString(s)
}

// ParseString parses a listing name.
func ParseString(name string) ParsedName {
	stripped := strings.TrimSpace(name)
	lower := strings.ToLower(stripped)
	tokens := strings.Fields(stripped)

	var p ParsedName
	if len(tokens) > 0 {
		p.Brand = tokens[0]
		p.Model = modelFrom(tokens[1:])
	}
	p.Fuel, _ = scanKeywords(lower, fuelKeywords)
	p.BodyType, _ = scanKeywords(lower, bodyKeywords)
	p.Transmission, _ = findTransmission(lower)
	p.IsSport = isSport(lower)
	p.Trim, _ = findTrim(lower)
	p.EmissionNorm, _ = findEmissionNorm(lower)
	p.Drive, _ = findDrive(lower)
	p.Series, _ = firstOf(stripped, seriesAttempts()...)
	if cc, ok := firstOf[int](lower, displacementFromLiters, displacementFromCC, displacementFromBareLiters); ok {
		p.EngineDisplacement = &cc
	}
	return p
}

// RemapDrive folds the axle-notation drive codes into the xWD labels the
// encoder was fitted on. Every other value passes through.
func RemapDrive(drive string) string {
	switch drive {
	case "4X2":
		return "2WD"
	case "4X4":
		return "4WD"
	}
	return drive
}

// attempt is one extraction rule; ok is false when the rule does not apply.
type attempt[T any] func(s string) (T, bool)

// firstOf returns the result of the first attempt that applies.
func firstOf[T any](s string, attempts ...attempt[T]) (T, bool) {
	for _, try := range attempts {
		if v, ok := try(s); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func scanKeywords(lower string, table []keyword) (string, bool) {
	for _, kw := range table {
		if strings.Contains(lower, kw.token) {
			return kw.label, true
		}
	}
	return "", false
}

// findTransmission prefers an exact token match so that "at" and "mt" do not
// fire inside longer words, and only then falls back to substrings.
func findTransmission(lower string) (string, bool) {
	for _, tok := range tokenRe.FindAllString(lower, -1) {
		for _, kw := range transmissionKeywords {
			if tok == kw.token {
				return kw.label, true
			}
		}
	}
	return scanKeywords(lower, transmissionKeywords)
}

func isSport(lower string) bool {
	for _, kw := range sportKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func findTrim(lower string) (string, bool) {
	for i, re := range trimRes {
		if re.MatchString(lower) {
			return strings.ToUpper(trimKeywords[i]), true
		}
	}
	return "", false
}

// findEmissionNorm normalizes BS III / BS-IV / bs6 style codes to "BS<n>".
// Only III, IV and VI are translated; other numerals pass through as letters.
func findEmissionNorm(lower string) (string, bool) {
	m := emissionRe.FindStringSubmatch(lower)
	if m == nil {
		return "", false
	}
	val := strings.ToUpper(m[1])
	val = strings.ReplaceAll(val, "III", "3")
	val = strings.ReplaceAll(val, "IV", "4")
	val = strings.ReplaceAll(val, "VI", "6")
	if digitRe.MatchString(val) {
		return "BS" + nonDigitRe.ReplaceAllString(val, ""), true
	}
	return "BS" + val, true
}

func findDrive(lower string) (string, bool) {
	for _, re := range driveRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

func seriesAttempts() []attempt[string] {
	attempts := make([]attempt[string], len(seriesRes))
	for i, re := range seriesRes {
		attempts[i] = submatch(re)
	}
	return attempts
}

func submatch(re *regexp.Regexp) attempt[string] {
	return func(s string) (string, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

func displacementFromLiters(lower string) (int, bool) {
	return litersToCC(litersRe, lower)
}

func displacementFromBareLiters(lower string) (int, bool) {
	return litersToCC(bareLitersRe, lower)
}

func displacementFromCC(lower string) (int, bool) {
	m := ccRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	cc, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return cc, true
}

func litersToCC(re *regexp.Regexp, lower string) (int, bool) {
	m := re.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	liters, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(math.RoundToEven(liters * 1000)), true
}

// modelFrom joins the tokens after the brand, minus technical keywords.
func modelFrom(rest []string) string {
	kept := make([]string, 0, len(rest))
	for _, tok := range rest {
		clean := strings.ToLower(nonAlnumRe.ReplaceAllString(tok, ""))
		if _, tech := technicalWords[clean]; tech {
			continue
		}
		if emissionTokenRe.MatchString(clean) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}
