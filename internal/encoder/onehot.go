// Package encoder applies a pre-fitted one-hot vocabulary to categorical
// frames.
package encoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/autoprice/resale-engine/internal/frame"
	"github.com/autoprice/resale-engine/internal/listing"
)

// Encoder turns a categorical frame into model features.
type Encoder interface {
	Transform(f *frame.Frame) (*frame.Frame, error)
	FeatureNamesOut() []string
}

// Unknown-category policies, named after scikit-learn's handle_unknown.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// ErrUnknownCategory is returned for a value outside the fitted vocabulary
// when the encoder was fitted with handle_unknown=error.
var ErrUnknownCategory = errors.New("encoder: unknown category")

// UnknownCategoryError names the offending value.
type UnknownCategoryError struct {
	Column string
	Value  string
	Row    int
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("%s: column %q row %d value %q", ErrUnknownCategory, e.Column, e.Row, e.Value)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// Feature is one input column of the fitted encoder.
type Feature struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Categories []json.RawMessage `json:"categories"`
}

// Vocabulary is the on-disk form of a fitted encoder.
type Vocabulary struct {
	Features      []Feature `json:"features"`
	HandleUnknown string    `json:"handle_unknown"`
}

type feature struct {
	name   string
	kind   frame.Kind
	labels []string
	slot   map[string]int
	offset int
}

// OneHot is a fitted one-hot encoder. It is immutable and safe for
// concurrent use.
type OneHot struct {
	features      []feature
	names         []string
	ignoreUnknown bool
}

// NewOneHot validates a vocabulary and builds the encoder.
func NewOneHot(v Vocabulary) (*OneHot, error) {
	if len(v.Features) == 0 {
		return nil, errors.New("encoder: vocabulary has no features")
	}
	enc := &OneHot{}
	switch v.HandleUnknown {
	case HandleUnknownIgnore:
		enc.ignoreUnknown = true
	case HandleUnknownError, "":
	default:
		return nil, fmt.Errorf("encoder: unsupported handle_unknown %q", v.HandleUnknown)
	}

	for _, raw := range v.Features {
		kind, err := parseKind(raw.Kind)
		if err != nil {
			return nil, fmt.Errorf("encoder: feature %q: %w", raw.Name, err)
		}
		f := feature{name: raw.Name, kind: kind, slot: make(map[string]int), offset: len(enc.names)}
		for _, cat := range raw.Categories {
			label, err := categoryLabel(kind, cat)
			if err != nil {
				return nil, fmt.Errorf("encoder: feature %q: %w", raw.Name, err)
			}
			if _, dup := f.slot[label]; dup {
				return nil, fmt.Errorf("encoder: feature %q: duplicate category %q", raw.Name, label)
			}
			f.slot[label] = len(f.labels)
			f.labels = append(f.labels, label)
			enc.names = append(enc.names, raw.Name+"_"+label)
		}
		enc.features = append(enc.features, f)
	}
	return enc, nil
}

// LoadOneHot reads a JSON vocabulary.
func LoadOneHot(r io.Reader) (*OneHot, error) {
	var v Vocabulary
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("encoder: decode vocabulary: %w", err)
	}
	return NewOneHot(v)
}

// LoadOneHotFile reads a JSON vocabulary from disk.
func LoadOneHotFile(path string) (*OneHot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	defer f.Close()
	return LoadOneHot(f)
}

func parseKind(s string) (frame.Kind, error) {
	switch s {
	case "text", "":
		return frame.Text, nil
	case "int":
		return frame.Int, nil
	case "float":
		return frame.Float, nil
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// categoryLabel spells a fitted category the way frame.Column.Label spells
// the matching cell, so lookups and output names agree.
func categoryLabel(kind frame.Kind, raw json.RawMessage) (string, error) {
	switch kind {
	case frame.Text:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("text category %s: %w", raw, err)
		}
		return s, nil
	case frame.Int:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("int category %s: %w", raw, err)
		}
		return strconv.FormatInt(n, 10), nil
	default:
		var f *float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", fmt.Errorf("float category %s: %w", raw, err)
		}
		if f == nil {
			return listing.MissingMarker, nil
		}
		return listing.FormatFloat(*f), nil
	}
}

// FeatureNamesOut returns the output column names, "<column>_<category>".
func (e *OneHot) FeatureNamesOut() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Transform encodes f into 0/1 float columns, one per fitted category, in
// FeatureNamesOut order. The row index is preserved.
func (e *OneHot) Transform(f *frame.Frame) (*frame.Frame, error) {
	n := f.Len()
	data := make([][]float64, len(e.names))
	for i := range data {
		data[i] = make([]float64, n)
	}

	for _, feat := range e.features {
		col, ok := f.Column(feat.name)
		if !ok {
			return nil, &frame.MissingColumnsError{Columns: []string{feat.name}}
		}
		if col.Kind() != feat.kind {
			return nil, fmt.Errorf("encoder: column %q is %s, fitted as %s", feat.name, col.Kind(), feat.kind)
		}
		for row := 0; row < n; row++ {
			label := col.Label(row)
			slot, ok := feat.slot[label]
			if !ok {
				if e.ignoreUnknown {
					continue
				}
				return nil, &UnknownCategoryError{Column: feat.name, Value: label, Row: row}
			}
			data[feat.offset+slot][row] = 1
		}
	}

	out := frame.New(f.Index())
	for i, name := range e.names {
		if err := out.AddFloat(name, data[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
