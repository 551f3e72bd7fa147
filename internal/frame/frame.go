// Package frame provides a small typed, column-oriented table whose rows are
// keyed by an explicit index. Frames built from the same rows share an index
// and can only be concatenated when those indices agree.
package frame

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/autoprice/resale-engine/internal/listing"
)

var (
	// ErrIndexMismatch is returned when frames with different row keys are
	// combined.
	ErrIndexMismatch = errors.New("frame: row index mismatch")
	// ErrMissingColumn is returned when a requested column does not exist.
	ErrMissingColumn = errors.New("frame: missing column")
	// ErrDuplicateColumn is returned when a column name is added twice.
	ErrDuplicateColumn = errors.New("frame: duplicate column")
	// ErrLength is returned when a column's length differs from the index.
	ErrLength = errors.New("frame: column length does not match index")
)

// Kind is the storage type of a column.
type Kind uint8

const (
	Float Kind = iota
	Int
	Text
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case Text:
		return "text"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Column is one named, typed column. Only the slice matching Kind is set.
type Column struct {
	name   string
	kind   Kind
	floats []float64
	ints   []int64
	texts  []string
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.kind {
	case Float:
		return len(c.floats)
	case Int:
		return len(c.ints)
	default:
		return len(c.texts)
	}
}

// Float returns row i as a float64. Text columns yield NaN.
func (c *Column) Float(i int) float64 {
	switch c.kind {
	case Float:
		return c.floats[i]
	case Int:
		return float64(c.ints[i])
	default:
		return math.NaN()
	}
}

// Text returns row i of a text column, or its label for other kinds.
func (c *Column) Text(i int) string {
	if c.kind == Text {
		return c.texts[i]
	}
	return c.Label(i)
}

// Label renders row i the way categorical vocabularies spell it: floats with
// a decimal point ("1200.0", "nan"), ints plainly, text verbatim.
func (c *Column) Label(i int) string {
	switch c.kind {
	case Float:
		return listing.FormatFloat(c.floats[i])
	case Int:
		return strconv.FormatInt(c.ints[i], 10)
	default:
		return c.texts[i]
	}
}

// Value returns row i as a JSON-friendly value; NaN becomes nil.
func (c *Column) Value(i int) any {
	switch c.kind {
	case Float:
		if math.IsNaN(c.floats[i]) || math.IsInf(c.floats[i], 0) {
			return nil
		}
		return c.floats[i]
	case Int:
		return c.ints[i]
	default:
		return c.texts[i]
	}
}

// Floats returns a copy of the column as float64 values.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Float(i)
	}
	return out
}

// HasNaN reports whether a float column holds any NaN.
func (c *Column) HasNaN() bool {
	if c.kind != Float {
		return false
	}
	return slices.ContainsFunc(c.floats, math.IsNaN)
}

// Frame is an ordered set of equally long columns sharing one row index.
type Frame struct {
	index   []int
	columns []*Column
	byName  map[string]int
}

// New returns an empty frame over the given row keys.
func New(index []int) *Frame {
	return &Frame{
		index:  slices.Clone(index),
		byName: make(map[string]int),
	}
}

// Sequential returns an index 0..n-1.
func Sequential(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Index returns a copy of the row keys.
func (f *Frame) Index() []int { return slices.Clone(f.index) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.name
	}
	return names
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// AddFloat appends a float column.
func (f *Frame) AddFloat(name string, values []float64) error {
	return f.add(&Column{name: name, kind: Float, floats: values}, len(values))
}

// AddInt appends an int column.
func (f *Frame) AddInt(name string, values []int64) error {
	return f.add(&Column{name: name, kind: Int, ints: values}, len(values))
}

// AddText appends a text column.
func (f *Frame) AddText(name string, values []string) error {
	return f.add(&Column{name: name, kind: Text, texts: values}, len(values))
}

func (f *Frame) add(c *Column, n int) error {
	if n != len(f.index) {
		return fmt.Errorf("%w: column %q has %d values, index has %d", ErrLength, c.name, n, len(f.index))
	}
	if _, dup := f.byName[c.name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.name)
	}
	f.byName[c.name] = len(f.columns)
	f.columns = append(f.columns, c)
	return nil
}

// Select returns a frame holding exactly the named columns in the given
// order. Every absent column is reported in the error.
func (f *Frame) Select(names ...string) (*Frame, error) {
	var missing []string
	out := New(f.index)
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		if err := out.add(c, c.Len()); err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return out, nil
}

// MissingColumnsError lists the columns Select could not find.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumn, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumn }

// Concat joins frames side by side. All frames must carry the same index in
// the same order and column names must not collide.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return New(nil), nil
	}
	out := New(frames[0].index)
	for n, f := range frames {
		if !slices.Equal(f.index, out.index) {
			return nil, fmt.Errorf("%w: frame %d", ErrIndexMismatch, n)
		}
		for _, c := range f.columns {
			if err := out.add(c, c.Len()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Slice returns the rows in [from, to) as a new frame sharing column data.
func (f *Frame) Slice(from, to int) *Frame {
	out := New(f.index[from:to])
	for _, c := range f.columns {
		s := &Column{name: c.name, kind: c.kind}
		switch c.kind {
		case Float:
			s.floats = c.floats[from:to]
		case Int:
			s.ints = c.ints[from:to]
		default:
			s.texts = c.texts[from:to]
		}
		out.byName[s.name] = len(out.columns)
		out.columns = append(out.columns, s)
	}
	return out
}

// Rows renders the frame as one map per row, keyed by column name.
func (f *Frame) Rows() []map[string]any {
	rows := make([]map[string]any, f.Len())
	for i := range rows {
		row := make(map[string]any, len(f.columns))
		for _, c := range f.columns {
			row[c.name] = c.Value(i)
		}
		rows[i] = row
	}
	return rows
}
