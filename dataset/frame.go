// Package dataset loads the train and test listing tables and concatenates
// them into one unified Frame whose first Split.NTrain() rows are training
// rows and whose remaining rows are test rows.
//
// The Split value recorded at load time is the only source of truth for
// re-splitting downstream; nothing recomputes it from row content.
package dataset

import (
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Column is one named string column with an optional validity mask.
// A nil Valid slice means every value is present.
type Column struct {
	Name   string
	Values []string
	Valid  []bool
}

// NewColumn creates a column where every value is present.
func NewColumn(name string, values []string) *Column {
	return &Column{Name: name, Values: values}
}

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.Values) }

// IsMissing reports whether row i has no value.
func (c *Column) IsMissing(i int) bool {
	return c.Valid != nil && !c.Valid[i]
}

// Set stores a present value at row i.
func (c *Column) Set(i int, v string) {
	c.Values[i] = v
	if c.Valid != nil {
		c.Valid[i] = true
	}
}

// MissingCount returns the number of rows without a value.
func (c *Column) MissingCount() int {
	if c.Valid == nil {
		return 0
	}
	n := 0
	for _, ok := range c.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// Frame is a columnar table with a fixed number of rows. It is owned by
// exactly one pipeline stage at a time and mutated in place.
type Frame struct {
	n     int
	cols  map[string]*Column
	order []string
}

// NewFrame creates an empty frame with n rows.
func NewFrame(n int) *Frame {
	return &Frame{n: n, cols: make(map[string]*Column)}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Names returns column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named column or a SchemaError.
func (f *Frame) Column(name string) (*Column, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, errors.NewSchemaError("frame", name, "column not found")
	}
	return c, nil
}

// Set adds or replaces a column. Its length must equal Len.
func (f *Frame) Set(c *Column) error {
	if c.Len() != f.n {
		return errors.NewDimensionError("Frame.Set("+c.Name+")", f.n, c.Len(), 0)
	}
	if c.Valid != nil && len(c.Valid) != f.n {
		return errors.NewDimensionError("Frame.Set("+c.Name+").Valid", f.n, len(c.Valid), 0)
	}
	if _, exists := f.cols[c.Name]; !exists {
		f.order = append(f.order, c.Name)
	}
	f.cols[c.Name] = c
	return nil
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Split records the train/test boundary of a unified frame.
type Split struct {
	nTrain int
	nTest  int
}

// NewSplit creates a boundary for nTrain training rows followed by nTest
// test rows.
func NewSplit(nTrain, nTest int) (Split, error) {
	if nTrain < 0 || nTest < 0 {
		return Split{}, errors.NewValueError("dataset.NewSplit", "row counts must be non-negative")
	}
	return Split{nTrain: nTrain, nTest: nTest}, nil
}

// NTrain returns the number of training rows.
func (s Split) NTrain() int { return s.nTrain }

// NTest returns the number of test rows.
func (s Split) NTest() int { return s.nTest }

// Total returns NTrain + NTest.
func (s Split) Total() int { return s.nTrain + s.nTest }

// TrainRange returns the half-open row range of the training rows.
func (s Split) TrainRange() (int, int) { return 0, s.nTrain }

// TestRange returns the half-open row range of the test rows.
func (s Split) TestRange() (int, int) { return s.nTrain, s.nTrain + s.nTest }
