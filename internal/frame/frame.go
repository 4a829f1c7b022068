package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrColumnNotFound is returned when a named column does not exist
var ErrColumnNotFound = errors.New("column not found")

// Frame is an ordered sequence of named columns over a shared row index.
// Column names may repeat; name lookups return the first match.
type Frame struct {
	cols []*Column
	rows int
}

// New creates a frame from columns of equal length
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{}
	for i, c := range cols {
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// FromRecords builds a frame of string columns. Short records are padded
// with empty cells and long records are truncated to the header width.
func FromRecords(header []string, records [][]string) *Frame {
	cols := make([]*Column, len(header))
	for j, name := range header {
		values := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				values[i] = rec[j]
			}
		}
		cols[j] = NewString(name, values)
	}
	return &Frame{cols: cols, rows: len(records)}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.rows
}

// Width returns the number of columns
func (f *Frame) Width() int {
	return len(f.cols)
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice is a copy; the columns are shared.
func (f *Frame) Columns() []*Column {
	return append([]*Column(nil), f.cols...)
}

// IndexOf returns the position of the first column with the given name, or -1
func (f *Frame) IndexOf(name string) int {
	for i, c := range f.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column exists
func (f *Frame) Has(name string) bool {
	return f.IndexOf(name) >= 0
}

// Column returns the first column with the given name
func (f *Frame) Column(name string) (*Column, error) {
	i := f.IndexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return f.cols[i], nil
}

// Strings returns the values of a string or category column
func (f *Frame) Strings(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if !isText(c.Kind) {
		return nil, fmt.Errorf("column %q is %s, not string", name, c.Kind)
	}
	return c.Strings, nil
}

// Ints returns the values of an integer column
func (f *Frame) Ints(name string) ([]int64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindInt {
		return nil, fmt.Errorf("column %q is %s, not int", name, c.Kind)
	}
	return c.Ints, nil
}

// Floats returns the values of a float column
func (f *Frame) Floats(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindFloat {
		return nil, fmt.Errorf("column %q is %s, not float", name, c.Kind)
	}
	return c.Floats, nil
}

// Times returns the values of a timestamp column
func (f *Frame) Times(name string) ([]time.Time, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindTime {
		return nil, fmt.Errorf("column %q is %s, not timestamp", name, c.Kind)
	}
	return c.Times, nil
}

// Set replaces the first column named c.Name, or appends c when absent.
// Setting a column on an empty frame defines the row count.
func (f *Frame) Set(c *Column) error {
	if len(f.cols) == 0 {
		f.rows = c.Len()
	}
	if c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
	}
	if i := f.IndexOf(c.Name); i >= 0 {
		f.cols[i] = c
		return nil
	}
	f.cols = append(f.cols, c)
	return nil
}

// Drop removes every column carrying one of the given names
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	f.cols = kept
}

// Rename renames columns using old → new pairs. Unknown names are ignored.
func (f *Frame) Rename(mapping map[string]string) {
	for _, c := range f.cols {
		if n, ok := mapping[c.Name]; ok {
			c.Name = n
		}
	}
}

// SetNames renames all columns positionally
func (f *Frame) SetNames(names []string) error {
	if len(names) != len(f.cols) {
		return fmt.Errorf("got %d names for %d columns", len(names), len(f.cols))
	}
	for i, c := range f.cols {
		c.Name = names[i]
	}
	return nil
}

// Select returns a frame holding the named columns in the given order.
// Columns are shared with f.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{rows: f.rows}
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		out.cols = append(out.cols, c)
	}
	return out, nil
}

// Filter returns a new frame with the rows for which keep returns true
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	out := &Frame{rows: len(rows), cols: make([]*Column, len(f.cols))}
	for i, c := range f.cols {
		out.cols[i] = c.take(rows)
	}
	return out
}

// Row returns row i as a name → value map. Later duplicate names are skipped.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.cols))
	for _, c := range f.cols {
		if _, seen := row[c.Name]; seen {
			continue
		}
		row[c.Name] = c.Value(i)
	}
	return row
}

// Concat stacks frames vertically over the union of their columns, in order
// of first appearance. Cells missing from a frame become NaN, "" or the zero
// time. Integer columns meeting float columns, or missing from any frame, are
// widened to float so the gaps can hold NaN.
func Concat(frames ...*Frame) (*Frame, error) {
	var order []string
	kinds := make(map[string]Kind)
	for _, f := range frames {
		if f == nil {
			return nil, errors.New("cannot concatenate a nil frame")
		}
		for _, c := range f.cols {
			k, seen := kinds[c.Name]
			if !seen {
				order = append(order, c.Name)
				kinds[c.Name] = c.Kind
				continue
			}
			if k != c.Kind && isNumeric(k) && isNumeric(c.Kind) {
				kinds[c.Name] = KindFloat
			}
		}
	}

	for _, name := range order {
		if kinds[name] != KindInt {
			continue
		}
		for _, f := range frames {
			if _, err := f.Column(name); err != nil {
				kinds[name] = KindFloat
				break
			}
		}
	}

	out := &Frame{}
	for _, name := range order {
		col := empty(name, kinds[name], 0)
		for _, f := range frames {
			src, err := f.Column(name)
			if err != nil {
				src = empty(name, kinds[name], f.rows)
			}
			if err := appendColumn(col, src); err != nil {
				return nil, err
			}
		}
		out.cols = append(out.cols, col)
	}
	for _, f := range frames {
		out.rows += f.rows
	}
	return out, nil
}

// GroupBySum groups rows by the string key columns and sums the numeric
// metric columns. NaN cells are skipped; a group with no values sums to NaN.
// Groups are returned sorted by key.
func (f *Frame) GroupBySum(keys []string, metrics []string) (*Frame, error) {
	keyCols := make([][]string, len(keys))
	for i, k := range keys {
		values, err := f.Strings(k)
		if err != nil {
			return nil, err
		}
		keyCols[i] = values
	}
	metricCols := make([]*Column, len(metrics))
	for i, m := range metrics {
		c, err := f.Column(m)
		if err != nil {
			return nil, err
		}
		if !isNumeric(c.Kind) {
			return nil, fmt.Errorf("column %q is %s, not numeric", m, c.Kind)
		}
		metricCols[i] = c
	}

	type group struct {
		key  []string
		sums []float64
		seen []bool
	}
	groups := make(map[string]*group)
	for r := 0; r < f.rows; r++ {
		key := make([]string, len(keys))
		for i := range keys {
			key[i] = keyCols[i][r]
		}
		id := strings.Join(key, "\x00")
		g, ok := groups[id]
		if !ok {
			g = &group{key: key, sums: make([]float64, len(metrics)), seen: make([]bool, len(metrics))}
			groups[id] = g
		}
		for i, c := range metricCols {
			var v float64
			if c.Kind == KindInt {
				v = float64(c.Ints[r])
			} else {
				v = c.Floats[r]
			}
			if math.IsNaN(v) {
				continue
			}
			g.sums[i] += v
			g.seen[i] = true
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := &Frame{rows: len(ids)}
	for i, k := range keys {
		values := make([]string, len(ids))
		for r, id := range ids {
			values[r] = groups[id].key[i]
		}
		out.cols = append(out.cols, NewString(k, values))
	}
	for i, m := range metrics {
		values := make([]float64, len(ids))
		for r, id := range ids {
			g := groups[id]
			if g.seen[i] {
				values[r] = g.sums[i]
			} else {
				values[r] = math.NaN()
			}
		}
		out.cols = append(out.cols, NewFloat(m, values))
	}
	return out, nil
}

// FillNaN replaces NaN in every float column with v
func (f *Frame) FillNaN(v float64) {
	for _, c := range f.cols {
		if c.Kind != KindFloat {
			continue
		}
		for i, x := range c.Floats {
			if math.IsNaN(x) {
				c.Floats[i] = v
			}
		}
	}
}

// AsInt converts the named float columns to integer columns, truncating
// toward zero. NaN cells are an error.
func (f *Frame) AsInt(names ...string) error {
	for _, n := range names {
		i := f.IndexOf(n)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrColumnNotFound, n)
		}
		c := f.cols[i]
		switch c.Kind {
		case KindInt:
			continue
		case KindFloat:
		default:
			return fmt.Errorf("column %q is %s, not numeric", n, c.Kind)
		}
		ints := make([]int64, len(c.Floats))
		for r, x := range c.Floats {
			if math.IsNaN(x) {
				return fmt.Errorf("column %q row %d: cannot convert NaN to int", n, r)
			}
			ints[r] = int64(x)
		}
		f.cols[i] = NewInt(n, ints)
	}
	return nil
}
