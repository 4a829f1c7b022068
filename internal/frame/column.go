package frame

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the declared semantic type of a column
type Kind int

const (
	KindString Kind = iota
	KindCategory
	KindInt
	KindFloat
	KindTime
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindCategory:
		return "category"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named, typed vector. Exactly one of the backing slices is
// populated, selected by Kind. String and category columns share Strings.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Ints    []int64
	Floats  []float64
	Times   []time.Time
}

// NewString creates a string column
func NewString(name string, values []string) *Column {
	return &Column{Name: name, Kind: KindString, Strings: values}
}

// NewCategory creates a category column
func NewCategory(name string, values []string) *Column {
	return &Column{Name: name, Kind: KindCategory, Strings: values}
}

// NewInt creates an integer column
func NewInt(name string, values []int64) *Column {
	return &Column{Name: name, Kind: KindInt, Ints: values}
}

// NewFloat creates a float column. NaN marks a missing value.
func NewFloat(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindFloat, Floats: values}
}

// NewTime creates a timestamp column. The zero time marks a missing value.
func NewTime(name string, values []time.Time) *Column {
	return &Column{Name: name, Kind: KindTime, Times: values}
}

// Len returns the number of cells in the column
func (c *Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	case KindTime:
		return len(c.Times)
	default:
		return len(c.Strings)
	}
}

// Value returns cell i as an untyped value. Missing floats and times are nil.
func (c *Column) Value(i int) any {
	switch c.Kind {
	case KindInt:
		return c.Ints[i]
	case KindFloat:
		if math.IsNaN(c.Floats[i]) {
			return nil
		}
		return c.Floats[i]
	case KindTime:
		if c.Times[i].IsZero() {
			return nil
		}
		return c.Times[i]
	default:
		return c.Strings[i]
	}
}

// Format renders cell i as text
func (c *Column) Format(i int) string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.Ints[i], 10)
	case KindFloat:
		if math.IsNaN(c.Floats[i]) {
			return ""
		}
		return strconv.FormatFloat(c.Floats[i], 'f', -1, 64)
	case KindTime:
		if c.Times[i].IsZero() {
			return ""
		}
		return c.Times[i].Format(time.RFC3339)
	default:
		return c.Strings[i]
	}
}

// Clone returns a deep copy of the column, renamed when name is non-empty
func (c *Column) Clone(name string) *Column {
	if name == "" {
		name = c.Name
	}
	out := &Column{Name: name, Kind: c.Kind}
	switch c.Kind {
	case KindInt:
		out.Ints = append([]int64(nil), c.Ints...)
	case KindFloat:
		out.Floats = append([]float64(nil), c.Floats...)
	case KindTime:
		out.Times = append([]time.Time(nil), c.Times...)
	default:
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// take builds a new column from the given row positions
func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindInt:
		out.Ints = make([]int64, len(rows))
		for i, r := range rows {
			out.Ints[i] = c.Ints[r]
		}
	case KindFloat:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	default:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	}
	return out
}

// empty returns a column of n missing cells of the given kind
func empty(name string, kind Kind, n int) *Column {
	c := &Column{Name: name, Kind: kind}
	switch kind {
	case KindInt:
		c.Ints = make([]int64, n)
	case KindFloat:
		c.Floats = make([]float64, n)
		for i := range c.Floats {
			c.Floats[i] = math.NaN()
		}
	case KindTime:
		c.Times = make([]time.Time, n)
	default:
		c.Strings = make([]string, n)
	}
	return c
}

// appendColumn appends the cells of src to dst. Int cells are widened when
// dst is a float column.
func appendColumn(dst, src *Column) error {
	switch {
	case dst.Kind == src.Kind, isText(dst.Kind) && isText(src.Kind):
	case dst.Kind == KindFloat && src.Kind == KindInt:
		for _, v := range src.Ints {
			dst.Floats = append(dst.Floats, float64(v))
		}
		return nil
	default:
		return fmt.Errorf("column %q: cannot append %s to %s", dst.Name, src.Kind, dst.Kind)
	}

	switch dst.Kind {
	case KindInt:
		dst.Ints = append(dst.Ints, src.Ints...)
	case KindFloat:
		dst.Floats = append(dst.Floats, src.Floats...)
	case KindTime:
		dst.Times = append(dst.Times, src.Times...)
	default:
		dst.Strings = append(dst.Strings, src.Strings...)
	}
	return nil
}

func isText(k Kind) bool {
	return k == KindString || k == KindCategory
}

func isNumeric(k Kind) bool {
	return k == KindInt || k == KindFloat
}
