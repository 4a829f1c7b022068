package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentinels written in place of cells that are not valid integers.
// Both lie outside the domain of any real count.
const (
	BlankSentinel   int64 = -1000
	InvalidSentinel int64 = -1001
)

// CellClass is the classification of a raw numeric cell
type CellClass int

const (
	CellNumeric CellClass = iota
	CellBlank
	CellInvalid
)

// IntResult is the outcome of coercing a column of raw strings
type IntResult struct {
	Values  []int64
	Blank   []int // row positions classified blank
	Invalid []int // row positions classified invalid
}

// ClassifyInt cleans a raw cell and classifies it. Whitespace and thousands
// separators are removed; only plain digit strings are numeric.
func ClassifyInt(raw string) (int64, CellClass) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return BlankSentinel, CellBlank
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return InvalidSentinel, CellInvalid
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return InvalidSentinel, CellInvalid
	}
	return v, CellNumeric
}

// Ints coerces every cell. It never fails: blank cells become BlankSentinel
// and invalid cells become InvalidSentinel.
func Ints(raw []string) IntResult {
	res := IntResult{Values: make([]int64, len(raw))}
	for i, cell := range raw {
		v, class := ClassifyInt(cell)
		res.Values[i] = v
		switch class {
		case CellBlank:
			res.Blank = append(res.Blank, i)
		case CellInvalid:
			res.Invalid = append(res.Invalid, i)
		}
	}
	return res
}

// Count parses a count from an API feed. Blank cells are zero; decimal
// renderings such as "12.0" are truncated.
func Count(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	return int64(v), nil
}

// Float parses a metric or coordinate. Blank cells are NaN and ok; cells that
// do not parse are NaN and not ok.
func Float(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
