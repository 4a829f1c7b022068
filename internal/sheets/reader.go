// Package sheets reads rectangular ranges out of named spreadsheets, either
// through the Google Sheets API or from local Excel workbooks.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"covidqc/internal/frame"
)

// ListOptions controls how ReadList flattens a range
type ListOptions struct {
	IgnoreBlank bool // drop cells that are empty after trimming
	SingleRow   bool // read only the first row of the range
}

// Reader is the spreadsheet collaborator used by the loaders
type Reader interface {
	// SheetIDByName resolves a configured spreadsheet name to its id
	SheetIDByName(ctx context.Context, name string) (string, error)
	// ReadList returns the cells of rng as a flat list in row-major order
	ReadList(ctx context.Context, id, rng string, opts ListOptions) ([]string, error)
	// ReadFrame returns rng as a frame whose labels come from the first
	// headerRows rows
	ReadFrame(ctx context.Context, id, rng string, headerRows int) (*frame.Frame, error)
}

// Range is a parsed A1 range. Rows and columns are 1-based and inclusive.
type Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// Width returns the number of columns in the range
func (r Range) Width() int {
	return r.EndCol - r.StartCol + 1
}

// Height returns the number of rows in the range
func (r Range) Height() int {
	return r.EndRow - r.StartRow + 1
}

// ParseRange parses "Sheet!A1:B2". The sheet name may be single-quoted.
func ParseRange(s string) (Range, error) {
	i := strings.LastIndex(s, "!")
	if i <= 0 {
		return Range{}, fmt.Errorf("range %q has no sheet name", s)
	}
	sheet := s[:i]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}

	from, to, ok := strings.Cut(s[i+1:], ":")
	if !ok {
		to = from
	}
	c1, r1, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(to)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if c2 < c1 || r2 < r1 {
		return Range{}, fmt.Errorf("range %q is inverted", s)
	}
	return Range{Sheet: sheet, StartCol: c1, StartRow: r1, EndCol: c2, EndRow: r2}, nil
}

func flatten(rows [][]string, opts ListOptions) []string {
	if opts.SingleRow && len(rows) > 1 {
		rows = rows[:1]
	}
	var out []string
	for _, row := range rows {
		for _, cell := range row {
			if opts.IgnoreBlank && strings.TrimSpace(cell) == "" {
				continue
			}
			out = append(out, cell)
		}
	}
	return out
}

// toFrame builds a frame from the cells of a range. Multi-row headers are
// joined with a space per column; every row is padded to width.
func toFrame(rows [][]string, headerRows, width int) (*frame.Frame, error) {
	if headerRows < 1 {
		return nil, fmt.Errorf("header rows must be at least 1, got %d", headerRows)
	}
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	header := make([]string, width)
	for h := 0; h < headerRows && h < len(rows); h++ {
		for j, cell := range rows[h] {
			cell = strings.TrimSpace(cell)
			switch {
			case cell == "":
			case header[j] == "":
				header[j] = cell
			default:
				header[j] += " " + cell
			}
		}
	}

	var body [][]string
	if len(rows) > headerRows {
		body = rows[headerRows:]
	}
	return frame.FromRecords(header, body), nil
}
