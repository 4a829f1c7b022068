package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/xuri/excelize/v2"

	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
)

// ExcelReader reads ranges from local workbooks. Spreadsheet ids are the
// workbook paths.
type ExcelReader struct {
	paths  map[string]string // name -> workbook path
	logger *slog.Logger
}

// NewExcelReader creates a reader over the given name -> path mapping
func NewExcelReader(paths map[string]string, logger *slog.Logger) *ExcelReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelReader{
		paths:  paths,
		logger: logger.With(slog.String("component", "sheets"), slog.String("backend", "excel")),
	}
}

// SheetIDByName implements Reader
func (x *ExcelReader) SheetIDByName(ctx context.Context, name string) (string, error) {
	path, ok := x.paths[name]
	if !ok || path == "" {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("workbook %q", name))
	}
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("workbook %q at %s", name, path))
	}
	return path, nil
}

// ReadList implements Reader
func (x *ExcelReader) ReadList(ctx context.Context, id, rng string, opts ListOptions) ([]string, error) {
	rows, _, err := x.read(id, rng)
	if err != nil {
		return nil, err
	}
	return flatten(rows, opts), nil
}

// ReadFrame implements Reader
func (x *ExcelReader) ReadFrame(ctx context.Context, id, rng string, headerRows int) (*frame.Frame, error) {
	rows, r, err := x.read(id, rng)
	if err != nil {
		return nil, err
	}
	return toFrame(rows, headerRows, r.Width())
}

// read returns the cells of rng, trimming trailing empty rows the way the
// Sheets API does.
func (x *ExcelReader) read(path, rng string) ([][]string, Range, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return nil, Range{}, apperrors.NewAppValidationError(err.Error())
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, Range{}, apperrors.NewParsingError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	all, err := f.GetRows(r.Sheet)
	if err != nil {
		return nil, Range{}, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", r.Sheet), err)
	}

	var rows [][]string
	for i := r.StartRow - 1; i < r.EndRow && i < len(all); i++ {
		src := all[i]
		row := make([]string, 0, r.Width())
		for j := r.StartCol - 1; j < r.EndCol && j < len(src); j++ {
			row = append(row, src[j])
		}
		rows = append(rows, row)
	}
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}

	x.logger.Debug("range read",
		slog.String("path", path),
		slog.String("range", rng),
		slog.Int("rows", len(rows)),
	)
	return rows, r, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
