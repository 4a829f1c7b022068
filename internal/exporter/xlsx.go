package exporter

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"covidqc/internal/frame"
)

// Sheet is one dataset destined for a workbook sheet
type Sheet struct {
	Name  string
	Frame *frame.Frame
}

const timeFormat = "yyyy-mm-dd hh:mm"

// WriteWorkbook writes sheets into a new xlsx workbook at path. Sheets with
// a nil frame are skipped.
func WriteWorkbook(path string, sheets []Sheet) error {
	wb := excelize.NewFile()
	defer wb.Close()

	timeStyle, err := wb.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(timeFormat)})
	if err != nil {
		return fmt.Errorf("failed to create time style: %w", err)
	}

	written := 0
	for _, s := range sheets {
		if s.Frame == nil {
			continue
		}
		if written == 0 {
			if err := wb.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", s.Name, err)
			}
		} else if _, err := wb.NewSheet(s.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(wb, s.Name, s.Frame, timeStyle); err != nil {
			return err
		}
		written++
	}
	if written == 0 {
		return fmt.Errorf("no datasets to write")
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(wb *excelize.File, sheet string, f *frame.Frame, timeStyle int) error {
	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet %s: %w", sheet, err)
	}

	names := f.Names()
	header := make([]interface{}, len(names))
	for i, n := range names {
		header[i] = n
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}

	cols := f.Columns()
	row := make([]interface{}, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			row[j] = cellValue(c, i, timeStyle)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i, sheet, err)
		}
	}
	return sw.Flush()
}

func cellValue(c *frame.Column, i int, timeStyle int) interface{} {
	switch v := c.Value(i).(type) {
	case nil:
		return nil
	case time.Time:
		return excelize.Cell{StyleID: timeStyle, Value: v}
	default:
		return v
	}
}

func stringPtr(s string) *string {
	return &s
}
