package loaders

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"covidqc/internal/coerce"
	"covidqc/internal/diagnostics"
	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
)

// convertIntColumn replaces a string column with its safe integer coercion.
// Blank cells become coerce.BlankSentinel and invalid cells become
// coerce.InvalidSentinel with one error diagnostic each. Only a missing
// column is an error.
func convertIntColumn(f *frame.Frame, col string, log *diagnostics.Log, logger *slog.Logger) error {
	raw, err := f.Strings(col)
	if err != nil {
		return err
	}
	states, _ := f.Strings("state")

	res := coerce.Ints(raw)
	if len(res.Invalid) > 0 {
		bad := make([]string, 0, len(res.Invalid))
		for _, i := range res.Invalid {
			state := ""
			if states != nil {
				state = states[i]
			}
			bad = append(bad, fmt.Sprintf("%s=%q", state, raw[i]))
			log.Error(fmt.Sprintf("Invalid %s value (%s) for %s", col, raw[i], state), nil)
		}
		logger.Error("invalid input values",
			slog.String("column", col),
			slog.String("values", strings.Join(bad, ", ")),
		)
	}
	return f.Set(frame.NewInt(col, res.Values))
}

// countColumns casts API count columns to integers. Blank cells are zero and
// decimal renderings are truncated; anything else fails the load.
func countColumns(f *frame.Frame, cols []string) error {
	for _, col := range cols {
		raw, err := f.Strings(col)
		if err != nil {
			return apperrors.NewParsingError("missing count column", err).WithContext("column", col)
		}
		values := make([]int64, len(raw))
		for i, cell := range raw {
			v, err := coerce.Count(cell)
			if err != nil {
				return apperrors.NewParsingError(fmt.Sprintf("column %s row %d", col, i), err)
			}
			values[i] = v
		}
		if err := f.Set(frame.NewInt(col, values)); err != nil {
			return err
		}
	}
	return nil
}

// floatColumn converts a county metric or coordinate. Absent columns become
// all-NaN. Cells that do not parse become NaN with a warning naming the row.
func floatColumn(name string, raw []string, labels []string, source string, log *diagnostics.Log) *frame.Column {
	values := make([]float64, len(labels))
	for i := range labels {
		cell := ""
		if raw != nil {
			cell = raw[i]
		}
		v, ok := coerce.Float(cell)
		if !ok {
			log.Warning(fmt.Sprintf("Invalid %s value (%s) for %s in %s", name, cell, labels[i], source), nil)
		}
		values[i] = v
	}
	return frame.NewFloat(name, values)
}

// timeColumn parses a column with layout in loc. Blank cells are the zero
// time; any other unparseable cell fails the load.
func timeColumn(f *frame.Frame, col, layout string, loc *time.Location, prepare func(string) string) error {
	raw, err := f.Strings(col)
	if err != nil {
		return apperrors.NewParsingError("missing date column", err).WithContext("column", col)
	}
	values := make([]time.Time, len(raw))
	for i, cell := range raw {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if prepare != nil {
			cell = prepare(cell)
		}
		t, err := time.ParseInLocation(layout, cell, loc)
		if err != nil {
			return apperrors.NewParsingError(fmt.Sprintf("column %s row %d", col, i), err)
		}
		values[i] = t
	}
	return f.Set(frame.NewTime(col, values))
}

// dateColumn standardizes a working-sheet date column and adds its
// "<col>_msg" companion.
func dateColumn(f *frame.Frame, col string, ref time.Time, loc *time.Location) error {
	raw, err := f.Strings(col)
	if err != nil {
		return err
	}
	times, msgs, err := coerce.ConvertDates(col, raw, ref, loc)
	if err != nil {
		return apperrors.NewParsingError("date standardization failed", err)
	}
	if err := f.Set(times); err != nil {
		return err
	}
	return f.Set(msgs)
}
