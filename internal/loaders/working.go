package loaders

import (
	"log/slog"
	"time"

	"covidqc/internal/coerce"
	"covidqc/internal/diagnostics"
	"covidqc/internal/frame"
)

// NormalizeWorking maps the working sheet's labels onto field names,
// coerces the count columns lying between localTime and lastUpdateEt,
// standardizes the three date columns and drops rows without a state.
// A label set that differs from WorkingColumns is schema drift.
func NormalizeWorking(raw *frame.Frame, ref time.Time, log *diagnostics.Log, logger *slog.Logger) (*frame.Frame, error) {
	labels := raw.Names()
	for i, l := range labels {
		labels[i] = NormalizeLabel(l)
	}
	if err := raw.SetNames(labels); err != nil {
		return nil, err
	}

	if err := checkColumns(labels, WorkingColumns, logger); err != nil {
		return nil, err
	}

	var drop []string
	for _, l := range labels {
		if WorkingColumns[l] == "" {
			drop = append(drop, l)
		}
	}
	raw.Drop(drop...)
	raw.Rename(WorkingColumns)

	names := raw.Names()
	start, end := raw.IndexOf("localTime"), raw.IndexOf("lastUpdateEt")
	for i := start + 1; i < end; i++ {
		if err := convertIntColumn(raw, names[i], log, logger); err != nil {
			return nil, err
		}
	}

	if err := dateColumn(raw, "localTime", ref, time.UTC); err != nil {
		return nil, err
	}
	if err := dateColumn(raw, "lastUpdateEt", ref, coerce.Eastern()); err != nil {
		return nil, err
	}
	if err := dateColumn(raw, "lastCheckEt", ref, coerce.Eastern()); err != nil {
		return nil, err
	}

	states, err := raw.Strings("state")
	if err != nil {
		return nil, err
	}
	return raw.Filter(func(i int) bool { return states[i] != "" }), nil
}
