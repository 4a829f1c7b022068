package loaders

import (
	"strconv"
	"strings"
	"time"

	"covidqc/internal/coerce"
	"covidqc/internal/frame"
)

// CurrentCounts are the integer columns every current-values feed carries
var CurrentCounts = []string{
	"positive", "negative", "pending", "hospitalized", "death", "recovered",
	"total", "totalTestResults",
	"hospitalizedCumulative", "inIcuCumulative", "onVentilatorCumulative",
	"positiveScore", "negativeScore", "negativeRegularScore", "commercialScore", "score",
}

// HistoryCounts are the integer columns every daily history feed carries
var HistoryCounts = []string{
	"positive", "negative", "pending", "hospitalized", "death", "recovered",
	"total", "totalTestResults",
	"positiveIncrease", "negativeIncrease", "hospitalizedIncrease",
	"deathIncrease", "totalTestResultsIncrease",
	"hospitalizedCumulative", "inIcuCumulative", "onVentilatorCumulative",
}

// ExtraCounts appeared in later revisions of both feeds. They are cast
// when present.
var ExtraCounts = []string{
	"hospitalizedCurrently", "inIcuCurrently", "onVentilatorCurrently", "posNeg",
}

const (
	monthDayLayout = "1/2/2006 15:04"
	historyLayout  = "20060102"
)

// NormalizeCurrent casts the current-values feed. Eastern month/day
// timestamps get year added; ISO timestamps are parsed as UTC.
func NormalizeCurrent(raw *frame.Frame, year int) (*frame.Frame, error) {
	if err := countColumns(raw, CurrentCounts); err != nil {
		return nil, err
	}
	if err := countColumns(raw, present(raw, ExtraCounts)); err != nil {
		return nil, err
	}

	withYear := func(s string) string {
		return strings.Replace(s, " ", "/"+strconv.Itoa(year)+" ", 1)
	}
	for _, col := range []string{"lastUpdateEt", "checkTimeEt"} {
		if err := timeColumn(raw, col, monthDayLayout, coerce.Eastern(), withYear); err != nil {
			return nil, err
		}
	}
	for _, col := range []string{"dateModified", "dateChecked"} {
		if err := timeColumn(raw, col, time.RFC3339, time.UTC, nil); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// NormalizeHistory casts the daily history feed
func NormalizeHistory(raw *frame.Frame) (*frame.Frame, error) {
	if err := countColumns(raw, HistoryCounts); err != nil {
		return nil, err
	}
	if err := countColumns(raw, present(raw, ExtraCounts)); err != nil {
		return nil, err
	}
	if err := timeColumn(raw, "date", historyLayout, time.UTC, nil); err != nil {
		return nil, err
	}
	if err := timeColumn(raw, "dateChecked", time.RFC3339, time.UTC, nil); err != nil {
		return nil, err
	}
	return raw, nil
}

func present(f *frame.Frame, cols []string) []string {
	var out []string
	for _, c := range cols {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
