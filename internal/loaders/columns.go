package loaders

import (
	"log/slog"
	"sort"
	"strings"

	apperrors "covidqc/internal/errors"
)

// WorkingColumns maps every label the working sheet may carry to its
// normalized field name. An empty target means the column is dropped.
var WorkingColumns = map[string]string{
	"State": "state",

	"Dashboard":            "",
	"State Name":           "",
	"State COVID-19 Page":  "",
	"State Social Media":   "",
	"Press Conferences":    "",
	"GIS Query":            "",
	"Other":                "",
	"#Reporting":           "",
	"URL Watch":            "",
	"Status":               "",
	"URL Watch Diff":       "",
	"Alerted":              "",
	"Last Alert":           "",
	"Error":                "",
	"Prev Last Check (ET)": "",
	"Freshness":            "",
	"Flagged":              "",
	"Time zone +/–":        "",
	"Public":               "",
	"":                     "",

	"Local Time":               "localTime",
	"Positive":                 "positive",
	"Negative":                 "negative",
	"Pending":                  "pending",
	"Currently Hospitalized":   "hospitalized",
	"Cumulative Hospitalized":  "hospitalizedCumulative",
	"Currently in ICU":         "inIcu",
	"Cumulative in ICU":        "inIcuCumulative",
	"Currently on Ventilator":  "onVentilator",
	"Cumulative on Ventilator": "onVentilatorCumulative",
	"Recovered":                "recovered",
	"Deaths":                   "death",
	"Total":                    "total",
	"Last Update (ET)":         "lastUpdateEt",
	"Last Check (ET)":          "lastCheckEt",
	"Checker":                  "checker",
	"Doublechecker":            "doubleChecker",
}

var labelReplacer = strings.NewReplacer("\r", "", "\n", " ")

// NormalizeLabel removes carriage returns, turns line breaks into spaces,
// collapses runs of spaces and trims.
func NormalizeLabel(s string) string {
	s = labelReplacer.Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// checkColumns validates labels against mapping in one pass. Every label
// absent from mapping and every mapping key absent from labels is reported
// together.
func checkColumns(labels []string, mapping map[string]string, logger *slog.Logger) error {
	present := make(map[string]bool, len(labels))
	var unexpected []string
	for _, l := range labels {
		if present[l] {
			continue
		}
		present[l] = true
		if _, ok := mapping[l]; !ok {
			logger.Error("unexpected column in working sheet", slog.String("column", l))
			unexpected = append(unexpected, l)
		}
	}

	var missing []string
	for key := range mapping {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, m := range missing {
		logger.Error("missing column in working sheet", slog.String("column", m))
	}

	if len(unexpected) > 0 || len(missing) > 0 {
		return apperrors.NewSchemaDriftError("columns in working sheet have changed", unexpected, missing)
	}
	return nil
}
