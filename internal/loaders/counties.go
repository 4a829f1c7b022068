package loaders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"covidqc/internal/diagnostics"
	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
)

// Source tags stamped on county rows
const (
	SourceCDS  = "cds"
	SourceCSBS = "csbs"
	SourceNYT  = "nyt"
)

// CountyMetrics are summed by the county rollup
var CountyMetrics = []string{"cases", "deaths", "recovered"}

// countyFrame assembles the canonical county shape. metrics holds raw cells
// per metric name; a nil slice means the feed has no such column.
func countyFrame(source string, counties, states []string, metrics map[string][]string, lastUpdated []string, log *diagnostics.Log) (*frame.Frame, error) {
	labels := make([]string, len(counties))
	for i := range counties {
		labels[i] = counties[i] + ", " + states[i]
	}

	cols := []*frame.Column{
		frame.NewString("county", counties),
		frame.NewCategory("state", states),
	}
	for _, name := range []string{"cases", "deaths", "recovered", "lat", "long"} {
		cols = append(cols, floatColumn(name, metrics[name], labels, source, log))
	}
	if lastUpdated != nil {
		cols = append(cols, frame.NewString("last_updated", lastUpdated))
	}
	tags := make([]string, len(counties))
	for i := range tags {
		tags[i] = source
	}
	cols = append(cols, frame.NewCategory("source", tags))
	return frame.New(cols...)
}

// optional returns the named column or nil when the feed lacks it
func optional(f *frame.Frame, name string) []string {
	values, err := f.Strings(name)
	if err != nil {
		return nil
	}
	return values
}

func required(f *frame.Frame, source string, names ...string) ([][]string, error) {
	out := make([][]string, len(names))
	for i, n := range names {
		values, err := f.Strings(n)
		if err != nil {
			return nil, apperrors.NewParsingError(source+" feed is missing a required column", err).WithContext("column", n)
		}
		out[i] = values
	}
	return out, nil
}

// NormalizeCDS keeps US county rows of the scraped feed and strips the
// "County" suffix from county names.
func NormalizeCDS(raw *frame.Frame, log *diagnostics.Log) (*frame.Frame, error) {
	cols, err := required(raw, SourceCDS, "country", "county", "state")
	if err != nil {
		return nil, err
	}
	country, county := cols[0], cols[1]
	f := raw.Filter(func(i int) bool {
		return country[i] == "USA" && strings.TrimSpace(county[i]) != ""
	})

	counties, _ := f.Strings("county")
	states, _ := f.Strings("state")
	names := make([]string, len(counties))
	for i, c := range counties {
		names[i] = strings.TrimSpace(strings.Replace(c, "County", "", 1))
	}

	metrics := map[string][]string{}
	for _, m := range []string{"cases", "deaths", "recovered", "lat", "long"} {
		metrics[m] = optional(f, m)
	}
	return countyFrame(SourceCDS, names, states, metrics, nil, log)
}

// NormalizeNYT keeps the rows of the most recent date in the editorial feed
// and maps full state names to codes.
func NormalizeNYT(raw *frame.Frame, log *diagnostics.Log) (*frame.Frame, error) {
	cols, err := required(raw, SourceNYT, "date", "county", "state")
	if err != nil {
		return nil, err
	}
	dates := cols[0]
	latest := ""
	for _, d := range dates {
		if d > latest {
			latest = d
		}
	}
	f := raw.Filter(func(i int) bool { return dates[i] == latest })

	counties, _ := f.Strings("county")
	names, _ := f.Strings("state")
	lastUpdated, _ := f.Strings("date")
	states := make([]string, len(names))
	for i, n := range names {
		states[i] = StateCode(n)
	}

	metrics := map[string][]string{
		"cases":  optional(f, "cases"),
		"deaths": optional(f, "deaths"),
	}
	return countyFrame(SourceNYT, counties, states, metrics, lastUpdated, log)
}

// CSBSDocument is the reporting API's location list
type CSBSDocument struct {
	Locations []CSBSLocation `json:"locations"`
}

// CSBSLocation is one reported place
type CSBSLocation struct {
	ID          int    `json:"id"`
	Country     string `json:"country"`
	Province    string `json:"province"`
	County      string `json:"county"`
	LastUpdated string `json:"last_updated"`
	Coordinates struct {
		Latitude  FlexNumber `json:"latitude"`
		Longitude FlexNumber `json:"longitude"`
	} `json:"coordinates"`
	Latest struct {
		Confirmed FlexNumber `json:"confirmed"`
		Deaths    FlexNumber `json:"deaths"`
		Recovered FlexNumber `json:"recovered"`
	} `json:"latest"`
}

// FlexNumber holds a JSON number, numeric string or null as its raw text
type FlexNumber string

// UnmarshalJSON accepts numbers, strings and null
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FlexNumber(s)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("invalid number %s: %w", data, err)
		}
		*n = FlexNumber(num.String())
	}
	return nil
}

// NormalizeCSBS keeps the US locations of the reporting API
func NormalizeCSBS(doc *CSBSDocument, log *diagnostics.Log) (*frame.Frame, error) {
	if doc == nil {
		return nil, apperrors.NewParsingError("csbs document is empty", nil)
	}
	var counties, states, lastUpdated []string
	metrics := map[string][]string{}
	for _, loc := range doc.Locations {
		if loc.Country != "US" {
			continue
		}
		counties = append(counties, loc.County)
		states = append(states, StateCode(loc.Province))
		lastUpdated = append(lastUpdated, loc.LastUpdated)
		metrics["cases"] = append(metrics["cases"], string(loc.Latest.Confirmed))
		metrics["deaths"] = append(metrics["deaths"], string(loc.Latest.Deaths))
		metrics["recovered"] = append(metrics["recovered"], string(loc.Latest.Recovered))
		metrics["lat"] = append(metrics["lat"], string(loc.Coordinates.Latitude))
		metrics["long"] = append(metrics["long"], string(loc.Coordinates.Longitude))
	}
	if lastUpdated == nil {
		lastUpdated = []string{}
	}
	return countyFrame(SourceCSBS, counties, states, metrics, lastUpdated, log)
}
