package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// WorkingHeaderCells is the non-blank content of the working sheet's
// header strip.
var WorkingHeaderCells = []string{
	"Last Publish Time:", "4/14 17:00",
	"Last Push Time:", "4/14 17:05",
	"CURRENT TIME: 4/14 17:32",
}

// WorkingLabels is the working sheet's label row as typed by editors,
// embedded line breaks included.
var WorkingLabels = []string{
	"State", "Dashboard", "State Name", "State COVID-19 Page", "State Social Media",
	"Press Conferences", "GIS Query", "Other", "#Reporting", "URL Watch", "Status",
	"URL Watch Diff", "Alerted", "Last Alert", "Error", "Prev Last Check (ET)",
	"Freshness", "Flagged", "Time zone +/–", "Public", "",
	"Local Time", "Positive", "Negative", "Pending",
	"Currently\r\nHospitalized", "Cumulative\nHospitalized", "Currently in ICU",
	"Cumulative  in ICU", "Currently on Ventilator", "Cumulative on Ventilator",
	"Recovered", "Deaths", "Total",
	"Last Update (ET)", "Last Check (ET)", "Checker", "Doublechecker",
}

// WorkingRows holds data rows matching WorkingLabels. The third row has no
// state and the second carries a blank and an invalid count.
var WorkingRows = [][]string{
	workingRow("CA", "4/14/2020 14:00", "1,234", "10000", "", "50", "4/14/2020 17:00", "4/14/2020 17:10"),
	workingRow("NY", "4/14/2020 17:00", " ", "12x4", "5", "7", "4/14/2020", ""),
	workingRow("", "", "", "", "", "", "", ""),
}

func workingRow(state, local, positive, negative, pending, deaths, lastUpdate, lastCheck string) []string {
	row := make([]string, len(WorkingLabels))
	row[0] = state
	if state != "" {
		row[2] = state + " name"
	}
	row[21] = local
	row[22] = positive
	row[23] = negative
	row[24] = pending
	for i := 25; i <= 31; i++ {
		if state != "" {
			row[i] = "0"
		}
	}
	row[32] = deaths
	if state != "" {
		row[33] = "11284"
	}
	row[34] = lastUpdate
	row[35] = lastCheck
	row[36] = "checker"
	row[37] = "doublechecker"
	return row
}

// CurrentCSV is a two-state snapshot of the current-values feed
const CurrentCSV = `state,positive,positiveScore,negativeScore,negativeRegularScore,commercialScore,grade,score,negative,pending,hospitalizedCurrently,hospitalizedCumulative,inIcuCurrently,inIcuCumulative,onVentilatorCurrently,onVentilatorCumulative,recovered,lastUpdateEt,checkTimeEt,death,hospitalized,total,totalTestResults,fips,dateModified,dateChecked,notes,hash
CA,1234,1,1,0,1,B,3,10000,,2000,,500,,,,,4/14 17:00,4/14 17:10,50,,11234,11234,06,2020-04-14T21:00:00Z,2020-04-14T21:10:00Z,,abc123
NY,200000,1,1,1,1,A,4,300000.0,12,18000,50000,5000,,,,25000,4/14 15:00,4/14 17:20,10000,50000,500012,500000,36,2020-04-14T19:00:00Z,2020-04-14T21:20:00Z,,def456
`

// HistoryCSV is three days of the daily history feed
const HistoryCSV = `date,state,positive,negative,pending,hospitalizedCurrently,hospitalizedCumulative,inIcuCurrently,inIcuCumulative,onVentilatorCurrently,onVentilatorCumulative,recovered,hash,dateChecked,death,hospitalized,total,totalTestResults,posNeg,fips,deathIncrease,hospitalizedIncrease,negativeIncrease,positiveIncrease,totalTestResultsIncrease
20200414,CA,1234,10000,,2000,,500,,,,,h1,2020-04-14T20:00:00Z,50,,11234,11234,11234,06,5,0,1000,100,1100
20200413,CA,1134,9000,,,,,,,,,h2,2020-04-13T20:00:00Z,45,,10134,10134,10134,06,3,0,900,90,990
20200414,NY,200000,300000,12,18000,50000,5000,,,,25000,h3,2020-04-14T20:00:00Z,10000,50000,500012,500000,500000,36,700,300,20000,9000,29000
`

// CDSCSV mixes US counties, a US state-level row, and a foreign row
const CDSCSV = `name,level,city,county,state,country,population,lat,long,cases,deaths,recovered,active,tested,date
"Los Angeles County, CA, USA",county,,Los Angeles County,CA,USA,10039107,34.05,-118.24,8430,241,,,,2020-04-14
"Orange County, CA, USA",county,,Orange County,CA,USA,3175692,33.7,-117.76,1079,17,,,,2020-04-14
"Kings County, NY, USA",county,,Kings County,NY,USA,2559903,40.63,-73.95,27000,n/a,,,,2020-04-14
"CA, USA",state,,,CA,USA,39512223,36.7,-119.4,23338,681,,,,2020-04-14
"Ontario, CAN",state,,,ON,CAN,14566547,51.2,-85.3,7470,291,,,,2020-04-14
`

// CSBSJSON mirrors the reporting API's location list
const CSBSJSON = `{"latest":{"confirmed":0,"deaths":0,"recovered":0},"locations":[
{"id":0,"country":"US","country_code":"US","province":"California","county":"Los Angeles","last_updated":"2020-04-14T21:00:00Z","coordinates":{"latitude":"34.05","longitude":"-118.24"},"latest":{"confirmed":8453,"deaths":244,"recovered":0}},
{"id":1,"country":"US","country_code":"US","province":"New York","county":"Kings","last_updated":"2020-04-14T21:00:00Z","coordinates":{"latitude":40.63,"longitude":-73.95},"latest":{"confirmed":27222,"deaths":1200,"recovered":0}},
{"id":2,"country":"US","country_code":"US","province":"Diamond Princess","county":"Unassigned","last_updated":"2020-04-14T21:00:00Z","coordinates":{"latitude":"","longitude":""},"latest":{"confirmed":46,"deaths":0,"recovered":0}},
{"id":3,"country":"Canada","country_code":"CA","province":"Ontario","county":"","last_updated":"2020-04-14T21:00:00Z","coordinates":{"latitude":"51.2","longitude":"-85.3"},"latest":{"confirmed":7470,"deaths":291,"recovered":0}}
]}`

// NYTCSV spans two days; only the later one is current
const NYTCSV = `date,county,state,fips,cases,deaths
2020-04-13,Los Angeles,California,06037,8000,230
2020-04-14,Los Angeles,California,06037,8430,241
2020-04-14,Orange,California,06059,1079,17
2020-04-14,Kings,New York,36047,27000,1100
2020-04-14,Unknown,Guam,,133,4
`

// SourceServer serves fixed payloads by path and counts requests
type SourceServer struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

// NewSourceServer starts a server answering each path in routes with its
// payload. Unknown paths get 404. The server is closed with the test.
func NewSourceServer(t *testing.T, routes map[string]string) *SourceServer {
	t.Helper()

	s := &SourceServer{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

// Hits returns how many requests a path received
func (s *SourceServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}
