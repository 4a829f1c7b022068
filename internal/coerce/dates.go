package coerce

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"covidqc/internal/frame"
)

// DateLayout is the fixed month/day/year hour:minute format every repaired
// date string parses under.
const DateLayout = "1/2/2006 15:04"

// canonicalLayout is what repaired strings are written in
const canonicalLayout = "01/02/2006 15:04"

// DateCode classifies what StandardizeDate had to do to an input
type DateCode int

const (
	DateUnchanged DateCode = iota
	DateChanged
	DateBlank
	DateMissingDate
	DateMissingTime
	DateBadDate
	DateBadTime
)

var dateMessages = [...]string{"", "changed", "blank", "missing date", "missing time", "bad date", "bad time"}

// Message returns the companion-column text for the code
func (c DateCode) Message() string {
	if c < 0 || int(c) >= len(dateMessages) {
		return fmt.Sprintf("code(%d)", int(c))
	}
	return dateMessages[c]
}

func (c DateCode) String() string {
	if c == DateUnchanged {
		return "unchanged"
	}
	return c.Message()
}

var (
	datePattern = regexp.MustCompile(`^(\d{1,4})[/.\-](\d{1,2})(?:[/.\-](\d{1,4}))?$`)
	timePattern = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})(?::(\d{1,2}))?$`)
)

// StandardizeDate repairs a free-form date/time string so it parses under
// DateLayout and classifies the repair. ref supplies the calendar date when
// the date is missing or unusable and the year when only month/day are given.
// Blank input yields "". Every input maps to exactly one result.
func StandardizeDate(s string, ref time.Time) (string, DateCode) {
	if _, err := time.Parse(DateLayout, s); err == nil {
		return s, DateUnchanged
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return t.Format(canonicalLayout), DateChanged
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", DateBlank
	}

	var datePart, timePart, meridiem string
	unknown := false
	for _, f := range fields {
		upper := strings.ToUpper(f)
		if upper == "AM" || upper == "PM" {
			meridiem = upper
			continue
		}
		if strings.HasSuffix(upper, "AM") || strings.HasSuffix(upper, "PM") {
			meridiem = upper[len(upper)-2:]
			f = f[:len(f)-2]
		}
		switch {
		case timePart == "" && strings.Contains(f, ":"):
			timePart = f
		case datePart == "" && datePattern.MatchString(f):
			datePart = f
		default:
			unknown = true
		}
	}

	code := DateChanged
	year, month, day := ref.Date()

	switch {
	case datePart != "":
		y, m, d, ok := parseDatePart(datePart, year)
		if ok {
			year, month, day = y, m, d
		} else {
			code = DateBadDate
		}
	case timePart != "" && !unknown:
		code = DateMissingDate
	default:
		code = DateBadDate
	}

	// a stray token next to a usable date is read as a broken time
	hour, minute := 0, 0
	if unknown && code == DateChanged {
		code = DateBadTime
	} else if timePart == "" {
		if code == DateChanged {
			code = DateMissingTime
		}
	} else if h, mi, ok := parseTimePart(timePart, meridiem); ok {
		hour, minute = h, mi
	} else if code == DateChanged {
		code = DateBadTime
	}

	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC).Format(canonicalLayout), code
}

func parseDatePart(s string, defaultYear int) (int, time.Month, int, bool) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])

	var year, month, day int
	if len(m[1]) == 4 {
		if m[3] == "" {
			return 0, 0, 0, false
		}
		year, month = a, b
		day, _ = strconv.Atoi(m[3])
	} else {
		month, day, year = a, b, defaultYear
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			switch len(m[3]) {
			case 1, 2:
				year += 2000
			case 4:
			default:
				return 0, 0, 0, false
			}
		}
	}

	if month < 1 || month > 12 || day < 1 {
		return 0, 0, 0, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return 0, 0, 0, false
	}
	return year, time.Month(month), day, true
}

func parseTimePart(s, meridiem string) (int, int, bool) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	if meridiem != "" {
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		switch {
		case meridiem == "PM" && hour < 12:
			hour += 12
		case meridiem == "AM" && hour == 12:
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ParseStandardized parses a repaired string in loc. The empty string is the
// zero time.
func ParseStandardized(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// ConvertDates standardizes a column of raw strings into a timestamp column
// and a "<name>_msg" category column holding each row's classification.
func ConvertDates(name string, raw []string, ref time.Time, loc *time.Location) (*frame.Column, *frame.Column, error) {
	times := make([]time.Time, len(raw))
	msgs := make([]string, len(raw))
	for i, cell := range raw {
		fixed, code := StandardizeDate(cell, ref)
		t, err := ParseStandardized(fixed, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", name, i, err)
		}
		times[i] = t
		msgs[i] = code.Message()
	}
	return frame.NewTime(name, times), frame.NewCategory(name+"_msg", msgs), nil
}

var eastern = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
})

// Eastern returns the US/Eastern location used for "as eastern" conversions
func Eastern() *time.Location {
	return eastern()
}
