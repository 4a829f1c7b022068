package loaders

import (
	"strings"

	apperrors "covidqc/internal/errors"
)

// Labels of the working sheet's header strip
const (
	LastPublishLabel  = "Last Publish Time:"
	LastPushLabel     = "Last Push Time:"
	CurrentTimePrefix = "CURRENT TIME: "
)

// HeaderTimes are the timestamps editors keep at the top of the working sheet
type HeaderTimes struct {
	LastPublishTime string `json:"last_publish_time"`
	LastPushTime    string `json:"last_push_time"`
	CurrentTime     string `json:"current_time"`
}

// ParseHeaderTimes reads the five non-blank header cells: two label/value
// pairs and a prefixed current-time cell. Any deviation is schema drift.
func ParseHeaderTimes(cells []string) (HeaderTimes, error) {
	if len(cells) != 5 {
		err := apperrors.NewSchemaDriftError("first row layout (containing dates) changed", nil, nil)
		err.WithContext("cells", len(cells))
		return HeaderTimes{}, err
	}
	publishLabel, publishValue, pushLabel, pushValue, current := cells[0], cells[1], cells[2], cells[3], cells[4]

	if publishLabel != LastPublishLabel {
		return HeaderTimes{}, apperrors.NewSchemaDriftError("Last Publish Time (cells V1:U1) moved", []string{publishLabel}, []string{LastPublishLabel})
	}
	if pushLabel != LastPushLabel {
		return HeaderTimes{}, apperrors.NewSchemaDriftError("Last Push Time (cells Z1:AA1) moved", []string{pushLabel}, []string{LastPushLabel})
	}
	if !strings.HasPrefix(current, CurrentTimePrefix) {
		return HeaderTimes{}, apperrors.NewSchemaDriftError("CURRENT TIME (cell AG1) moved", []string{current}, []string{CurrentTimePrefix})
	}

	return HeaderTimes{
		LastPublishTime: publishValue,
		LastPushTime:    pushValue,
		CurrentTime:     strings.TrimSpace(current[strings.Index(current, ":")+1:]),
	}, nil
}
