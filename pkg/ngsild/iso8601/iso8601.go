// Package iso8601 converts between Go time values and the ISO 8601 string
// representations that NGSI-LD mandates for temporal values.
//
// All emitted datetimes are UTC with a trailing Z. Inputs carrying another
// location are converted; callers are advised to supply location-aware
// values for reproducibility.
package iso8601

import (
	"regexp"
	"time"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
)

// TemporalType tags which of the three ISO 8601 shapes a value has.
type TemporalType string

const (
	TypeDateTime TemporalType = "DateTime"
	TypeDate     TemporalType = "Date"
	TypeTime     TemporalType = "Time"
)

const (
	DateTimeLayout string = "2006-01-02T15:04:05Z"
	DateLayout     string = "2006-01-02"
	TimeLayout     string = "15:04:05Z"
)

var datetimePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`)

// FromDateTime formats a time value as a UTC ISO 8601 datetime string.
func FromDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// UTCNow returns the current instant as a UTC ISO 8601 datetime string.
func UTCNow() string {
	return FromDateTime(time.Now())
}

// Parse accepts a time.Time or one of the three string shapes (datetime,
// date or time) and returns the canonical string together with its detected
// temporal type. For datetimes the parsed instant is returned as well.
func Parse(value any) (string, TemporalType, time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		t := v.UTC()
		return t.Format(DateTimeLayout), TypeDateTime, t, nil
	case string:
		return fromString(v)
	}

	return "", "", time.Time{}, errors.NewInvalidTemporalValueError("temporal value must be a time.Time or an ISO 8601 string")
}

// ParseDateTime is like Parse but rejects bare dates and times, as required
// for observedAt metadata.
func ParseDateTime(value any) (string, time.Time, error) {
	s, tt, t, err := Parse(value)
	if err != nil {
		return "", time.Time{}, err
	}

	if tt != TypeDateTime {
		return "", time.Time{}, errors.NewInvalidTemporalValueError("a full ISO 8601 datetime is required, not a bare date or time")
	}

	return s, t, nil
}

func fromString(value string) (string, TemporalType, time.Time, error) {
	switch len(value) {
	case len(DateTimeLayout):
		if t, err := time.Parse(DateTimeLayout, value); err == nil {
			return value, TypeDateTime, t, nil
		}
		// accept offset datetimes by normalizing them to UTC
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.UTC().Format(DateTimeLayout), TypeDateTime, t.UTC(), nil
		}
	case len(DateLayout):
		if _, err := time.Parse(DateLayout, value); err == nil {
			return value, TypeDate, time.Time{}, nil
		}
	case len(TimeLayout):
		if _, err := time.Parse(TimeLayout, value); err == nil {
			return value, TypeTime, time.Time{}, nil
		}
	default:
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.UTC().Format(DateTimeLayout), TypeDateTime, t.UTC(), nil
		}
	}

	return "", "", time.Time{}, errors.NewInvalidTemporalValueError("bad date format: " + value)
}

// Extract returns the last ISO 8601 datetime embedded in the input string,
// such as a timestamp carried inside an entity identifier.
func Extract(value string) (time.Time, bool) {
	dates := datetimePattern.FindAllString(value, -1)
	if len(dates) == 0 {
		return time.Time{}, false
	}

	t, err := time.Parse(DateTimeLayout, dates[len(dates)-1])
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
