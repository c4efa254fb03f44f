package iso8601

import (
	"testing"
	"time"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	goerrors "errors"

	"github.com/matryer/is"
)

func TestFromDateTimeConvertsToUTC(t *testing.T) {
	is := is.New(t)

	cet := time.FixedZone("CET", 3600)
	is.Equal(FromDateTime(time.Date(2022, 2, 26, 16, 0, 0, 0, cet)), "2022-02-26T15:00:00Z")
}

func TestParseAcceptsTimeValues(t *testing.T) {
	is := is.New(t)

	s, tt, _, err := Parse(time.Date(2022, 2, 26, 15, 0, 0, 0, time.UTC))

	is.NoErr(err)
	is.Equal(tt, TypeDateTime)
	is.Equal(s, "2022-02-26T15:00:00Z")
}

func TestParseDetectsDates(t *testing.T) {
	is := is.New(t)

	s, tt, _, err := Parse("2022-02-26")

	is.NoErr(err)
	is.Equal(tt, TypeDate)
	is.Equal(s, "2022-02-26")
}

func TestParseDetectsTimes(t *testing.T) {
	is := is.New(t)

	s, tt, _, err := Parse("15:00:00Z")

	is.NoErr(err)
	is.Equal(tt, TypeTime)
	is.Equal(s, "15:00:00Z")
}

func TestParseNormalizesOffsetDatetimes(t *testing.T) {
	is := is.New(t)

	s, tt, _, err := Parse("2022-02-26T16:00:00+01:00")

	is.NoErr(err)
	is.Equal(tt, TypeDateTime)
	is.Equal(s, "2022-02-26T15:00:00Z")
}

func TestParseRejectsGarbage(t *testing.T) {
	is := is.New(t)

	_, _, _, err := Parse("tomorrowish")

	is.True(err != nil)
	is.True(goerrors.Is(err, errors.ErrInvalidTemporalValue))
}

func TestParseDateTimeRejectsBareDates(t *testing.T) {
	is := is.New(t)

	_, _, err := ParseDateTime("2022-02-26")

	is.True(err != nil)
	is.True(goerrors.Is(err, errors.ErrInvalidTemporalValue))
}

func TestExtractFindsDatetimeInEntityID(t *testing.T) {
	is := is.New(t)

	extracted, ok := Extract("urn:ngsi-ld:WeatherObserved:Spain-WeatherObserved-2022-02-26T15:00:00Z")

	is.True(ok)
	is.Equal(FromDateTime(extracted), "2022-02-26T15:00:00Z")
}

func TestExtractReturnsLastMatch(t *testing.T) {
	is := is.New(t)

	extracted, ok := Extract("from 2022-02-26T15:00:00Z to 2022-02-27T15:00:00Z")

	is.True(ok)
	is.Equal(FromDateTime(extracted), "2022-02-27T15:00:00Z")
}

func TestExtractReportsMisses(t *testing.T) {
	is := is.New(t)

	_, ok := Extract("urn:ngsi-ld:Room:Room1")
	is.True(!ok)
}
