package client

import (
	"context"
	"net/http"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	"github.com/matryer/is"
)

type roomKV struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Temperature float64 `json:"temperature"`
}

func TestQueryEntitiesUnmarshalsKeyValues(t *testing.T) {
	is := is.New(t)

	responseBody := "[{\"id\":\"urn:ngsi-ld:Room:Room1\",\"type\":\"Room\",\"temperature\":23},{\"id\":\"urn:ngsi-ld:Room:Room2\",\"type\":\"Room\",\"temperature\":21.5}]"

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/ngsi-ld/v1/entities"),
			QueryParamEquals("type", "Room"),
			QueryParamEquals("options", "keyValues"),
			QueryParamEquals("limit", "100"),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte(responseBody)),
		),
	)
	defer s.Close()

	rooms := []roomKV{}
	count, err := QueryEntities(context.Background(), s.URL(), "", "Room", nil,
		func(r roomKV) { rooms = append(rooms, r) },
	)

	is.NoErr(err)
	is.Equal(count, 2)
	is.Equal(len(rooms), 2)
	is.Equal(rooms[1].Temperature, 21.5)
	is.Equal(s.RequestCount(), 1)
}

func TestQueryEntitiesFailsOnErrorResponses(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, expects.AnyInput()),
		Returns(response.Code(http.StatusBadRequest)),
	)
	defer s.Close()

	_, err := QueryEntities(context.Background(), s.URL(), "", "Room", nil,
		func(r roomKV) {},
	)

	is.True(err != nil)
}
