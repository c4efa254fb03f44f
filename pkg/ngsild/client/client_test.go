package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	ngsierrors "github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/entities"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var anyInput = expects.AnyInput
var method = expects.RequestMethod
var path = expects.RequestPath
var body = expects.RequestBody

func TestCreateEntity(t *testing.T) {
	is := is.New(t)

	locationHeader := "/ngsi-ld/v1/entities/urn:ngsi-ld:Room:Room1"
	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/ngsi-ld/v1/entities"),
			body("{\"@context\":[\"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld\"],\"id\":\"urn:ngsi-ld:Room:Room1\",\"type\":\"Room\"}"),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Location(locationHeader),
			response.Code(http.StatusCreated),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.CreateEntity(context.Background(), testEntity("Room", "Room1"), nil)

	is.NoErr(err)
	is.Equal(result.Location(), locationHeader)
}

func TestCreateEntityHandlesMissingLocationHeader(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusCreated),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.CreateEntity(context.Background(), testEntity("Room", "Room1"), nil)

	is.NoErr(err)
	is.Equal(result.Location(), "/ngsi-ld/v1/entities/urn%3Angsi-ld%3ARoom%3ARoom1")
}

func TestCreateEntityHandlesBadRequestError(t *testing.T) {
	is := is.New(t)

	pr := ngsierrors.NewBadRequestData("bad request")
	b, _ := json.Marshal(pr)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/problem+json"),
			response.Code(http.StatusBadRequest),
			response.Body(b),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	_, err := c.CreateEntity(context.Background(), testEntity("Room", "Room1"), nil)

	is.True(err != nil)
	is.True(errors.Is(err, ngsierrors.ErrBadRequest))
}

func TestCreateEntityThrowsErrorOnNon201Success(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	_, err := c.CreateEntity(context.Background(), testEntity("Room", "Room1"), nil)

	is.True(err != nil)
	is.Equal(err.Error(), "unexpected response code 204 (internal error)")
}

func TestRetrieveEntity(t *testing.T) {
	is := is.New(t)

	responseBody := "{\"@context\":[\"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld\"],\"id\":\"urn:ngsi-ld:Room:Room1\",\"type\":\"Room\",\"temperature\":{\"type\":\"Property\",\"value\":23}}"

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/ngsi-ld/v1/entities/urn:ngsi-ld:Room:Room1"),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte(responseBody)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	e, err := c.RetrieveEntity(context.Background(), "urn:ngsi-ld:Room:Room1", nil)

	is.NoErr(err)
	is.Equal(e.ID(), "urn:ngsi-ld:Room:Room1")
	is.Equal(e.Type(), "Room")
}

func TestQueryEntities(t *testing.T) {
	is := is.New(t)

	responseBody := "[{\"@context\":[\"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld\"],\"id\":\"urn:ngsi-ld:Room:Room1\",\"type\":\"Room\"},{\"@context\":[\"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld\"],\"id\":\"urn:ngsi-ld:Room:Room2\",\"type\":\"Room\"}]"

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/ngsi-ld/v1/entities"),
			QueryParamEquals("type", "Room"),
			QueryParamEquals("q", "temperature>20"),
			QueryParamEquals("limit", "10"),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte(responseBody)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.QueryEntities(context.Background(), nil,
		Types([]string{"Room"}),
		Query("temperature>20"),
		Limit(10),
	)
	is.NoErr(err)

	found := []string{}
	for e := range result.Found {
		if e == nil {
			break
		}
		found = append(found, e.ID())
	}

	is.Equal(found, []string{"urn:ngsi-ld:Room:Room1", "urn:ngsi-ld:Room:Room2"})
}

func TestMergeEntity(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPatch),
			path("/ngsi-ld/v1/entities/urn:ngsi-ld:Room:Room1"),
		),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	_, err := c.MergeEntity(context.Background(), "urn:ngsi-ld:Room:Room1", testEntity("Room", "Room1"), nil)

	is.NoErr(err)
	is.Equal(s.RequestCount(), 1)
}

func TestUpdateEntityAttributes(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPatch),
			path("/ngsi-ld/v1/entities/urn:ngsi-ld:Room:Room1/attrs/"),
			body("{\"@context\":[\"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld\"],\"temperature\":{\"type\":\"Property\",\"value\":25.5}}"),
		),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	fragment, _ := entities.NewFragment(func(e *entities.EntityImpl) {
		e.Prop("temperature", 25.5)
	})

	result, err := c.UpdateEntityAttributes(context.Background(), "urn:ngsi-ld:Room:Room1", fragment, nil)
	is.NoErr(err)
	is.True(!result.IsMultiStatus())
}

func TestUpdateEntityAttributesHandlesMultiStatus(t *testing.T) {
	is := is.New(t)

	multiStatusBody := "{\"updated\":[\"temperature\"],\"notUpdated\":[{\"attributeName\":\"humidity\",\"reason\":\"attribute not found\"}]}"

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusMultiStatus),
			response.Body([]byte(multiStatusBody)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	fragment, _ := entities.NewFragment(func(e *entities.EntityImpl) {
		e.Prop("temperature", 25.5).Prop("humidity", 40.0)
	})

	result, err := c.UpdateEntityAttributes(context.Background(), "urn:ngsi-ld:Room:Room1", fragment, nil)
	is.NoErr(err)
	is.True(result.IsMultiStatus())
	is.Equal(result.Updated, []string{"temperature"})
}

func TestUpsertEntityReportsCreated(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/ngsi-ld/v1/entityOperations/upsert"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusCreated),
			response.Body([]byte("[\"urn:ngsi-ld:Room:Room1\"]")),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.UpsertEntity(context.Background(), testEntity("Room", "Room1"), nil)

	is.NoErr(err)
	is.True(result.Created())
	is.Equal(result.Location(), "/ngsi-ld/v1/entities/urn%3Angsi-ld%3ARoom%3ARoom1")
}

func TestUpsertEntityReportsUpdated(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.UpsertEntity(context.Background(), testEntity("Room", "Room1"), nil)

	is.NoErr(err)
	is.True(!result.Created())
}

func TestDeleteEntity(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodDelete),
			path("/ngsi-ld/v1/entities/urn:ngsi-ld:Room:Room1"),
			body(""),
		),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	_, err := c.DeleteEntity(context.Background(), "urn:ngsi-ld:Room:Room1")

	is.NoErr(err)
	is.Equal(s.RequestCount(), 1)
}

func TestDeleteEntityNotFound(t *testing.T) {
	is := is.New(t)

	pr := ngsierrors.NewBadRequestData("not found")
	b, _ := json.Marshal(pr)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/problem+json"),
			response.Code(http.StatusNotFound),
			response.Body(b),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	_, err := c.DeleteEntity(context.Background(), "urn:ngsi-ld:Room:Room1")

	is.True(err != nil)
	is.True(errors.Is(err, ngsierrors.ErrNotFound))
}

func TestCreateBatchChunksAtTheConfiguredBatchSize(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/ngsi-ld/v1/entityOperations/create"),
		),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL(), BatchSize(4))

	batch := make([]types.Entity, 0, 10)
	for _, id := range []string{"R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8", "R9", "R10"} {
		batch = append(batch, testEntity("Room", id))
	}

	result, err := c.CreateBatch(context.Background(), batch, nil)

	is.NoErr(err)
	is.True(result.Ok())
	is.Equal(len(result.Success), 10)
	is.Equal(s.RequestCount(), 3)
}

func TestUpsertBatchCollectsCreatedIDs(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/ngsi-ld/v1/entityOperations/upsert"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusCreated),
			response.Body([]byte("[\"urn:ngsi-ld:Room:Room1\",\"urn:ngsi-ld:Room:Room2\"]")),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.UpsertBatch(context.Background(), []types.Entity{
		testEntity("Room", "Room1"),
		testEntity("Room", "Room2"),
	}, nil)

	is.NoErr(err)
	is.Equal(result.Success, []string{"urn:ngsi-ld:Room:Room1", "urn:ngsi-ld:Room:Room2"})
}

func TestUpdateBatchHandlesMultiStatus(t *testing.T) {
	is := is.New(t)

	multiStatusBody := "{\"success\":[\"urn:ngsi-ld:Room:Room1\"],\"errors\":[{\"entityId\":\"urn:ngsi-ld:Room:Room2\",\"error\":{\"type\":\"https://uri.etsi.org/ngsi-ld/errors/ResourceNotFound\",\"title\":\"not found\",\"detail\":\"entity does not exist\",\"status\":404}}]}"

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusMultiStatus),
			response.Body([]byte(multiStatusBody)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.UpdateBatch(context.Background(), []types.Entity{
		testEntity("Room", "Room1"),
		testEntity("Room", "Room2"),
	}, nil)

	is.NoErr(err)
	is.True(!result.Ok())
	is.Equal(result.Success, []string{"urn:ngsi-ld:Room:Room1"})
	is.Equal(len(result.Errors), 1)
	is.Equal(result.Errors[0].EntityID, "urn:ngsi-ld:Room:Room2")
	is.Equal(result.Errors[0].Error.Status, 404)
}

func TestDeleteBatch(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/ngsi-ld/v1/entityOperations/delete"),
			body("[\"urn:ngsi-ld:Room:Room1\",\"urn:ngsi-ld:Room:Room2\"]"),
		),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())

	result, err := c.DeleteBatch(context.Background(), []string{"urn:ngsi-ld:Room:Room1", "urn:ngsi-ld:Room:Room2"}, nil)

	is.NoErr(err)
	is.True(result.Ok())
	is.Equal(len(result.Success), 2)
}

func TestBatchOperationsSendTheTenantHeader(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			anyInput(),
			HeaderEquals("NGSILD-Tenant", "tenant-a"),
		),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL(), Tenant("tenant-a"))

	_, err := c.CreateBatch(context.Background(), []types.Entity{testEntity("Room", "Room1")}, nil)
	is.NoErr(err)
}

func testEntity(entityType, entityID string) types.Entity {
	e, _ := entities.New(entityID, entityType)
	return e
}

func HeaderEquals(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.Equal(r.Header.Get(name), value) // header should match
	}
}

func QueryParamEquals(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.True(r.URL.Query().Has(name))         // query param should exist
		is.Equal(r.URL.Query().Get(name), value) // query param should match
	}
}
