package entities

import (
	"encoding/json"
	goerrors "errors"
	"testing"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/attributes"
	"github.com/matryer/is"
)

func TestPathReadsNestedValues(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")
	e.Prop("temperature", 23.0, attributes.UnitCode("CEL")).
		Prop("accuracy", 0.95, attributes.Nested())
	is.NoErr(e.Err())

	v, err := e.Path("temperature.value")
	is.NoErr(err)
	is.Equal(v, 23.0)

	v, err = e.Path("temperature.unitCode")
	is.NoErr(err)
	is.Equal(v, "CEL")

	v, err = e.Path("temperature.accuracy.value")
	is.NoErr(err)
	is.Equal(v, 0.95)

	_, err = e.Path("temperature.missing")
	is.True(goerrors.Is(err, errors.ErrPathNotFound))
}

func TestPathStoppingAtAnAttributeReturnsTheNode(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")
	e.Prop("temperature", 23.0)

	v, err := e.Path("temperature")
	is.NoErr(err)

	a, ok := v.(*attributes.Attribute)
	is.True(ok)
	is.Equal(a.Value(), 23.0)
}

func TestSetPathUpdatesExistingValues(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")
	e.Prop("temperature", 23.0)

	is.NoErr(e.SetPath("temperature.value", 25.5))

	v, err := e.Path("temperature.value")
	is.NoErr(err)
	is.Equal(v, 25.5)
}

func TestSetPathCreatesMissingIntermediates(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")

	is.NoErr(e.SetPath("pressure.value", 101.3))
	is.NoErr(e.SetPath("pressure.unitCode", "HPA"))

	b, err := json.Marshal(e)
	is.NoErr(err)
	is.Equal(string(b), "{\"@context\":[\"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld\"],\"id\":\"urn:ngsi-ld:Room:Room1\",\"type\":\"Room\",\"pressure\":{\"type\":\"Property\",\"value\":101.3,\"unitCode\":\"HPA\"}}")
}

func TestSetPathRejectsDanglingNonValuePaths(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")

	err := e.SetPath("pressure.reading", 101.3)
	is.True(goerrors.Is(err, errors.ErrPathNotFound))
}

func TestSetPathAddsRootPropertiesDirectly(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")

	is.NoErr(e.SetPath("temperature", 23.0))

	a, ok := e.Attribute("temperature")
	is.True(ok)
	is.Equal(a.Value(), 23.0)
}

func TestIDAndTypeAreImmutableThroughPaths(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")

	err := e.SetPath("id", "urn:ngsi-ld:Room:Other")
	is.True(goerrors.Is(err, errors.ErrImmutableField))

	err = e.SetPath("type", "Building")
	is.True(goerrors.Is(err, errors.ErrImmutableField))

	err = e.RemovePath("id")
	is.True(goerrors.Is(err, errors.ErrImmutableField))
}

func TestRemovePathDeletesMembers(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")
	e.Prop("temperature", 23.0, attributes.UnitCode("CEL"))

	is.NoErr(e.RemovePath("temperature.unitCode"))

	_, err := e.Path("temperature.unitCode")
	is.True(goerrors.Is(err, errors.ErrPathNotFound))

	is.NoErr(e.RemovePath("temperature"))

	err = e.RemovePath("temperature")
	is.True(goerrors.Is(err, errors.ErrPathNotFound))
}

func TestIncrementAddsToNumericValues(t *testing.T) {
	is := is.New(t)

	e, _ := New("Parking1", "OffStreetParking")
	e.Prop("availableSpotNumber", 121.0)

	is.NoErr(e.Increment("availableSpotNumber", -1))

	v, err := e.Path("availableSpotNumber.value")
	is.NoErr(err)
	is.Equal(v, 120.0)

	is.NoErr(e.Increment("availableSpotNumber.value", 2))

	v, _ = e.Path("availableSpotNumber.value")
	is.Equal(v, 122.0)
}

func TestIncrementRejectsNonNumericValues(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")
	e.Prop("status", "open")

	err := e.Increment("status", 1)
	is.True(goerrors.Is(err, errors.ErrTypeMismatch))
}

func TestEmptyPathsAreRejected(t *testing.T) {
	is := is.New(t)

	e, _ := New("Room1", "Room")

	_, err := e.Path("")
	is.True(goerrors.Is(err, errors.ErrPathNotFound))

	err = e.SetPath("a..b", 1.0)
	is.True(goerrors.Is(err, errors.ErrPathNotFound))
}
