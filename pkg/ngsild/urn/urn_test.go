package urn

import (
	"testing"

	"github.com/matryer/is"
)

func TestAddIsIdempotent(t *testing.T) {
	is := is.New(t)

	is.Equal(Add("Room:Room1"), "urn:ngsi-ld:Room:Room1")
	is.Equal(Add("urn:ngsi-ld:Room:Room1"), "urn:ngsi-ld:Room:Room1")
	is.Equal(Add(""), "")
}

func TestStrip(t *testing.T) {
	is := is.New(t)

	is.Equal(Strip("urn:ngsi-ld:Room:Room1"), "Room:Room1")
	is.Equal(Strip("Room:Room1"), "Room:Room1")
}

func TestFullyQualified(t *testing.T) {
	is := is.New(t)

	is.Equal(FullyQualified("Room", "Room1"), "urn:ngsi-ld:Room:Room1")
	is.Equal(FullyQualified("Room", "Room:Room1"), "urn:ngsi-ld:Room:Room1")
	is.Equal(FullyQualified("Room", "urn:ngsi-ld:Room:Room1"), "urn:ngsi-ld:Room:Room1")
}

func TestInferType(t *testing.T) {
	is := is.New(t)

	entityType, ok := InferType("urn:ngsi-ld:Room:Room1")
	is.True(ok)
	is.Equal(entityType, "Room")

	_, ok = InferType("urn:ngsi-ld:")
	is.True(!ok)
}
