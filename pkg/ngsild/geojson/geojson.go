// Package geojson holds the closed set of geometry types that a GeoProperty
// may carry: Point, LineString, Polygon and MultiPoint.
//
// Constructors take coordinates in the common (latitude, longitude) order
// and store them the GeoJSON way, as [longitude, latitude] pairs.
package geojson

import (
	"fmt"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
)

type Geometry interface {
	GeometryType() string
}

type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint creates a Point from a WGS84 coordinate given as (lat, lon).
func NewPoint(latitude, longitude float64) Point {
	return Point{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
	}
}

func (p Point) GeometryType() string {
	return p.Type
}

func (p Point) Latitude() float64 {
	return p.Coordinates[1]
}

func (p Point) Longitude() float64 {
	return p.Coordinates[0]
}

type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// NewLineString creates a LineString from (lat, lon) pairs.
func NewLineString(points ...[2]float64) LineString {
	ls := LineString{Type: "LineString", Coordinates: make([][2]float64, len(points))}
	for i, p := range points {
		ls.Coordinates[i] = [2]float64{p[1], p[0]}
	}
	return ls
}

func (ls LineString) GeometryType() string {
	return ls.Type
}

type Polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// NewPolygon creates a Polygon from rings of (lat, lon) pairs.
func NewPolygon(rings ...[][2]float64) Polygon {
	pg := Polygon{Type: "Polygon", Coordinates: make([][][2]float64, len(rings))}
	for i, ring := range rings {
		pg.Coordinates[i] = make([][2]float64, len(ring))
		for j, p := range ring {
			pg.Coordinates[i][j] = [2]float64{p[1], p[0]}
		}
	}
	return pg
}

func (pg Polygon) GeometryType() string {
	return pg.Type
}

type MultiPoint struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// NewMultiPoint creates a MultiPoint from (lat, lon) pairs.
func NewMultiPoint(points ...[2]float64) MultiPoint {
	mp := MultiPoint{Type: "MultiPoint", Coordinates: make([][2]float64, len(points))}
	for i, p := range points {
		mp.Coordinates[i] = [2]float64{p[1], p[0]}
	}
	return mp
}

func (mp MultiPoint) GeometryType() string {
	return mp.Type
}

// Normalize coerces the accepted geometry inputs to a Geometry: any of the
// four geometry types, or a raw (lat, lon) pair as [2]float64 or []float64.
func Normalize(value any) (Geometry, error) {
	switch v := value.(type) {
	case Geometry:
		return v, nil
	case [2]float64:
		return NewPoint(v[0], v[1]), nil
	case []float64:
		if len(v) != 2 {
			return nil, errors.NewInvalidGeometryError(fmt.Sprintf("a lat, lon pair has two coordinates, not %d", len(v)))
		}
		return NewPoint(v[0], v[1]), nil
	}

	return nil, errors.NewInvalidGeometryError(fmt.Sprintf("cannot map %T to a geometry", value))
}

// UnmarshalG reconstructs a Geometry from a decoded GeoProperty value object.
func UnmarshalG(body map[string]any) (Geometry, error) {
	geoType, ok := body["type"].(string)
	if !ok {
		return nil, errors.NewInvalidGeometryError("geometry without a type tag is not supported")
	}

	untypedCoordinates, ok := body["coordinates"]
	if !ok {
		return nil, errors.NewInvalidGeometryError("geometry without coordinates is not supported")
	}

	switch geoType {
	case "Point":
		pair, err := unmarshalPosition(untypedCoordinates)
		if err != nil {
			return nil, err
		}
		return Point{Type: "Point", Coordinates: pair}, nil
	case "LineString":
		pairs, err := unmarshalPositions(untypedCoordinates)
		if err != nil {
			return nil, err
		}
		return LineString{Type: "LineString", Coordinates: pairs}, nil
	case "MultiPoint":
		pairs, err := unmarshalPositions(untypedCoordinates)
		if err != nil {
			return nil, err
		}
		return MultiPoint{Type: "MultiPoint", Coordinates: pairs}, nil
	case "Polygon":
		coordinates, ok := untypedCoordinates.([]any)
		if !ok {
			return nil, errors.NewInvalidGeometryError("malformed polygon coordinates")
		}

		rings := make([][][2]float64, 0, len(coordinates))
		for _, ring := range coordinates {
			pairs, err := unmarshalPositions(ring)
			if err != nil {
				return nil, err
			}
			rings = append(rings, pairs)
		}
		return Polygon{Type: "Polygon", Coordinates: rings}, nil
	}

	return nil, errors.NewInvalidGeometryError(fmt.Sprintf("unknown geometry type %q", geoType))
}

func unmarshalPosition(value any) ([2]float64, error) {
	coordinates, ok := value.([]any)
	if !ok || len(coordinates) != 2 {
		return [2]float64{}, errors.NewInvalidGeometryError("a position holds exactly two coordinates")
	}

	lon, okLon := coordinates[0].(float64)
	lat, okLat := coordinates[1].(float64)

	if !okLon || !okLat {
		return [2]float64{}, errors.NewInvalidGeometryError("coordinates are not convertible to float64")
	}

	return [2]float64{lon, lat}, nil
}

func unmarshalPositions(value any) ([][2]float64, error) {
	coordinates, ok := value.([]any)
	if !ok {
		return nil, errors.NewInvalidGeometryError("malformed coordinate array")
	}

	pairs := make([][2]float64, 0, len(coordinates))

	for _, c := range coordinates {
		pair, err := unmarshalPosition(c)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	return pairs, nil
}
