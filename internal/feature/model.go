// Package feature models point-of-interest records as GeoJSON point features
// and holds the pure rules that operate on them: validation, identity
// assignment and search filtering.
package feature

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// GeoJSON type discriminators.
const (
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
	TypePoint             = "Point"
)

// Property keys every feature carries.
const (
	PropName     = "name"
	PropCategory = "category"
)

// ID identifies a feature. GeoJSON allows either a string or a number; the
// original form is kept so that numeric ids round-trip as numbers.
type ID struct {
	value   string
	numeric bool
}

// StringID returns a string identifier.
func StringID(s string) ID { return ID{value: s} }

// NumberID returns a numeric identifier. The text must be a JSON number.
func NumberID(n json.Number) ID { return ID{value: n.String(), numeric: true} }

// String returns the textual form used for lookups.
func (id ID) String() string { return id.value }

// IsNumeric reports whether the id was a JSON number.
func (id ID) IsNumeric() bool { return id.numeric }

// Equal reports whether id and other are the same id of the same JSON type,
// so the number 1 and the string "1" differ.
func (id ID) Equal(other ID) bool {
	return id.value == other.value && id.numeric == other.numeric
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	if id.numeric {
		return id.value == "" || id.value == "0"
	}
	return id.value == ""
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "feature: decode id")
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "feature: decode id")
	}
	*id = NumberID(n)
	return nil
}

// idFromValue converts a decoded JSON value into an ID.
func idFromValue(v any) (ID, bool) {
	switch t := v.(type) {
	case string:
		return StringID(t), true
	case json.Number:
		return NumberID(t), true
	case float64:
		return NumberID(json.Number(strconv.FormatFloat(t, 'f', -1, 64))), true
	default:
		return ID{}, false
	}
}

// Coordinates is a [longitude, latitude] pair in WGS84.
type Coordinates [2]float64

// Lon returns the longitude.
func (c Coordinates) Lon() float64 { return c[0] }

// Lat returns the latitude.
func (c Coordinates) Lat() float64 { return c[1] }

// Properties is the open property bag of a feature. Name and category are
// always present as strings on features held by the store.
type Properties map[string]any

// Name returns the name property, or "" when missing or not a string.
func (p Properties) Name() string {
	s, _ := p[PropName].(string)
	return s
}

// Category returns the category property, or "" when missing or not a string.
func (p Properties) Category() string {
	s, _ := p[PropCategory].(string)
	return s
}

// Clone returns a shallow copy.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Feature is a single point of interest.
type Feature struct {
	ID         ID
	Point      *geom.Point
	Properties Properties
	CreatedAt  time.Time
}

// New builds a feature at the given coordinates.
func New(id ID, coords Coordinates, props Properties) Feature {
	if props == nil {
		props = Properties{}
	}
	return Feature{
		ID:         id,
		Point:      geom.NewPointFlat(geom.XY, []float64{coords.Lon(), coords.Lat()}),
		Properties: props,
	}
}

// Coordinates returns the feature position.
func (f Feature) Coordinates() Coordinates {
	if f.Point == nil {
		return Coordinates{}
	}
	return Coordinates{f.Point.X(), f.Point.Y()}
}

// Name is shorthand for f.Properties.Name().
func (f Feature) Name() string { return f.Properties.Name() }

// Category is shorthand for f.Properties.Category().
func (f Feature) Category() string { return f.Properties.Category() }

// Clone returns a copy that shares no mutable state with f.
func (f Feature) Clone() Feature {
	out := f
	out.Properties = f.Properties.Clone()
	if f.Point != nil {
		out.Point = geom.NewPointFlat(geom.XY, []float64{f.Point.X(), f.Point.Y()})
	}
	return out
}

// FeatureCollection is the serialization envelope for features.
type FeatureCollection struct {
	Features []Feature
}

// ImportResult summarises one import operation.
type ImportResult struct {
	Imported  int      `json:"imported"`
	Discarded int      `json:"discarded"`
	Errors    []string `json:"errors"`
}
