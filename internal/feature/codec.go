package feature

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ErrNotCollection is returned when a payload is JSON but not a FeatureCollection.
var ErrNotCollection = eris.New("invalid GeoJSON: must be FeatureCollection")

// PropCreatedAt is the foreign member carrying the creation timestamp.
const PropCreatedAt = "createdAt"

type featureJSON struct {
	Type       string          `json:"type"`
	ID         *ID             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties Properties      `json:"properties"`
	CreatedAt  string          `json:"createdAt,omitempty"`
}

type collectionJSON struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// MarshalJSON encodes the feature as a GeoJSON Feature object.
func (f Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{
		Type:       TypeFeature,
		Geometry:   json.RawMessage("null"),
		Properties: f.Properties,
	}
	if out.Properties == nil {
		out.Properties = Properties{}
	}
	if !f.ID.IsZero() {
		id := f.ID
		out.ID = &id
	}
	if f.Point != nil {
		g, err := geojson.Marshal(f.Point)
		if err != nil {
			return nil, eris.Wrap(err, "feature: encode geometry")
		}
		out.Geometry = g
	}
	if !f.CreatedAt.IsZero() {
		out.CreatedAt = f.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a GeoJSON point feature.
func (f *Feature) UnmarshalJSON(data []byte) error {
	v, err := decodeValue(data)
	if err != nil {
		return err
	}
	parsed, err := FromValue(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON encodes the collection envelope.
func (c FeatureCollection) MarshalJSON() ([]byte, error) {
	features := c.Features
	if features == nil {
		features = []Feature{}
	}
	return json.Marshal(collectionJSON{Type: TypeFeatureCollection, Features: features})
}

// Marshal encodes features as a compact FeatureCollection.
func Marshal(features []Feature) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection{Features: features})
	return data, eris.Wrap(err, "feature: encode collection")
}

// MarshalIndent encodes features as a FeatureCollection indented with two spaces.
func MarshalIndent(features []Feature) ([]byte, error) {
	data, err := json.MarshalIndent(FeatureCollection{Features: features}, "", "  ")
	return data, eris.Wrap(err, "feature: encode collection")
}

// DecodeCollection parses raw text as a FeatureCollection and returns its
// candidate features as untyped values. No per-feature validation happens
// here. The error is a JSON syntax error or ErrNotCollection.
func DecodeCollection(data []byte) ([]any, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	obj, _ := v.(map[string]any)
	if s, _ := obj["type"].(string); s != TypeFeatureCollection {
		return nil, ErrNotCollection
	}
	features, ok := obj["features"].([]any)
	if !ok {
		return nil, ErrNotCollection
	}
	return features, nil
}

// FromValue converts a decoded candidate into a Feature. The candidate is
// validated first and its validation errors are returned as *ValidationError.
func FromValue(v any) (Feature, error) {
	if err := Validate(v).Err(); err != nil {
		return Feature{}, err
	}
	obj := v.(map[string]any)
	geometry := obj["geometry"].(map[string]any)
	coords := geometry["coordinates"].([]any)
	lon, _ := toFloat(coords[0])
	lat, _ := toFloat(coords[1])

	f := Feature{
		Point:      geom.NewPointFlat(geom.XY, []float64{lon, lat}),
		Properties: Properties(obj["properties"].(map[string]any)).Clone(),
	}
	if id, ok := idFromValue(obj["id"]); ok {
		f.ID = id
	}
	if s, ok := obj[PropCreatedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			f.CreatedAt = t.UTC()
		}
	}
	return f, nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, eris.Wrap(err, "feature: decode json")
	}
	if dec.More() {
		return nil, eris.New("feature: decode json: trailing data")
	}
	return v, nil
}
