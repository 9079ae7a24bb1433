// Package mapsync keeps a map rendering surface in step with the point
// store's filtered view. It owns the single live surface, the feature
// selection, the draft marker for a pending new point and the info popup.
package mapsync

import (
	"github.com/sells-group/poi-cli/internal/feature"
)

// Source and layer names registered on every surface.
const (
	SourcePoints = "points"
	LayerPoints  = "points"
	LayerLabels  = "points-labels"
)

// Cursor styles.
const (
	CursorDefault = ""
	CursorPointer = "pointer"
)

// LngLat is a geographic position.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Coordinates converts to the feature coordinate pair.
func (p LngLat) Coordinates() feature.Coordinates {
	return feature.Coordinates{p.Lng, p.Lat}
}

// FromCoordinates converts a feature coordinate pair.
func FromCoordinates(c feature.Coordinates) LngLat {
	return LngLat{Lng: c.Lon(), Lat: c.Lat()}
}

// Bounds is a south-west / north-east box.
type Bounds struct {
	SW LngLat `json:"sw"`
	NE LngLat `json:"ne"`
}

// LayerKind selects how a layer draws its source.
type LayerKind string

// Layer kinds.
const (
	LayerCircle LayerKind = "circle"
	LayerSymbol LayerKind = "symbol"
)

// Layer binds a drawing style to a source.
type Layer struct {
	ID     string    `json:"id"`
	Kind   LayerKind `json:"kind"`
	Source string    `json:"source"`
	// Field names the property drawn as text by symbol layers.
	Field string `json:"field,omitempty"`
}

// MarkerOptions configures a point marker.
type MarkerOptions struct {
	Draggable bool   `json:"draggable"`
	Color     string `json:"color,omitempty"`
}

// FitOptions configures viewport framing.
type FitOptions struct {
	Padding int     `json:"padding"`
	MaxZoom float64 `json:"max_zoom"`
}

// RenderedFeature is a feature as the surface reports it from a hit test.
type RenderedFeature struct {
	ID         feature.ID         `json:"id"`
	Layer      string             `json:"layer"`
	Properties feature.Properties `json:"properties"`
}

// MarkerEvent reports a marker drag that ended at LngLat.
type MarkerEvent struct {
	ID     string `json:"id"`
	LngLat LngLat `json:"lngLat"`
}

// ClickEvent is a pointer click on the surface.
type ClickEvent struct {
	LngLat LngLat `json:"lngLat"`
}

// MoveEvent is a pointer move on the surface.
type MoveEvent struct {
	LngLat LngLat `json:"lngLat"`
}

// Config holds the initial map settings.
type Config struct {
	StyleURL          string  `yaml:"style_url" mapstructure:"style_url"`
	CenterLng         float64 `yaml:"center_lng" mapstructure:"center_lng"`
	CenterLat         float64 `yaml:"center_lat" mapstructure:"center_lat"`
	Zoom              float64 `yaml:"zoom" mapstructure:"zoom"`
	NavigationControl bool    `yaml:"navigation_control" mapstructure:"navigation_control"`
	HitTolerance      float64 `yaml:"hit_tolerance" mapstructure:"hit_tolerance"`
	FitPadding        int     `yaml:"fit_padding" mapstructure:"fit_padding"`
	FitMaxZoom        float64 `yaml:"fit_max_zoom" mapstructure:"fit_max_zoom"`
}

// Center returns the initial center.
func (c Config) Center() LngLat {
	return LngLat{Lng: c.CenterLng, Lat: c.CenterLat}
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		StyleURL:          "https://demotiles.maplibre.org/globe.json",
		CenterLng:         -70.6483,
		CenterLat:         -33.4569,
		Zoom:              2,
		NavigationControl: true,
		HitTolerance:      0.01,
		FitPadding:        50,
		FitMaxZoom:        15,
	}
}

// Surface is the rendering collaborator. Registered handlers must be invoked
// without holding any surface lock.
type Surface interface {
	AddSource(id string, geojson []byte) error
	SetSourceData(id string, geojson []byte) error
	AddLayer(layer Layer) error
	QueryRenderedFeatures(at LngLat, layers ...string) []RenderedFeature

	AddMarker(at LngLat, opts MarkerOptions) string
	RemoveMarker(id string)
	OpenPopup(at LngLat, html string) string
	ClosePopup(id string)

	FitBounds(b Bounds, opts FitOptions)
	SetCursor(cursor string)

	OnClick(fn func(ClickEvent))
	OnMouseMove(fn func(MoveEvent))
	OnMarkerDragEnd(fn func(MarkerEvent))

	// Remove releases every resource held by the surface.
	Remove()
}

// Factory creates a surface inside the named container.
type Factory func(container string, cfg Config) (Surface, error)
