// Package surface provides an in-process map surface. It keeps sources,
// layers, markers, popups and the viewport in memory, hit-tests points by
// geographic distance and dispatches pointer events to registered handlers.
package surface

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/mapsync"
)

// ControlNavigation is the name of the zoom/rotate control.
const ControlNavigation = "navigation"

// maxZoom caps the zoom computed when framing a single point.
const maxZoom = 22

// Marker is a placed point marker.
type Marker struct {
	ID        string         `json:"id"`
	LngLat    mapsync.LngLat `json:"lngLat"`
	Draggable bool           `json:"draggable"`
	Color     string         `json:"color,omitempty"`
}

// Popup is an open HTML popup.
type Popup struct {
	ID     string         `json:"id"`
	LngLat mapsync.LngLat `json:"lngLat"`
	HTML   string         `json:"html"`
}

// Viewport is the visible map area.
type Viewport struct {
	Center mapsync.LngLat  `json:"center"`
	Zoom   float64         `json:"zoom"`
	Bounds *mapsync.Bounds `json:"bounds,omitempty"`
}

// Snapshot is a copy of the surface state.
type Snapshot struct {
	Container string          `json:"container"`
	Style     string          `json:"style"`
	Controls  []string        `json:"controls"`
	Viewport  Viewport        `json:"viewport"`
	Cursor    string          `json:"cursor"`
	Layers    []mapsync.Layer `json:"layers"`
	Markers   []Marker        `json:"markers"`
	Popups    []Popup         `json:"popups"`
	Features  int             `json:"features"`
	Removed   bool            `json:"removed"`
}

type source struct {
	raw      []byte
	features []feature.Feature
}

// Headless is a mapsync.Surface kept entirely in memory.
type Headless struct {
	mu        sync.Mutex
	container string
	cfg       mapsync.Config
	controls  []string
	sources   map[string]*source
	layers    []mapsync.Layer
	markers   map[string]Marker
	popups    map[string]Popup
	viewport  Viewport
	cursor    string
	seq       int
	removed   bool

	clickFns []func(mapsync.ClickEvent)
	moveFns  []func(mapsync.MoveEvent)
	dragFns  []func(mapsync.MarkerEvent)
}

// New creates a surface for container.
func New(container string, cfg mapsync.Config) *Headless {
	h := &Headless{
		container: container,
		cfg:       cfg,
		sources:   make(map[string]*source),
		markers:   make(map[string]Marker),
		popups:    make(map[string]Popup),
		viewport:  Viewport{Center: cfg.Center(), Zoom: cfg.Zoom},
	}
	if cfg.NavigationControl {
		h.controls = append(h.controls, ControlNavigation)
	}
	return h
}

// Factory returns a mapsync.Factory building headless surfaces.
func Factory() mapsync.Factory {
	return func(container string, cfg mapsync.Config) (mapsync.Surface, error) {
		return New(container, cfg), nil
	}
}

// AddSource registers a GeoJSON source.
func (h *Headless) AddSource(id string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sources[id]; ok {
		return eris.Errorf("surface: source %q already exists", id)
	}
	src, err := decodeSource(data)
	if err != nil {
		return eris.Wrapf(err, "surface: add source %q", id)
	}
	h.sources[id] = src
	return nil
}

// SetSourceData replaces the data of an existing source.
func (h *Headless) SetSourceData(id string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sources[id]; !ok {
		return eris.Errorf("surface: source %q not found", id)
	}
	src, err := decodeSource(data)
	if err != nil {
		return eris.Wrapf(err, "surface: set source %q", id)
	}
	h.sources[id] = src
	return nil
}

func decodeSource(data []byte) (*source, error) {
	candidates, err := feature.DecodeCollection(data)
	if err != nil {
		return nil, err
	}
	src := &source{raw: append([]byte(nil), data...)}
	for i, c := range candidates {
		f, err := feature.FromValue(c)
		if err != nil {
			zap.L().Warn("surface: skipping unrenderable feature", zap.Int("index", i), zap.Error(err))
			continue
		}
		src.features = append(src.features, f)
	}
	return src, nil
}

// AddLayer binds a layer to an existing source.
func (h *Headless) AddLayer(layer mapsync.Layer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sources[layer.Source]; !ok {
		return eris.Errorf("surface: layer %q references unknown source %q", layer.ID, layer.Source)
	}
	for _, l := range h.layers {
		if l.ID == layer.ID {
			return eris.Errorf("surface: layer %q already exists", layer.ID)
		}
	}
	h.layers = append(h.layers, layer)
	return nil
}

// QueryRenderedFeatures returns the features of the named layers (all
// layers when none are named) within the hit tolerance of at, nearest first.
func (h *Headless) QueryRenderedFeatures(at mapsync.LngLat, layers ...string) []mapsync.RenderedFeature {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queryLocked(at, layers)
}

type hit struct {
	rendered mapsync.RenderedFeature
	dist     float64
}

func (h *Headless) queryLocked(at mapsync.LngLat, layers []string) []mapsync.RenderedFeature {
	want := make(map[string]bool, len(layers))
	for _, l := range layers {
		want[l] = true
	}

	tol := h.cfg.HitTolerance
	area := geom.NewBounds(geom.XY).Set(at.Lng-tol, at.Lat-tol, at.Lng+tol, at.Lat+tol)

	var hits []hit
	for _, layer := range h.layers {
		if len(want) > 0 && !want[layer.ID] {
			continue
		}
		src := h.sources[layer.Source]
		if src == nil {
			continue
		}
		for _, f := range src.features {
			if f.Point == nil || !area.OverlapsPoint(geom.XY, f.Point.Coords()) {
				continue
			}
			hits = append(hits, hit{
				rendered: mapsync.RenderedFeature{ID: f.ID, Layer: layer.ID, Properties: f.Properties.Clone()},
				dist:     math.Hypot(f.Point.X()-at.Lng, f.Point.Y()-at.Lat),
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]mapsync.RenderedFeature, len(hits))
	for i, hh := range hits {
		out[i] = hh.rendered
	}
	return out
}

// AddMarker places a marker and returns its id.
func (h *Headless) AddMarker(at mapsync.LngLat, opts mapsync.MarkerOptions) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextIDLocked("marker")
	h.markers[id] = Marker{ID: id, LngLat: at, Draggable: opts.Draggable, Color: opts.Color}
	return id
}

// RemoveMarker removes a marker. Unknown ids are ignored.
func (h *Headless) RemoveMarker(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.markers, id)
}

// OpenPopup opens an HTML popup and returns its id.
func (h *Headless) OpenPopup(at mapsync.LngLat, html string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextIDLocked("popup")
	h.popups[id] = Popup{ID: id, LngLat: at, HTML: html}
	return id
}

// ClosePopup closes a popup. Unknown ids are ignored.
func (h *Headless) ClosePopup(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.popups, id)
}

// FitBounds centers the viewport on b and picks the largest zoom that shows
// it, capped at opts.MaxZoom.
func (h *Headless) FitBounds(b mapsync.Bounds, opts mapsync.FitOptions) {
	h.mu.Lock()
	defer h.mu.Unlock()

	limit := opts.MaxZoom
	if limit <= 0 {
		limit = maxZoom
	}
	span := math.Max(b.NE.Lng-b.SW.Lng, b.NE.Lat-b.SW.Lat)
	zoom := limit
	if span > 0 {
		zoom = math.Min(limit, math.Max(0, math.Log2(360/span)))
	}
	box := b
	h.viewport = Viewport{
		Center: mapsync.LngLat{Lng: (b.SW.Lng + b.NE.Lng) / 2, Lat: (b.SW.Lat + b.NE.Lat) / 2},
		Zoom:   zoom,
		Bounds: &box,
	}
}

// SetCursor sets the pointer style.
func (h *Headless) SetCursor(cursor string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = cursor
}

// OnClick registers a click handler.
func (h *Headless) OnClick(fn func(mapsync.ClickEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clickFns = append(h.clickFns, fn)
}

// OnMouseMove registers a pointer move handler.
func (h *Headless) OnMouseMove(fn func(mapsync.MoveEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.moveFns = append(h.moveFns, fn)
}

// OnMarkerDragEnd registers a marker drag handler.
func (h *Headless) OnMarkerDragEnd(fn func(mapsync.MarkerEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dragFns = append(h.dragFns, fn)
}

// Remove drops every source, layer, marker, popup and handler.
func (h *Headless) Remove() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources = make(map[string]*source)
	h.layers = nil
	h.markers = make(map[string]Marker)
	h.popups = make(map[string]Popup)
	h.clickFns = nil
	h.moveFns = nil
	h.dragFns = nil
	h.removed = true
}

// Click dispatches a click at the given position.
func (h *Headless) Click(at mapsync.LngLat) {
	h.mu.Lock()
	fns := append([]func(mapsync.ClickEvent){}, h.clickFns...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(mapsync.ClickEvent{LngLat: at})
	}
}

// Hover dispatches a pointer move to the given position.
func (h *Headless) Hover(at mapsync.LngLat) {
	h.mu.Lock()
	fns := append([]func(mapsync.MoveEvent){}, h.moveFns...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(mapsync.MoveEvent{LngLat: at})
	}
}

// DragMarker moves a draggable marker and dispatches the drag end.
func (h *Headless) DragMarker(id string, to mapsync.LngLat) error {
	h.mu.Lock()
	m, ok := h.markers[id]
	if !ok {
		h.mu.Unlock()
		return eris.Errorf("surface: marker %q not found", id)
	}
	if !m.Draggable {
		h.mu.Unlock()
		return eris.Errorf("surface: marker %q is not draggable", id)
	}
	m.LngLat = to
	h.markers[id] = m
	fns := append([]func(mapsync.MarkerEvent){}, h.dragFns...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(mapsync.MarkerEvent{ID: id, LngLat: to})
	}
	return nil
}

// SourceData returns the raw GeoJSON last pushed to a source.
func (h *Headless) SourceData(id string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	src, ok := h.sources[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), src.raw...), true
}

// Snapshot returns a copy of the surface state.
func (h *Headless) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		Container: h.container,
		Style:     h.cfg.StyleURL,
		Controls:  append([]string{}, h.controls...),
		Viewport:  h.viewport,
		Cursor:    h.cursor,
		Layers:    append([]mapsync.Layer{}, h.layers...),
		Markers:   make([]Marker, 0, len(h.markers)),
		Popups:    make([]Popup, 0, len(h.popups)),
		Removed:   h.removed,
	}
	if h.viewport.Bounds != nil {
		b := *h.viewport.Bounds
		snap.Viewport.Bounds = &b
	}
	for _, m := range h.markers {
		snap.Markers = append(snap.Markers, m)
	}
	sort.Slice(snap.Markers, func(i, j int) bool { return snap.Markers[i].ID < snap.Markers[j].ID })
	for _, p := range h.popups {
		snap.Popups = append(snap.Popups, p)
	}
	sort.Slice(snap.Popups, func(i, j int) bool { return snap.Popups[i].ID < snap.Popups[j].ID })
	for _, src := range h.sources {
		snap.Features += len(src.features)
	}
	return snap
}

func (h *Headless) nextIDLocked(kind string) string {
	h.seq++
	return fmt.Sprintf("%s-%d", kind, h.seq)
}
