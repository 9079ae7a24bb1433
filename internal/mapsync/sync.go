package mapsync

import (
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
)

// ErrNotActive is returned by operations that need a live surface.
var ErrNotActive = eris.New("mapsync: map not initialized")

// DraftColor is the color of the draft marker.
const DraftColor = "#e74c3c"

// FeatureSource supplies the filtered view and change notifications.
// *points.Store satisfies it.
type FeatureSource interface {
	Filtered() []feature.Feature
	Subscribe(fn func()) (cancel func())
}

// State is a point-in-time copy of the synchronizer state.
type State struct {
	Active           bool                 `json:"active"`
	Container        string               `json:"container,omitempty"`
	Selected         *feature.Feature     `json:"selected"`
	ClickCoordinates *feature.Coordinates `json:"clickCoordinates"`
	DraftMarker      string               `json:"draftMarker,omitempty"`
	Popup            string               `json:"popup,omitempty"`
	Rendered         int                  `json:"rendered"`
}

// Synchronizer bridges a FeatureSource and a Surface.
type Synchronizer struct {
	mu        sync.Mutex
	factory   Factory
	sched     Scheduler
	surface   Surface
	container string
	cfg       Config

	rendered []feature.Feature
	selected *feature.Feature
	click    *feature.Coordinates
	draft    string
	popup    string
	cursor   string

	source     FeatureSource
	unsub      func()
	fitPending bool
}

// New creates an uninitialized synchronizer. A nil scheduler runs deferred
// work immediately.
func New(factory Factory, sched Scheduler) *Synchronizer {
	if sched == nil {
		sched = immediate{}
	}
	return &Synchronizer{factory: factory, sched: sched}
}

type immediate struct{}

func (immediate) Defer(fn func()) { fn() }

// Initialize creates the surface in container. Calling it while a surface
// is live does nothing.
func (s *Synchronizer) Initialize(container string, cfg Config) error {
	s.mu.Lock()
	if s.surface != nil {
		s.mu.Unlock()
		return nil
	}

	surface, err := s.factory(container, cfg)
	if err != nil {
		s.mu.Unlock()
		return eris.Wrap(err, "mapsync: create surface")
	}
	if err := setup(surface); err != nil {
		surface.Remove()
		s.mu.Unlock()
		return err
	}
	surface.OnClick(s.handleClick)
	surface.OnMouseMove(s.handleMove)
	surface.OnMarkerDragEnd(s.handleDragEnd)

	s.surface = surface
	s.container = container
	s.cfg = cfg
	s.mu.Unlock()

	zap.L().Info("mapsync: surface initialized",
		zap.String("container", container),
		zap.String("style", cfg.StyleURL),
		zap.Float64("zoom", cfg.Zoom),
	)
	s.refresh()
	return nil
}

func setup(surface Surface) error {
	empty, err := feature.Marshal(nil)
	if err != nil {
		return err
	}
	if err := surface.AddSource(SourcePoints, empty); err != nil {
		return eris.Wrap(err, "mapsync: add source")
	}
	if err := surface.AddLayer(Layer{ID: LayerPoints, Kind: LayerCircle, Source: SourcePoints}); err != nil {
		return eris.Wrap(err, "mapsync: add point layer")
	}
	if err := surface.AddLayer(Layer{ID: LayerLabels, Kind: LayerSymbol, Source: SourcePoints, Field: feature.PropName}); err != nil {
		return eris.Wrap(err, "mapsync: add label layer")
	}
	return nil
}

// Destroy releases the surface and forgets the selection, draft marker and
// popup. It does nothing when no surface is live.
func (s *Synchronizer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return
	}
	s.surface.Remove()
	s.surface = nil
	s.container = ""
	s.rendered = nil
	s.selected = nil
	s.click = nil
	s.draft = ""
	s.popup = ""
	s.cursor = CursorDefault
	s.fitPending = false
	zap.L().Info("mapsync: surface destroyed")
}

// Attach subscribes to src, pushes its current view and re-pushes on every
// change. Any previous source is detached.
func (s *Synchronizer) Attach(src FeatureSource) {
	s.Detach()
	unsub := src.Subscribe(s.refresh)

	s.mu.Lock()
	s.source = src
	s.unsub = unsub
	s.mu.Unlock()

	s.refresh()
}

// Detach stops following the current source.
func (s *Synchronizer) Detach() {
	s.mu.Lock()
	unsub := s.unsub
	s.source = nil
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// refresh pushes the source's filtered view and schedules a reframe at the
// end of the current update cycle. Several refreshes in one cycle share a
// single reframe that sees the last pushed set.
//
// The view is read and pushed under one lock so concurrent refreshes apply
// in order and the last push carries the newest view. The source must not
// call back into the synchronizer from Filtered.
func (s *Synchronizer) refresh() {
	s.mu.Lock()
	if s.source == nil || s.surface == nil {
		s.mu.Unlock()
		return
	}
	features := s.source.Filtered()
	if err := s.syncLocked(features); err != nil {
		zap.L().Error("mapsync: push features failed", zap.Error(err))
	}
	schedule := len(features) > 0 && !s.fitPending
	if schedule {
		s.fitPending = true
	}
	s.mu.Unlock()

	if schedule {
		s.sched.Defer(s.deferredFit)
	}
}

func (s *Synchronizer) deferredFit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitPending = false
	s.fitLocked(s.rendered)
}

// SyncFeatures replaces the rendered point set with features.
func (s *Synchronizer) SyncFeatures(features []feature.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return ErrNotActive
	}
	return s.syncLocked(features)
}

func (s *Synchronizer) syncLocked(features []feature.Feature) error {
	data, err := feature.Marshal(features)
	if err != nil {
		return err
	}
	if err := s.surface.SetSourceData(SourcePoints, data); err != nil {
		return eris.Wrap(err, "mapsync: set source data")
	}
	s.rendered = make([]feature.Feature, len(features))
	for i, f := range features {
		s.rendered[i] = f.Clone()
	}

	// Keep the selection pointing at the latest version of its feature.
	if s.selected != nil {
		if f, ok := s.findLocked(s.selected.ID); ok {
			s.selected = &f
		} else {
			s.selected = nil
			s.closePopupLocked()
		}
	}
	zap.L().Debug("mapsync: features pushed", zap.Int("count", len(features)))
	return nil
}

// FitToFeatures frames the viewport around features. An empty set does
// nothing.
func (s *Synchronizer) FitToFeatures(features []feature.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitLocked(features)
}

func (s *Synchronizer) fitLocked(features []feature.Feature) {
	if s.surface == nil || len(features) == 0 {
		return
	}
	bounds := geom.NewBounds(geom.XY)
	for _, f := range features {
		if f.Point != nil {
			bounds.Extend(f.Point)
		}
	}
	if bounds.IsEmpty() {
		return
	}
	s.surface.FitBounds(Bounds{
		SW: LngLat{Lng: bounds.Min(0), Lat: bounds.Min(1)},
		NE: LngLat{Lng: bounds.Max(0), Lat: bounds.Max(1)},
	}, FitOptions{Padding: s.cfg.FitPadding, MaxZoom: s.cfg.FitMaxZoom})
}

// Select selects a rendered feature by id as if it had been clicked.
func (s *Synchronizer) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return ErrNotActive
	}
	f, ok := s.lookupLocked(id)
	if !ok {
		return eris.Errorf("mapsync: feature %q is not rendered", id)
	}
	s.selectLocked(f, FromCoordinates(f.Coordinates()))
	return nil
}

// ClearSelection drops the selection, the click coordinates, the draft
// marker and the popup. Safe to call repeatedly.
func (s *Synchronizer) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.click = nil
	s.removeDraftLocked()
	s.closePopupLocked()
}

func (s *Synchronizer) handleClick(ev ClickEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return
	}

	for _, hit := range s.surface.QueryRenderedFeatures(ev.LngLat, LayerPoints) {
		if f, ok := s.findLocked(hit.ID); ok {
			s.selectLocked(f, ev.LngLat)
			return
		}
	}

	coords := ev.LngLat.Coordinates()
	s.click = &coords
	s.selected = nil
	s.closePopupLocked()
	s.removeDraftLocked()
	s.draft = s.surface.AddMarker(ev.LngLat, MarkerOptions{Draggable: true, Color: DraftColor})
	zap.L().Debug("mapsync: draft placed", zap.Float64("lng", coords.Lon()), zap.Float64("lat", coords.Lat()))
}

func (s *Synchronizer) selectLocked(f feature.Feature, at LngLat) {
	s.selected = &f
	s.click = nil
	s.removeDraftLocked()
	s.closePopupLocked()
	s.popup = s.surface.OpenPopup(at, PopupHTML(f))
	zap.L().Debug("mapsync: feature selected", zap.String("id", f.ID.String()))
}

func (s *Synchronizer) handleMove(ev MoveEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return
	}
	cursor := CursorDefault
	if len(s.surface.QueryRenderedFeatures(ev.LngLat, LayerPoints)) > 0 {
		cursor = CursorPointer
	}
	if cursor != s.cursor {
		s.cursor = cursor
		s.surface.SetCursor(cursor)
	}
}

func (s *Synchronizer) handleDragEnd(ev MarkerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == "" || ev.ID != s.draft {
		return
	}
	coords := ev.LngLat.Coordinates()
	s.click = &coords
}

func (s *Synchronizer) removeDraftLocked() {
	if s.draft != "" && s.surface != nil {
		s.surface.RemoveMarker(s.draft)
	}
	s.draft = ""
}

func (s *Synchronizer) closePopupLocked() {
	if s.popup != "" && s.surface != nil {
		s.surface.ClosePopup(s.popup)
	}
	s.popup = ""
}

// lookupLocked resolves a textual id. A number and a string with the same
// text are not told apart; the first rendered match wins.
func (s *Synchronizer) lookupLocked(id string) (feature.Feature, bool) {
	for _, f := range s.rendered {
		if f.ID.String() == id {
			return f.Clone(), true
		}
	}
	return feature.Feature{}, false
}

// findLocked resolves a typed id.
func (s *Synchronizer) findLocked(id feature.ID) (feature.Feature, bool) {
	for _, f := range s.rendered {
		if f.ID.Equal(id) {
			return f.Clone(), true
		}
	}
	return feature.Feature{}, false
}

// Surface returns the live surface, or nil.
func (s *Synchronizer) Surface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Active reports whether a surface is live.
func (s *Synchronizer) Active() bool {
	return s.Surface() != nil
}

// Config returns the settings the live surface was created with.
func (s *Synchronizer) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Selected returns a copy of the selected feature, or nil.
func (s *Synchronizer) Selected() *feature.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	f := s.selected.Clone()
	return &f
}

// ClickCoordinates returns the last empty-area click position, or nil.
func (s *Synchronizer) ClickCoordinates() *feature.Coordinates {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.click == nil {
		return nil
	}
	c := *s.click
	return &c
}

// Rendered returns a copy of the features last pushed to the surface.
func (s *Synchronizer) Rendered() []feature.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feature.Feature, len(s.rendered))
	for i, f := range s.rendered {
		out[i] = f.Clone()
	}
	return out
}

// State returns a snapshot of the synchronizer.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Active:      s.surface != nil,
		Container:   s.container,
		DraftMarker: s.draft,
		Popup:       s.popup,
		Rendered:    len(s.rendered),
	}
	if s.selected != nil {
		f := s.selected.Clone()
		st.Selected = &f
	}
	if s.click != nil {
		c := *s.click
		st.ClickCoordinates = &c
	}
	return st
}
