package surface

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/points"
	"github.com/sells-group/poi-cli/internal/store"
)

func collection(t *testing.T, features ...feature.Feature) []byte {
	t.Helper()
	data, err := feature.Marshal(features)
	require.NoError(t, err)
	return data
}

func poi(id, name string, lon, lat float64) feature.Feature {
	return feature.New(feature.StringID(id), feature.Coordinates{lon, lat},
		feature.Properties{feature.PropName: name, feature.PropCategory: "c"})
}

func TestNew_AppliesConfig(t *testing.T) {
	h := New("map", mapsync.DefaultConfig())
	snap := h.Snapshot()

	assert.Equal(t, "map", snap.Container)
	assert.Equal(t, "https://demotiles.maplibre.org/globe.json", snap.Style)
	assert.Equal(t, []string{ControlNavigation}, snap.Controls)
	assert.Equal(t, mapsync.LngLat{Lng: -70.6483, Lat: -33.4569}, snap.Viewport.Center)
	assert.Equal(t, 2.0, snap.Viewport.Zoom)
	assert.Nil(t, snap.Viewport.Bounds)
}

func TestSources_AndLayers(t *testing.T) {
	h := New("map", mapsync.DefaultConfig())

	require.NoError(t, h.AddSource("points", collection(t)))
	assert.Error(t, h.AddSource("points", collection(t)))
	assert.Error(t, h.SetSourceData("missing", collection(t)))
	assert.Error(t, h.AddSource("bad", []byte(`{"type":"Feature"}`)))

	require.NoError(t, h.AddLayer(mapsync.Layer{ID: "points", Kind: mapsync.LayerCircle, Source: "points"}))
	assert.Error(t, h.AddLayer(mapsync.Layer{ID: "points", Kind: mapsync.LayerCircle, Source: "points"}))
	assert.Error(t, h.AddLayer(mapsync.Layer{ID: "other", Source: "missing"}))

	data := collection(t, poi("a", "A", 1, 1))
	require.NoError(t, h.SetSourceData("points", data))
	raw, ok := h.SourceData("points")
	require.True(t, ok)
	assert.Equal(t, string(data), string(raw))
	assert.Equal(t, 1, h.Snapshot().Features)
}

func TestQueryRenderedFeatures(t *testing.T) {
	cfg := mapsync.DefaultConfig()
	cfg.HitTolerance = 0.5
	h := New("map", cfg)
	require.NoError(t, h.AddSource("points", collection(t,
		poi("far", "Far", 10, 10),
		poi("near", "Near", 0.1, 0.1),
		poi("nearer", "Nearer", 0.05, 0),
	)))
	require.NoError(t, h.AddLayer(mapsync.Layer{ID: "points", Kind: mapsync.LayerCircle, Source: "points"}))
	require.NoError(t, h.AddLayer(mapsync.Layer{ID: "labels", Kind: mapsync.LayerSymbol, Source: "points", Field: "name"}))

	hits := h.QueryRenderedFeatures(mapsync.LngLat{}, "points")
	require.Len(t, hits, 2)
	assert.Equal(t, "nearer", hits[0].ID.String())
	assert.Equal(t, "near", hits[1].ID.String())
	assert.Equal(t, "Nearer", hits[0].Properties.Name())

	assert.Len(t, h.QueryRenderedFeatures(mapsync.LngLat{}), 4)
	assert.Empty(t, h.QueryRenderedFeatures(mapsync.LngLat{Lng: 50, Lat: 50}, "points"))
}

func TestMarkersAndPopups(t *testing.T) {
	h := New("map", mapsync.DefaultConfig())

	m := h.AddMarker(mapsync.LngLat{Lng: 1, Lat: 2}, mapsync.MarkerOptions{Draggable: true})
	p := h.OpenPopup(mapsync.LngLat{Lng: 1, Lat: 2}, "<b>x</b>")
	assert.NotEqual(t, m, p)

	snap := h.Snapshot()
	require.Len(t, snap.Markers, 1)
	assert.True(t, snap.Markers[0].Draggable)
	require.Len(t, snap.Popups, 1)
	assert.Equal(t, "<b>x</b>", snap.Popups[0].HTML)

	h.RemoveMarker(m)
	h.RemoveMarker(m)
	h.ClosePopup(p)
	snap = h.Snapshot()
	assert.Empty(t, snap.Markers)
	assert.Empty(t, snap.Popups)
}

func TestDragMarker(t *testing.T) {
	h := New("map", mapsync.DefaultConfig())
	var got []mapsync.MarkerEvent
	h.OnMarkerDragEnd(func(ev mapsync.MarkerEvent) { got = append(got, ev) })

	fixed := h.AddMarker(mapsync.LngLat{}, mapsync.MarkerOptions{})
	assert.Error(t, h.DragMarker(fixed, mapsync.LngLat{Lng: 1}))
	assert.Error(t, h.DragMarker("missing", mapsync.LngLat{Lng: 1}))

	id := h.AddMarker(mapsync.LngLat{}, mapsync.MarkerOptions{Draggable: true})
	require.NoError(t, h.DragMarker(id, mapsync.LngLat{Lng: 3, Lat: 4}))
	assert.Equal(t, []mapsync.MarkerEvent{{ID: id, LngLat: mapsync.LngLat{Lng: 3, Lat: 4}}}, got)
}

func TestFitBounds(t *testing.T) {
	h := New("map", mapsync.DefaultConfig())

	h.FitBounds(mapsync.Bounds{
		SW: mapsync.LngLat{Lng: -10, Lat: -5},
		NE: mapsync.LngLat{Lng: 35, Lat: 5},
	}, mapsync.FitOptions{MaxZoom: 15})
	vp := h.Snapshot().Viewport
	assert.Equal(t, mapsync.LngLat{Lng: 12.5, Lat: 0}, vp.Center)
	assert.InDelta(t, 3.0, vp.Zoom, 1e-9)
	require.NotNil(t, vp.Bounds)

	h.FitBounds(mapsync.Bounds{
		SW: mapsync.LngLat{Lng: 1, Lat: 1},
		NE: mapsync.LngLat{Lng: 1, Lat: 1},
	}, mapsync.FitOptions{MaxZoom: 15})
	assert.Equal(t, 15.0, h.Snapshot().Viewport.Zoom)
}

func TestRemove(t *testing.T) {
	h := New("map", mapsync.DefaultConfig())
	require.NoError(t, h.AddSource("points", collection(t, poi("a", "A", 0, 0))))
	h.AddMarker(mapsync.LngLat{}, mapsync.MarkerOptions{})
	clicks := 0
	h.OnClick(func(mapsync.ClickEvent) { clicks++ })

	h.Remove()
	h.Click(mapsync.LngLat{})

	snap := h.Snapshot()
	assert.True(t, snap.Removed)
	assert.Zero(t, snap.Features)
	assert.Empty(t, snap.Markers)
	assert.Zero(t, clicks)
}

func TestSynchronizerEndToEnd(t *testing.T) {
	ctx := context.Background()
	ps := points.New(ctx, store.NewMemory())
	_, err := ps.Import(ctx, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"park","geometry":{"type":"Point","coordinates":[-73.96,40.78]},"properties":{"name":"Central Park","category":"park"}},
		{"type":"Feature","id":"station","geometry":{"type":"Point","coordinates":[-73.99,40.75]},"properties":{"name":"Main Station","category":"station"}}
	]}`))
	require.NoError(t, err)

	loop := mapsync.NewLoop()
	s := mapsync.New(Factory(), loop)
	s.Attach(ps)
	require.NoError(t, s.Initialize("map", mapsync.DefaultConfig()))
	t.Cleanup(s.Destroy)

	h, ok := s.Surface().(*Headless)
	require.True(t, ok)
	assert.Equal(t, 2, h.Snapshot().Features)

	// Reframing waits for the end of the cycle.
	assert.Nil(t, h.Snapshot().Viewport.Bounds)
	loop.Flush()
	vp := h.Snapshot().Viewport
	require.NotNil(t, vp.Bounds)
	assert.Equal(t, mapsync.LngLat{Lng: -73.99, Lat: 40.75}, vp.Bounds.SW)

	// Empty-area click places one draft marker.
	h.Click(mapsync.LngLat{Lng: 0, Lat: 0})
	h.Click(mapsync.LngLat{Lng: 1, Lat: 1})
	snap := h.Snapshot()
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, mapsync.LngLat{Lng: 1, Lat: 1}, snap.Markers[0].LngLat)
	assert.Equal(t, &feature.Coordinates{1, 1}, s.ClickCoordinates())

	// Point click selects, opens the popup and drops the draft.
	h.Click(mapsync.LngLat{Lng: -73.96, Lat: 40.78})
	snap = h.Snapshot()
	assert.Empty(t, snap.Markers)
	require.Len(t, snap.Popups, 1)
	assert.Contains(t, snap.Popups[0].HTML, "Central Park")
	require.NotNil(t, s.Selected())
	assert.Equal(t, "park", s.Selected().ID.String())

	// Hover changes the cursor.
	h.Hover(mapsync.LngLat{Lng: -73.99, Lat: 40.75})
	assert.Equal(t, mapsync.CursorPointer, h.Snapshot().Cursor)
	h.Hover(mapsync.LngLat{Lng: 0, Lat: 0})
	assert.Equal(t, mapsync.CursorDefault, h.Snapshot().Cursor)

	// Filtering re-pushes the source.
	ps.SetFilter("", "station")
	assert.Equal(t, 1, h.Snapshot().Features)
	assert.Nil(t, s.Selected(), "selection hidden by the filter is dropped")
	assert.Empty(t, h.Snapshot().Popups)

	s.ClearSelection()
	s.ClearSelection()
	assert.Nil(t, s.Selected())
	assert.Nil(t, s.ClickCoordinates())
}
