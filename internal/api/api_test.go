package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-cli/internal/export"
	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/points"
	"github.com/sells-group/poi-cli/internal/store"
	"github.com/sells-group/poi-cli/internal/surface"
)

type testEnv struct {
	points *points.Store
	sync   *mapsync.Synchronizer
	loop   *mapsync.Loop
	server *Server
	h      http.Handler
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	ps := points.New(ctx, store.NewMemory())
	loop := mapsync.NewLoop()
	ms := mapsync.New(surface.Factory(), loop)
	require.NoError(t, ms.Initialize("map", mapsync.DefaultConfig()))
	ms.Attach(ps)
	loop.Flush()
	t.Cleanup(ms.Destroy)

	srv := New(ps, ms, loop, opts)
	return &testEnv{points: ps, sync: ms, loop: loop, server: srv, h: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func (e *testEnv) add(t *testing.T, name, category string, lon, lat float64) feature.Feature {
	t.Helper()
	f, err := e.points.Add(context.Background(), feature.Coordinates{lon, lat},
		points.Attributes{Name: name, Category: category})
	require.NoError(t, err)
	e.loop.Flush()
	return f
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestAddFeature(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/features", map[string]any{
		"coordinates": []float64{-70.6483, -33.4569},
		"name":        "Plaza",
		"category":    "square",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var f feature.Feature
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &f))
	assert.False(t, f.ID.IsZero())
	assert.Equal(t, "Plaza", f.Name())
	assert.Equal(t, 1, env.points.Len())

	list := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/features", nil))
	assert.EqualValues(t, 1, list["total"])
	assert.EqualValues(t, 1, list["filtered"])

	// The flush after the request reframed the map on the new point.
	snap := env.server.mapView().Surface
	require.NotNil(t, snap)
	require.NotNil(t, snap.Viewport.Bounds)
	assert.Equal(t, 1, snap.Features)
}

func TestAddFeature_Invalid(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/features", map[string]any{
		"coordinates": []float64{200, 0},
		"name":        "Nowhere",
		"category":    "x",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[errorBody](t, rr)
	assert.Equal(t, []string{feature.MsgCoordsOutOfRange}, body.Errors)
	assert.Zero(t, env.points.Len())

	rr = env.do(t, http.MethodPost, "/api/features", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddFeature_RejectsMalformedCoordinates(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"absent", map[string]any{"name": "Ghost", "category": "x"}},
		{"single value", map[string]any{"coordinates": []float64{10}, "name": "Ghost", "category": "x"}},
		{"three values", map[string]any{"coordinates": []float64{10, 20, 30}, "name": "Ghost", "category": "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/features", tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			body := decode[errorBody](t, rr)
			assert.Equal(t, []string{feature.MsgBadCoordinates}, body.Errors)
		})
	}
	assert.Zero(t, env.points.Len())

	rr := env.do(t, http.MethodPost, "/api/features", map[string]any{
		"coordinates": []any{"10", 20},
		"name":        "Ghost",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, []string{feature.MsgCoordsNotNumbers}, decode[errorBody](t, rr).Errors)
}

func TestFeatureByID(t *testing.T) {
	env := newTestEnv(t, Options{})
	f := env.add(t, "Cafe", "food", 1, 1)
	path := "/api/features/" + f.ID.String()

	rr := env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Cafe"`)

	rr = env.do(t, http.MethodPatch, path, `{"name":"Bistro","rating":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got, ok := env.points.Get(f.ID.String())
	require.True(t, ok)
	assert.Equal(t, "Bistro", got.Name())
	assert.Equal(t, "food", got.Category())
	assert.Equal(t, json.Number("5"), got.Properties["rating"])

	rr = env.do(t, http.MethodPatch, path, `{"name":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, env.points.Len())

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rr = env.do(t, method, path, `{}`)
		assert.Equal(t, http.StatusNotFound, rr.Code, method)
	}
}

func TestClearFeatures(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.add(t, "A", "x", 1, 1)
	env.add(t, "B", "y", 2, 2)

	rr := env.do(t, http.MethodDelete, "/api/features", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, env.points.Len())
}

func TestCategoriesAndFilter(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.add(t, "Central Park", "park", 1, 1)
	env.add(t, "Cafe Uno", "food", 2, 2)
	env.add(t, "Park Cafe", "food", 3, 3)

	cats := decode[map[string][]string](t, env.do(t, http.MethodGet, "/api/categories", nil))
	assert.Equal(t, []string{"food", "park"}, cats["categories"])

	rr := env.do(t, http.MethodPut, "/api/filter", `{"category":"FOOD"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[feature.FilteredView](t, rr)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 2, view.Filtered)

	view = decode[feature.FilteredView](t, env.do(t, http.MethodPut, "/api/filter", `{"term":"park"}`))
	assert.Equal(t, 1, view.Filtered)
	assert.Equal(t, "Park Cafe", view.Features[0].Name())

	state := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/filter", nil))
	assert.Equal(t, "park", state["term"])
	assert.Equal(t, "FOOD", state["category"])
	assert.Equal(t, true, state["active"])

	// The map renders only the filtered view.
	assert.Len(t, env.sync.Rendered(), 1)

	all := decode[feature.FilteredView](t, env.do(t, http.MethodGet, "/api/features?all=true", nil))
	assert.Equal(t, 3, all.Filtered)

	view = decode[feature.FilteredView](t, env.do(t, http.MethodDelete, "/api/filter", nil))
	assert.Equal(t, 3, view.Filtered)
	assert.False(t, env.points.HasActiveFilters())
	assert.Len(t, env.sync.Rendered(), 3)
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.add(t, "Old", "x", 1, 1)

	payload := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":1,"geometry":{"type":"Point","coordinates":[10,10]},"properties":{"name":"One","category":"a"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[500,10]},"properties":{"name":"Bad","category":"a"}}
	]}`
	rr := env.do(t, http.MethodPost, "/api/import", payload)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	result := decode[feature.ImportResult](t, rr)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Discarded)
	assert.Equal(t, []string{"Feature 2: Coordinates out of range"}, result.Errors)
	assert.Equal(t, 1, env.points.Len())
	_, ok := env.points.Get("1")
	assert.True(t, ok)

	rr = env.do(t, http.MethodPost, "/api/import", `{"type":"Feature"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, env.points.Len())

	rr = env.do(t, http.MethodPost, "/api/import?format=kml", payload)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImport_XLSX(t *testing.T) {
	env := newTestEnv(t, Options{})
	src := []feature.Feature{
		feature.New(feature.StringID("w1"), feature.Coordinates{5, 5},
			feature.Properties{feature.PropName: "Well", feature.PropCategory: "water"}),
	}
	var buf bytes.Buffer
	require.NoError(t, export.WriteXLSX(&buf, src))

	rr := env.do(t, http.MethodPost, "/api/import?format=xlsx", buf.Bytes())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got, ok := env.points.Get("w1")
	require.True(t, ok)
	assert.Equal(t, "Well", got.Name())
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, Options{ExportBase: "my-pois"})
	env.add(t, "Cafe", "food", 1, 1)

	rr := env.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="my-pois.geojson"`, rr.Header().Get("Content-Disposition"))
	want, err := env.points.Export()
	require.NoError(t, err)
	assert.Equal(t, string(want), rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.FormatXLSX.ContentType(), rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "my-pois.xlsx")

	rr = env.do(t, http.MethodGet, "/api/export?format=shp", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "my-pois.zip")

	rr = env.do(t, http.MethodGet, "/api/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMapClick_EmptyAreaThenSubmit(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/map/click", mapsync.LngLat{Lng: 12.5, Lat: 41.9})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[mapResponse](t, rr)
	require.NotNil(t, resp.State.ClickCoordinates)
	assert.Equal(t, feature.Coordinates{12.5, 41.9}, *resp.State.ClickCoordinates)
	assert.Nil(t, resp.State.Selected)
	require.NotNil(t, resp.Surface)
	require.Len(t, resp.Surface.Markers, 1)
	assert.True(t, resp.Surface.Markers[0].Draggable)

	sel := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/map/selection", nil))
	assert.Equal(t, "add", sel["mode"])

	rr = env.do(t, http.MethodPut, "/api/map/selection", `{"name":"x","category":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[errorBody](t, rr)
	assert.Equal(t, "Minimum 2 characters required", body.Fields["name"])
	assert.Equal(t, "This field is required", body.Fields["category"])

	rr = env.do(t, http.MethodPut, "/api/map/selection", `{"name":" Colosseum ","category":"ruins"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 1, env.points.Len())
	f := env.points.Features()[0]
	assert.Equal(t, "Colosseum", f.Name())
	assert.Equal(t, feature.Coordinates{12.5, 41.9}, f.Coordinates())

	state := env.sync.State()
	assert.Nil(t, state.ClickCoordinates)
	assert.Empty(t, state.DraftMarker)

	rr = env.do(t, http.MethodGet, "/api/map/selection", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestMapClick_SelectsAndEdits(t *testing.T) {
	env := newTestEnv(t, Options{})
	f := env.add(t, "Cafe", "food", 1, 1)

	resp := decode[mapResponse](t, env.do(t, http.MethodPost, "/api/map/click", mapsync.LngLat{Lng: 1, Lat: 1}))
	require.NotNil(t, resp.State.Selected)
	assert.Equal(t, f.ID, resp.State.Selected.ID)
	assert.Nil(t, resp.State.ClickCoordinates)
	require.Len(t, resp.Surface.Popups, 1)
	assert.Contains(t, resp.Surface.Popups[0].HTML, "Cafe")

	sel := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/map/selection", nil))
	assert.Equal(t, "edit", sel["mode"])
	assert.Equal(t, map[string]any{"name": "Cafe", "category": "food"}, sel["initial"])
	assert.Equal(t, []any{"food"}, sel["categories"])

	rr := env.do(t, http.MethodPut, "/api/map/selection", `{"name":"Bistro","category":"food"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got, _ := env.points.Get(f.ID.String())
	assert.Equal(t, "Bistro", got.Name())
	require.NotNil(t, env.sync.Selected())
	assert.Equal(t, "Bistro", env.sync.Selected().Name())

	rr = env.do(t, http.MethodDelete, "/api/map/selection", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, env.sync.Selected())
	assert.Empty(t, env.sync.State().Popup)
}

func TestMapHover(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.add(t, "Cafe", "food", 1, 1)

	resp := decode[mapResponse](t, env.do(t, http.MethodPost, "/api/map/hover", mapsync.LngLat{Lng: 1, Lat: 1}))
	assert.Equal(t, mapsync.CursorPointer, resp.Surface.Cursor)

	resp = decode[mapResponse](t, env.do(t, http.MethodPost, "/api/map/hover", mapsync.LngLat{Lng: 50, Lat: 50}))
	assert.Equal(t, mapsync.CursorDefault, resp.Surface.Cursor)
}

func TestMapSource(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.add(t, "Cafe", "food", 1, 1)

	rr := env.do(t, http.MethodGet, "/api/map/source", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rr.Body.String(), `"FeatureCollection"`))
	assert.Contains(t, rr.Body.String(), "Cafe")
}

func TestMap_NotInitialized(t *testing.T) {
	ps := points.New(context.Background(), store.NewMemory())
	ms := mapsync.New(surface.Factory(), nil)
	h := New(ps, ms, nil, Options{}).Handler()

	for _, path := range []string{"/api/map/click", "/api/map/hover"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"lng":1,"lat":1}`))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/map", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[mapResponse](t, rr)
	assert.False(t, resp.State.Active)
	assert.Nil(t, resp.Surface)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: 0.001, RateBurst: 1})

	rr := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate limit exceeded")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Options{CORSOrigins: []string{"http://localhost:4200"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:4200", rr.Header().Get("Access-Control-Allow-Origin"))
}
