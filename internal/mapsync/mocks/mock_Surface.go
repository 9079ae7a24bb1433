// Package mocks provides test doubles for the map surface.
package mocks

import (
	mapsync "github.com/sells-group/poi-cli/internal/mapsync"
	mock "github.com/stretchr/testify/mock"
)

// MockSurface is a mock type for the Surface interface.
type MockSurface struct {
	mock.Mock
}

// AddSource provides a mock function with given fields: id, geojson
func (_m *MockSurface) AddSource(id string, geojson []byte) error {
	ret := _m.Called(id, geojson)

	if len(ret) == 0 {
		panic("no return value specified for AddSource")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(string, []byte) error); ok {
		r0 = rf(id, geojson)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SetSourceData provides a mock function with given fields: id, geojson
func (_m *MockSurface) SetSourceData(id string, geojson []byte) error {
	ret := _m.Called(id, geojson)

	if len(ret) == 0 {
		panic("no return value specified for SetSourceData")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(string, []byte) error); ok {
		r0 = rf(id, geojson)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// AddLayer provides a mock function with given fields: layer
func (_m *MockSurface) AddLayer(layer mapsync.Layer) error {
	ret := _m.Called(layer)

	if len(ret) == 0 {
		panic("no return value specified for AddLayer")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(mapsync.Layer) error); ok {
		r0 = rf(layer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// QueryRenderedFeatures provides a mock function with given fields: at, layers
func (_m *MockSurface) QueryRenderedFeatures(at mapsync.LngLat, layers ...string) []mapsync.RenderedFeature {
	_va := make([]interface{}, len(layers))
	for _i := range layers {
		_va[_i] = layers[_i]
	}
	var _ca []interface{}
	_ca = append(_ca, at)
	_ca = append(_ca, _va...)
	ret := _m.Called(_ca...)

	if len(ret) == 0 {
		panic("no return value specified for QueryRenderedFeatures")
	}

	var r0 []mapsync.RenderedFeature
	if rf, ok := ret.Get(0).(func(mapsync.LngLat, ...string) []mapsync.RenderedFeature); ok {
		r0 = rf(at, layers...)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]mapsync.RenderedFeature)
		}
	}

	return r0
}

// AddMarker provides a mock function with given fields: at, opts
func (_m *MockSurface) AddMarker(at mapsync.LngLat, opts mapsync.MarkerOptions) string {
	ret := _m.Called(at, opts)

	if len(ret) == 0 {
		panic("no return value specified for AddMarker")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func(mapsync.LngLat, mapsync.MarkerOptions) string); ok {
		r0 = rf(at, opts)
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// RemoveMarker provides a mock function with given fields: id
func (_m *MockSurface) RemoveMarker(id string) {
	_m.Called(id)
}

// OpenPopup provides a mock function with given fields: at, html
func (_m *MockSurface) OpenPopup(at mapsync.LngLat, html string) string {
	ret := _m.Called(at, html)

	if len(ret) == 0 {
		panic("no return value specified for OpenPopup")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func(mapsync.LngLat, string) string); ok {
		r0 = rf(at, html)
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// ClosePopup provides a mock function with given fields: id
func (_m *MockSurface) ClosePopup(id string) {
	_m.Called(id)
}

// FitBounds provides a mock function with given fields: b, opts
func (_m *MockSurface) FitBounds(b mapsync.Bounds, opts mapsync.FitOptions) {
	_m.Called(b, opts)
}

// SetCursor provides a mock function with given fields: cursor
func (_m *MockSurface) SetCursor(cursor string) {
	_m.Called(cursor)
}

// OnClick provides a mock function with given fields: fn
func (_m *MockSurface) OnClick(fn func(mapsync.ClickEvent)) {
	_m.Called(fn)
}

// OnMouseMove provides a mock function with given fields: fn
func (_m *MockSurface) OnMouseMove(fn func(mapsync.MoveEvent)) {
	_m.Called(fn)
}

// OnMarkerDragEnd provides a mock function with given fields: fn
func (_m *MockSurface) OnMarkerDragEnd(fn func(mapsync.MarkerEvent)) {
	_m.Called(fn)
}

// Remove provides a mock function with no fields
func (_m *MockSurface) Remove() {
	_m.Called()
}

// NewMockSurface creates a new instance of MockSurface.
func NewMockSurface(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSurface {
	mock := &MockSurface{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
