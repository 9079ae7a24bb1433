package api

import (
	"net/http"

	"github.com/sells-group/poi-cli/internal/editor"
	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/points"
	"github.com/sells-group/poi-cli/internal/surface"
)

// pointer is implemented by surfaces that accept injected pointer events.
type pointer interface {
	Click(at mapsync.LngLat)
	Hover(at mapsync.LngLat)
}

// inspectable is implemented by surfaces that can report their state.
type inspectable interface {
	Snapshot() surface.Snapshot
	SourceData(id string) ([]byte, bool)
}

type mapResponse struct {
	State   mapsync.State     `json:"state"`
	Surface *surface.Snapshot `json:"surface,omitempty"`
}

type selectionResponse struct {
	editor.Request
	Initial    points.Attributes `json:"initial"`
	Categories []string          `json:"categories"`
}

func (s *Server) mapView() mapResponse {
	resp := mapResponse{State: s.sync.State()}
	if in, ok := s.sync.Surface().(inspectable); ok {
		snap := in.Snapshot()
		resp.Surface = &snap
	}
	return resp
}

func (s *Server) handleMapState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mapView())
}

func (s *Server) handleMapSource(w http.ResponseWriter, _ *http.Request) {
	in, ok := s.sync.Surface().(inspectable)
	if !ok {
		writeFailure(w, mapsync.ErrNotActive)
		return
	}
	data, ok := in.SourceData(mapsync.SourcePoints)
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleMapClick(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, pointer.Click)
}

func (s *Server) handleMapHover(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, pointer.Hover)
}

// dispatch decodes a position and injects it into the surface, then
// reports the resulting map state.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, event func(pointer, mapsync.LngLat)) {
	p, ok := s.sync.Surface().(pointer)
	if !ok {
		writeFailure(w, mapsync.ErrNotActive)
		return
	}
	var at mapsync.LngLat
	if err := decodeBody(r, s.opts.MaxBodyBytes, &at); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	event(p, at)
	s.flush()
	writeJSON(w, http.StatusOK, s.mapView())
}

func (s *Server) handleGetSelection(w http.ResponseWriter, _ *http.Request) {
	req, err := s.editor.Request()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{
		Request:    req,
		Initial:    req.Initial(),
		Categories: s.editor.Categories(),
	})
}

// handleSubmitSelection saves the form for the current selection: a new
// point at the clicked position or an edit of the selected one.
func (s *Server) handleSubmitSelection(w http.ResponseWriter, r *http.Request) {
	var form points.Attributes
	if err := decodeBody(r, s.opts.MaxBodyBytes, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := s.editor.Submit(r.Context(), form)
	if err != nil && !persistWarning(w, err) {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	s.editor.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
