package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-cli/internal/export"
	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/points"
)

// addRequest keeps coordinates untyped so that a missing or malformed pair
// is rejected instead of being zero-filled.
type addRequest struct {
	Coordinates any    `json:"coordinates"`
	Name        string `json:"name"`
	Category    string `json:"category"`
}

type filterRequest struct {
	Term     *string `json:"term"`
	Category *string `json:"category"`
}

type filterResponse struct {
	feature.SearchState
	Active bool `json:"active"`
}

func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "true" {
		features := s.points.Features()
		writeJSON(w, http.StatusOK, feature.FilteredView{
			Features: features,
			Total:    len(features),
			Filtered: len(features),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.points.View())
}

func (s *Server) handleAddFeature(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeBody(r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	coords, err := feature.ParseCoordinates(req.Coordinates)
	if err != nil {
		writeFailure(w, err)
		return
	}
	f, err := s.points.Add(r.Context(), coords, points.Attributes{Name: req.Name, Category: req.Category})
	if err != nil && !persistWarning(w, err) {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	f, ok := s.points.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.points.Get(id); !ok {
		writeError(w, http.StatusNotFound, "feature not found")
		return
	}
	var attrs feature.Properties
	if err := decodeBody(r, s.opts.MaxBodyBytes, &attrs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.points.Update(r.Context(), id, attrs); err != nil && !persistWarning(w, err) {
		writeFailure(w, err)
		return
	}
	f, ok := s.points.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRemoveFeature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.points.Get(id); !ok {
		writeError(w, http.StatusNotFound, "feature not found")
		return
	}
	if err := s.points.Remove(r.Context(), id); err != nil && !persistWarning(w, err) {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.points.Clear(r.Context()); err != nil && !persistWarning(w, err) {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": s.points.Categories()})
}

func (s *Server) handleGetFilter(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, filterResponse{SearchState: s.points.Search(), Active: s.points.HasActiveFilters()})
}

// handleSetFilter updates the criteria present in the body; an omitted
// criterion keeps its current value.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeBody(r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case req.Term != nil && req.Category != nil:
		s.points.SetFilter(*req.Term, *req.Category)
	case req.Term != nil:
		s.points.SetSearchTerm(*req.Term)
	case req.Category != nil:
		s.points.SetSearchCategory(*req.Category)
	}
	writeJSON(w, http.StatusOK, s.points.View())
}

func (s *Server) handleClearFilter(w http.ResponseWriter, _ *http.Request) {
	s.points.ClearFilter()
	writeJSON(w, http.StatusOK, s.points.View())
}

// handleImport replaces the collection with an uploaded GeoJSON, XLSX or
// zipped shapefile body, selected by the format query parameter.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "api: read body").Error())
		return
	}
	data, err := export.Decode(format, body)
	if err != nil {
		writeFailure(w, eris.Wrap(points.ErrParse, err.Error()))
		return
	}
	result, err := s.points.Import(r.Context(), data)
	if err != nil && !persistWarning(w, err) {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, s.points.Features()); err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.opts.ExportBase, format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
