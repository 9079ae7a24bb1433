package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/editor"
	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/points"
)

type errorBody struct {
	Error  string            `json:"error"`
	Errors []string          `json:"errors,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps domain errors to HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *feature.ValidationError
	var ferr *editor.FormError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Errors: verr.Errors})
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: ferr.Fields})
	case eris.Is(err, points.ErrParse):
		writeError(w, http.StatusBadRequest, err.Error())
	case eris.Is(err, editor.ErrNothingSelected):
		writeError(w, http.StatusConflict, err.Error())
	case eris.Is(err, mapsync.ErrNotActive):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// persistWarning reports a storage write failure without failing a
// mutation that was already applied in memory.
func persistWarning(w http.ResponseWriter, err error) bool {
	if err == nil || !eris.Is(err, points.ErrPersist) {
		return false
	}
	w.Header().Set("X-Persist-Warning", "state was not saved")
	return true
}

// decodeBody decodes a JSON request body of at most limit bytes. Numbers are
// kept as json.Number so that integer ids and ratings survive unchanged.
func decodeBody(r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return eris.Wrap(err, "api: decode request body")
	}
	return nil
}
