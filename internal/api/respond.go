package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/apperr"
)

type errorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Errors without a kind are logged
// and reported as a generic internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.Status()
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: apperr.PublicMessage(err), Kind: kind})
}
