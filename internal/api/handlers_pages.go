package api

import (
	"bytes"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/export"
	"github.com/lox/weatherqueries/internal/models"
)

const recentQueriesOnIndex = 10

type indexData struct {
	Queries []models.Query
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	recent, err := s.queries.Recent(r.Context(), recentQueriesOnIndex)
	if err != nil {
		s.log.Error("recent queries", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", indexData{Queries: recent}); err != nil {
		s.log.Error("render index", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion(r.Context())
	if err != nil {
		s.log.Error("health check", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"schema_version": version,
	})
}

// handleExport serves /export.json and /export.csv. Any other single-segment
// path is not found.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutPrefix(r.PathValue("file"), "export.")
	if !ok {
		http.NotFound(w, r)
		return
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		s.writeError(w, r, apperr.Input("Unsupported format"))
		return
	}

	items, err := s.queries.ExportAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, items); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+format.Filename())
	buf.WriteTo(w)
}
