package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/queries"
)

func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	in := decodeBody[queries.CreateInput](r)
	q, err := s.queries.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	list, err := s.queries.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r)
	if !ok {
		s.writeError(w, r, apperr.NotFound("Not found"))
		return
	}

	q, err := s.queries.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleUpdateQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r)
	if !ok {
		s.writeError(w, r, apperr.NotFound("Not found"))
		return
	}

	in := decodeBody[queries.UpdateInput](r)
	q, err := s.queries.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r)
	if !ok {
		s.writeError(w, r, apperr.NotFound("Not found"))
		return
	}

	res, err := s.queries.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// queryID parses the {id} path segment. Only non-negative integers match.
func queryID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON object from the request body. An empty or
// unparseable body decodes as {}, so every field takes its default.
func decodeBody[T any](r *http.Request) T {
	var in T
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		var empty T
		return empty
	}
	return in
}
