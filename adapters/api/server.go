// Package api serves stored analysis results over a small read-only HTTP
// surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"qcluster/domain/core"
	"qcluster/ports"
)

// Server exposes persisted study results.
type Server struct {
	store  ports.ResultsStore
	router *chi.Mux
}

// NewServer wires the routes over a results store.
func NewServer(store ports.ResultsStore) *Server {
	s := &Server{store: store, router: chi.NewRouter()}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/studies", s.handleListStudies)
	s.router.Get("/studies/{id}", s.handleGetStudy)
	s.router.Get("/studies/{id}/tables/{name}", s.handleGetTable)

	return s
}

// Handler returns the routed handler, for embedding in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP on the given address.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListStudies(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListStudies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"studies": ids})
}

func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseStudyID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := s.store.GetResults(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseStudyID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := s.store.GetResults(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	table, err := res.Table(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if core.IsNotFoundError(err) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
