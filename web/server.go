// ABOUTME: HTTP status server with chi router exposing run progress, pipeline state, and engine events.
// ABOUTME: Read-only surface: the pipeline feeds a Tracker, handlers serve JSON snapshots of it.

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/chalktalk/pipeline"
)

// RunStatus is the JSON summary served at /api/run.
type RunStatus struct {
	RunID      string     `json:"run_id"`
	Topic      string     `json:"topic"`
	Running    bool       `json:"running"`
	Error      string     `json:"error,omitempty"`
	FinalVideo string     `json:"final_video,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	EventCount int        `json:"event_count"`
}

// Server serves run status over HTTP.
type Server struct {
	router  chi.Router
	tracker *Tracker
}

// NewServer builds a server around the given tracker.
func NewServer(tracker *Tracker) *Server {
	s := &Server{tracker: tracker}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/run", s.handleRun)
	r.Get("/api/state", s.handleState)
	r.Get("/api/events", s.handleEvents)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.State())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.tracker.Events()
	if events == nil {
		events = []pipeline.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
