// Package web is the HTTP surface of the station: the MJPEG live
// stream, the measurement APIs, the CSV export, and the websocket feed
// of accepted measurements.
//
// The web layer reads from its own store handle; the persistence writer
// owns the write handle. Nothing here ever blocks the pipeline.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/beamscope/metrics"
	"github.com/hazyhaar/beamscope/pipeline"
	"github.com/hazyhaar/beamscope/store"
)

// Server serves the station HTTP API.
type Server struct {
	st     *store.Store
	pipe   *pipeline.Pipeline
	met    *metrics.Metrics
	hub    *Hub
	logger *slog.Logger
}

// New creates the server. st is the read-only store handle.
func New(st *store.Store, pipe *pipeline.Pipeline, met *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if met == nil {
		met = metrics.New()
	}
	return &Server{
		st:     st,
		pipe:   pipe,
		met:    met,
		hub:    NewHub(met, logger),
		logger: logger,
	}
}

// Hub returns the websocket hub; register it as the pipeline's
// measurement hook before Start.
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.met.Handler())

	r.Get("/mjpeg_stream", s.handleStream)
	r.Get("/api/live", s.hub.handleLive)
	r.Get("/api/latest_data", s.handleLatestData)
	r.Get("/api/set_mode", s.handleSetMode)
	r.Get("/download", s.handleDownload)

	return r
}

// Shutdown disconnects every websocket client. MJPEG sessions end on
// their own when the broadcaster closes.
func (s *Server) Shutdown() {
	s.hub.CloseAll()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
