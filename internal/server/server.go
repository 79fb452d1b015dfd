// Package server exposes the instrument over HTTP: presets, live state, the
// annotated camera stream and a WebSocket feed of note events.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/server/api"
	"github.com/ayusman/handchord/internal/store"
)

// Player is the running instrument as seen by the HTTP API.
type Player interface {
	Snapshot() engine.Snapshot
	NextInstrument() engine.Instrument
	Enabled() bool
	SetEnabled(enabled bool)
}

// Config holds the server configuration. Nil collaborators disable their
// routes.
type Config struct {
	StaticDir string
	Store     *store.Store
	Player    Player
	Frames    FrameSource
	Events    *EventHub
	// AllowedOrigins lists the origins allowed by CORS. Empty allows any.
	AllowedOrigins []string
}

// Server represents the HTTP server.
type Server struct {
	config  Config
	router  *mux.Router
	handler http.Handler
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter().StrictSlash(true),
		start:  time.Now(),
	}
	s.setupRoutes()

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)

	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	if s.config.Store != nil {
		api.NewPresetHandler(s.config.Store).Register(s.router)
	}

	if s.config.Player != nil {
		s.router.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
		s.router.HandleFunc("/api/instrument/next", s.handleNextInstrument).Methods(http.MethodPost)
		s.router.HandleFunc("/api/enabled", s.handleEnabled).Methods(http.MethodPut)
	}

	if s.config.Frames != nil {
		s.router.Handle("/api/stream", NewStreamHandler(s.config.Frames)).Methods(http.MethodGet)
	}

	if s.config.Events != nil {
		s.router.Handle("/api/events", s.config.Events).Methods(http.MethodGet)
	}

	if s.config.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type stateResponse struct {
	engine.Snapshot
	Enabled bool `json:"enabled"`
	Clients int  `json:"clients"`
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		Snapshot: s.config.Player.Snapshot(),
		Enabled:  s.config.Player.Enabled(),
	}
	if s.config.Events != nil {
		resp.Clients = s.config.Events.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNextInstrument handles POST /api/instrument/next.
func (s *Server) handleNextInstrument(w http.ResponseWriter, r *http.Request) {
	inst := s.config.Player.NextInstrument()
	writeJSON(w, http.StatusOK, map[string]any{"instrument": inst})
}

// handleEnabled handles PUT /api/enabled with {"enabled": bool}.
func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": `expected {"enabled": true|false}`})
		return
	}
	s.config.Player.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Player.Enabled()})
}
