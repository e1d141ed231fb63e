package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"crypto_scalper/internal/engine"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// StatusSource exposes the engine's latest published status.
type StatusSource interface {
	GetStatus() engine.Status
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Stats  StatsSnapshot `json:"stats"`
	Engine engine.Status `json:"engine"`
}

// Server is the HTTP status surface: REST status, dashboard WebSocket and
// Prometheus metrics.
type Server struct {
	router  *mux.Router
	hub     *Hub
	stats   *Stats
	source  StatusSource
	metrics http.Handler
	origins []string
	http    *http.Server
}

// NewServer wires the routes. metrics may be nil.
func NewServer(addr string, origins []string, stats *Stats, hub *Hub, source StatusSource, metrics http.Handler) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     hub,
		stats:   stats,
		source:  source,
		metrics: metrics,
		origins: origins,
	}
	s.setupRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.ServeWS)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start runs the hub, the periodic stats push and the HTTP listener. It
// blocks until the listener stops; a clean Shutdown returns nil.
func (s *Server) Start(ctx context.Context, statsInterval time.Duration) error {
	go s.hub.Run(ctx)
	if statsInterval > 0 {
		go s.broadcastStats(ctx, statsInterval)
	}

	slog.Info("Telemetry server starting", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) broadcastStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.Broadcast(Message{Type: MessageStats, Payload: s.stats.Snapshot()})
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Stats: s.stats.Snapshot()}
	if s.source != nil {
		resp.Engine = s.source.GetStatus()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.Clients(),
		"time":    time.Now().UnixMilli(),
	})
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Telemetry response encode failed", slog.Any("error", err))
	}
}
