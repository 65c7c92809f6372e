// Package api serves the reporting service over HTTP: JSON scoring routes,
// a Server-Sent Events feed of tracked scores and a live-scoring websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/reporting"
	"github.com/efebarandurmaz/archscore/internal/server"
	"github.com/efebarandurmaz/archscore/internal/suggest"
)

const (
	maxBodyBytes        = 4 << 20
	defaultHistoryLimit = 10
	defaultSimilarK     = 5
	keepAliveInterval   = 30 * time.Second
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() *Config {
	return &Config{ListenAddr: ":8080", ReadTimeout: 10 * time.Second, WriteTimeout: 30 * time.Second}
}

// Server is the archscore HTTP server.
type Server struct {
	config   *Config
	svc      *reporting.Service
	hub      *Hub
	metrics  *observability.ScoringMetrics
	upgrader websocket.Upgrader
	handler  http.Handler
	server   *http.Server
}

// NewServer wires the routes. health may be nil.
func NewServer(config *Config, svc *reporting.Service, hub *Hub, health *server.HealthServer, metrics *observability.ScoringMetrics) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if metrics == nil {
		metrics = observability.Metrics()
	}
	s := &Server{
		config:  config,
		svc:     svc,
		hub:     hub,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	svc.Subscribe(NewEmitter(hub).Tracked)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/score", s.handleScore)
	mux.HandleFunc("POST /api/sessions/{session}/diagrams/{type}/track", s.handleTrack)
	mux.HandleFunc("GET /api/sessions/{session}/diagrams/{type}/history", s.handleHistory)
	mux.HandleFunc("GET /api/patterns", s.handlePatterns)
	mux.HandleFunc("POST /api/suggest", s.handleSuggest)
	mux.HandleFunc("POST /api/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.Handle("GET /metrics", metrics.Handler())
	if health != nil {
		health.Register(mux)
	}

	s.handler = corsMiddleware(loggingMiddleware(mux))
	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves until Stop is called.
func (s *Server) Start() error {
	slog.Info("starting api server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

// handleScore handles POST /api/score
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDiagram(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	report, err := s.svc.Score(r.Context(), d)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleTrack handles POST /api/sessions/{session}/diagrams/{type}/track
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := identityFromPath(r)
	d, err := decodeDiagram(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	d.Type = id.DiagramType

	res, err := s.svc.ScoreAndTrack(r.Context(), id, d)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleHistory handles GET /api/sessions/{session}/diagrams/{type}/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	snaps, err := s.svc.History(r.Context(), identityFromPath(r), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snaps)
}

// handlePatterns handles GET /api/patterns
func (s *Server) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Engine().Registry().Definitions())
}

type suggestRequest struct {
	Diagram *diagram.Diagram `json:"diagram"`
	Context suggest.Context  `json:"context"`
}

// handleSuggest handles POST /api/suggest
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Diagram == nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "diagram is required"})
		return
	}
	out, err := s.svc.Suggest(r.Context(), withDefaultType(req.Diagram), req.Context)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type similarRequest struct {
	Diagram *diagram.Diagram `json:"diagram"`
	K       int              `json:"k"`
}

// handleSimilar handles POST /api/similar
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Diagram == nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "diagram is required"})
		return
	}
	if req.K <= 0 {
		req.K = defaultSimilarK
	}
	results, err := s.svc.Similar(r.Context(), withDefaultType(req.Diagram), req.K)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// handleSSE handles GET /api/events (Server-Sent Events)
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	client, err := NewClient(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	s.hub.Register(client)
	defer s.hub.Unregister(client)
	slog.Debug("SSE client connected")

	data, _ := json.Marshal(&Event{Type: EventConnected, Timestamp: time.Now().UTC()})
	client.send(data)

	go client.KeepAlive(keepAliveInterval)

	<-r.Context().Done()
	slog.Debug("SSE client disconnected")
}

// handleLive handles GET /api/live. Each text message is a diagram; each
// reply is its score report or an error object.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.LiveConnections.Inc()
	defer s.metrics.LiveConnections.Dec()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var reply any
		d, err := diagram.Decode(message, diagram.FormatJSON)
		if err == nil {
			reply, err = s.svc.Score(r.Context(), d)
		}
		if err != nil {
			reply = errorBody{Error: err.Error()}
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func identityFromPath(r *http.Request) diagram.Identity {
	return diagram.NewIdentity(r.PathValue("session"), diagram.DiagramType(r.PathValue("type")))
}

func withDefaultType(d *diagram.Diagram) *diagram.Diagram {
	if d.Type == "" {
		d.Type = diagram.DiagramSystem
	}
	return d
}

// decodeError marks a malformed request body.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func decodeDiagram(w http.ResponseWriter, r *http.Request) (*diagram.Diagram, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &decodeError{err: err}
	}
	d, err := diagram.Decode(data, diagram.FormatJSON)
	if err != nil {
		return nil, &decodeError{err: err}
	}
	return d, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		verr *diagram.ValidationError
		uerr *diagram.UnsupportedDiagramTypeError
		derr *decodeError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &derr):
		return http.StatusBadRequest
	case errors.As(err, &uerr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reporting.ErrSimilarityDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var verr *diagram.ValidationError
	if errors.As(err, &verr) {
		body.Problems = verr.Problems
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// corsMiddleware adds CORS headers for browser-based editors
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
