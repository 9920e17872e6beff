package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
	"github.com/puzzle-leaderboard/internal/websocket"
)

const maxBodyBytes = 64 << 10

// ScoreService is the business API the HTTP layer serves
type ScoreService interface {
	Games() domain.Scoring
	Parse(text string) (domain.ParsedScore, error)
	UpsertPlayer(ctx context.Context, player domain.Player) error
	SubmitText(ctx context.Context, playerID, text, date string) (domain.ScoreRecord, error)
	SubmitManual(ctx context.Context, playerID string, sub domain.ManualSubmission) (domain.ScoreRecord, error)
	Standings(ctx context.Context, period domain.Period) ([]domain.PlayerStanding, error)
	PlayerStanding(ctx context.Context, period domain.Period, playerID string) (domain.PlayerPosition, error)
	PuzzleResults(ctx context.Context, game string, puzzleID int) (domain.PuzzleResult, error)
	RecentScores(ctx context.Context, playerID string, limit int) ([]domain.ScoreRecord, error)
}

// ReadinessCheck is one dependency probed by /ready
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options configures the optional parts of the router
type Options struct {
	RateLimit config.RateLimitConfig
	Gatherer  prometheus.Gatherer
	Checks    []ReadinessCheck
}

// Handler provides HTTP handlers for the scoring API
type Handler struct {
	service ScoreService
	hub     *websocket.Hub
	limiter *PlayerRateLimiter
	opts    Options
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service ScoreService, hub *websocket.Hub, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		limiter: NewPlayerRateLimiter(opts.RateLimit),
		opts:    opts,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if h.hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", h.GetGames)
		r.Post("/scores/parse", h.ParseScore)

		r.Group(func(r chi.Router) {
			r.Use(h.playerIdentity)
			r.Use(h.rateLimit)
			r.Use(h.playerProfile)
			r.Post("/scores", h.SubmitManual)
			r.Post("/scores/paste", h.SubmitPaste)
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/players/{playerID}", h.GetPlayerStanding)
		})
		r.Get("/puzzles/{game}/{puzzleID}", h.GetPuzzleResults)
		r.Get("/players/{playerID}/scores", h.GetPlayerScores)

		if h.hub != nil {
			r.Get("/ws/stats", h.GetWebSocketStats)
		}
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, status int, data any) {
	h.writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps a service error onto a status code. Unexpected errors
// are logged and hidden behind ErrInternalError.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		err = domain.ErrInternalError
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck probes every dependency and reports each result
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.opts.Checks))
	ready := true
	for _, c := range h.opts.Checks {
		if err := c.Check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", c.Name, "error", err)
			results[c.Name] = "unavailable"
			ready = false
			continue
		}
		results[c.Name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    results,
			Error:   "not ready",
		})
		return
	}
	h.writeSuccess(w, http.StatusOK, map[string]any{"status": "ready", "checks": results})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, h.hub.Stats())
}
