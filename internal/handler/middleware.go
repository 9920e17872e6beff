package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
)

const (
	// HeaderPlayerID carries the caller's identity, set by the fronting proxy
	HeaderPlayerID = "X-Player-ID"
	// HeaderPlayerName optionally carries the caller's display name
	HeaderPlayerName = "X-Player-Name"

	cleanupThreshold = 500
	maxIdleAge       = 10 * time.Minute
)

type playerKey struct{}

// PlayerIDFromContext returns the identity set by the player middleware
func PlayerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(playerKey{}).(string)
	return id
}

// playerIdentity rejects anonymous writes
func (h *Handler) playerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := strings.TrimSpace(r.Header.Get(HeaderPlayerID))
		if playerID == "" {
			h.writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), playerKey{}, playerID)))
	})
}

// playerProfile keeps display names current. It runs after rateLimit so a
// throttled request never reaches the store.
func (h *Handler) playerProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := strings.TrimSpace(r.Header.Get(HeaderPlayerName)); name != "" {
			playerID := PlayerIDFromContext(r.Context())
			if err := h.service.UpsertPlayer(r.Context(), domain.Player{ID: playerID, Username: name}); err != nil {
				h.logger.Warn("failed to update player profile", "player_id", playerID, "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit throttles submissions per player
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow(PlayerIDFromContext(r.Context())) {
			h.writeError(w, r, domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PlayerRateLimiter keeps one token bucket per player and prunes idle ones
type PlayerRateLimiter struct {
	players map[string]*limiterEntry
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewPlayerRateLimiter converts a per-minute budget into a token bucket.
// A non-positive budget disables limiting.
func NewPlayerRateLimiter(cfg config.RateLimitConfig) *PlayerRateLimiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &PlayerRateLimiter{
		players: make(map[string]*limiterEntry),
		r:       rate.Limit(float64(cfg.PerMinute) / 60),
		b:       burst,
	}
}

// Allow reports whether the player may submit now
func (l *PlayerRateLimiter) Allow(playerID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.players) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for id, e := range l.players {
			if e.lastSeen.Before(cutoff) {
				delete(l.players, id)
			}
		}
	}

	e, ok := l.players[playerID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.players[playerID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// requestLogger logs one structured line per request
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID, X-Player-ID, X-Player-Name")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
