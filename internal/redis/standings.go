package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
)

// StandingsCache stores computed standings so reads skip the ranking pass
type StandingsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStandingsCache creates a new Redis standings cache
func NewStandingsCache(ctx context.Context, cfg *config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*StandingsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStandingsCacheWithClient(client, ttl, logger), nil
}

// NewStandingsCacheWithClient wraps an existing client
func NewStandingsCacheWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StandingsCache {
	return &StandingsCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *StandingsCache) Close() error {
	return c.client.Close()
}

// Ping checks Redis connectivity
func (c *StandingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// snapshotKey returns the key holding the JSON standings of a period
func snapshotKey(period domain.Period) string {
	return fmt.Sprintf("standings:%s:snapshot", period)
}

// SetStandings replaces the cached standings of a period
func (c *StandingsCache) SetStandings(ctx context.Context, period domain.Period, standings []domain.PlayerStanding) error {
	data, err := json.Marshal(standings)
	if err != nil {
		return fmt.Errorf("marshaling standings: %w", err)
	}

	if err := c.client.Set(ctx, snapshotKey(period), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("setting standings: %w", err)
	}
	return nil
}

// GetStandings returns cached standings or domain.ErrCacheMiss
func (c *StandingsCache) GetStandings(ctx context.Context, period domain.Period) ([]domain.PlayerStanding, error) {
	data, err := c.client.Get(ctx, snapshotKey(period)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("getting standings: %w", err)
	}

	var standings []domain.PlayerStanding
	if err := json.Unmarshal(data, &standings); err != nil {
		return nil, fmt.Errorf("decoding standings: %w", err)
	}
	return standings, nil
}

// Invalidate drops the cached standings of every period
func (c *StandingsCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(domain.Periods))
	for _, p := range domain.Periods {
		keys = append(keys, snapshotKey(p))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating standings: %w", err)
	}
	c.logger.Debug("standings cache invalidated", "keys", len(keys))
	return nil
}
