package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzzle-leaderboard/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("PG_PASSWORD_FOR_TEST", "s3cret")
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 2s
postgres:
  host: db
  password: ${PG_PASSWORD_FOR_TEST}
leaderboard:
  cache_ttl: 1m
scoring:
  games: [Zip, Queens]
  points_by_rank: [5, 3, 1]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, time.Minute, cfg.Leaderboard.CacheTTL)
	assert.Equal(t, []domain.GameType{domain.GameZip, domain.GameQueens}, cfg.Scoring.Games)
	assert.Equal(t, []int{5, 3, 1}, cfg.Scoring.PointsByRank)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
}

func TestLoad_DefaultScoring(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultScoring(), cfg.Scoring)
}

func TestLoad_InvalidScoring(t *testing.T) {
	_, err := Load(writeConfig(t, "scoring:\n  games: [Wordle]\n  points_by_rank: [3]\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidScoring)
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "logging:\n  format: xml\n"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Refresh.Enabled)
	assert.Equal(t, domain.DefaultScoring(), cfg.Scoring)

	_, _, err = LoadOrDefault(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, LoggingConfig{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LoggingConfig{Level: "loud"}.SlogLevel())
}

func TestPostgresConfig_ConnectionString(t *testing.T) {
	c := PostgresConfig{User: "u", Password: "p", Host: "h", Port: 5432, Database: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.ConnectionString())
}
