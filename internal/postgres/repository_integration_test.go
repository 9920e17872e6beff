//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("puzzles"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.PostgresConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "puzzles",
		MaxConnections:  4,
		MinConnections:  1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}
	repo, err := NewRepository(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.RunMigrations(ctx))
	return repo
}

func TestRepository_ScoreLifecycle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	changed, err := repo.UpsertProfile(ctx, domain.Player{ID: "p1", Username: "Ana"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpsertProfile(ctx, domain.Player{ID: "p1", Username: "Ana"})
	require.NoError(t, err)
	assert.False(t, changed, "same name leaves the profile untouched")

	first, err := repo.InsertScore(ctx, domain.ScoreRecord{
		PlayerID: "p1", GameType: domain.GameQueens, PuzzleID: 412, PuzzleDate: day, TimeSeconds: 92,
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = repo.InsertScore(ctx, domain.ScoreRecord{
		PlayerID: "p1", GameType: domain.GameQueens, PuzzleID: 412, PuzzleDate: day, TimeSeconds: 80,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSubmission)

	_, err = repo.InsertScore(ctx, domain.ScoreRecord{
		PlayerID: "p2", GameType: domain.GameQueens, PuzzleID: 412, PuzzleDate: day.AddDate(0, -2, 0), TimeSeconds: 75,
	})
	require.NoError(t, err)

	all, err := repo.ListScores(ctx, domain.ScoreFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana", all[0].DisplayName)
	assert.Equal(t, "", all[1].DisplayName, "players without a profile join to an empty name")
	assert.Equal(t, 92, all[0].TimeSeconds)

	recent, err := repo.ListScores(ctx, domain.ScoreFilter{Since: day.AddDate(0, 0, -7)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "p1", recent[0].PlayerID)

	puzzle, err := repo.ListPuzzleScores(ctx, domain.GameQueens, 412)
	require.NoError(t, err)
	require.Len(t, puzzle, 2)
	assert.Equal(t, "p2", puzzle[0].PlayerID)

	mine, err := repo.ListPlayerScores(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.GameQueens, mine[0].GameType)

	require.NoError(t, repo.Ping(ctx))
}
