package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzzle-leaderboard/internal/domain"
	"github.com/puzzle-leaderboard/internal/extract"
)

func TestGenerator_ScoredMessagesAreExtractable(t *testing.T) {
	gen := newGenerator(7, 5, domain.AllGames, 250, 0.3)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	var scored, chatter int
	for range 200 {
		msg, hasScore := gen.Next(now)
		require.NotEmpty(t, msg.PlayerID)
		require.NotEmpty(t, msg.PlayerName)
		assert.Equal(t, now, msg.SentAt)

		parsed, ok := extract.Extract(msg.Text)
		assert.Equal(t, hasScore, ok, "text %q", msg.Text)
		if !hasScore {
			chatter++
			continue
		}
		scored++
		assert.Equal(t, 250, parsed.PuzzleID)
		assert.GreaterOrEqual(t, parsed.TimeSeconds, 15)
		assert.LessOrEqual(t, parsed.TimeSeconds, 600)
	}

	assert.Positive(t, scored)
	assert.Positive(t, chatter)
	assert.LessOrEqual(t, scored, 5*len(domain.AllGames), "one score per player, game and puzzle")
}

func TestGenerator_NextPuzzleResetsSubmissions(t *testing.T) {
	gen := newGenerator(1, 1, []domain.GameType{domain.GameZip}, 10, 0)
	now := time.Now()

	first, ok := gen.Next(now)
	require.True(t, ok)
	_, ok = gen.Next(now)
	assert.False(t, ok, "second share for the same puzzle becomes chatter")

	gen.NextPuzzle()
	next, ok := gen.Next(now)
	require.True(t, ok)
	assert.Equal(t, first.PlayerID, next.PlayerID)

	parsed, matched := extract.Extract(next.Text)
	require.True(t, matched)
	assert.Equal(t, 11, parsed.PuzzleID)
}
