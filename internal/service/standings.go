package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/puzzle-leaderboard/internal/domain"
)

// Standings returns the leaderboard for a period, computing it on a cache miss
func (s *ScoreService) Standings(ctx context.Context, period domain.Period) ([]domain.PlayerStanding, error) {
	ctx, span := s.tracer.Start(ctx, "ScoreService.Standings",
		trace.WithAttributes(attribute.String("period", string(period))))
	defer span.End()

	gen := s.currentGeneration()
	cached, err := s.cache.GetStandings(ctx, period)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("failed to read standings cache", "period", period, "error", err)
	}

	standings, err := s.compute(ctx, period)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	s.storeSnapshot(ctx, gen, period, standings)
	return standings, nil
}

// PlayerStanding returns one player's standing and 1-based position.
// A player without records is absent, not zero.
func (s *ScoreService) PlayerStanding(ctx context.Context, period domain.Period, playerID string) (domain.PlayerPosition, error) {
	standings, err := s.Standings(ctx, period)
	if err != nil {
		return domain.PlayerPosition{}, err
	}

	for i, st := range standings {
		if st.PlayerID == playerID {
			return domain.PlayerPosition{Position: i + 1, Standing: st}, nil
		}
	}
	return domain.PlayerPosition{}, domain.ErrPlayerNotFound
}

// PuzzleResults returns the dense-ranked placings of one puzzle
func (s *ScoreService) PuzzleResults(ctx context.Context, gameName string, puzzleID int) (domain.PuzzleResult, error) {
	ctx, span := s.tracer.Start(ctx, "ScoreService.PuzzleResults")
	defer span.End()

	game, err := domain.ParseGameType(gameName)
	if err != nil {
		return domain.PuzzleResult{}, err
	}
	if !s.scoring.Has(game) {
		return domain.PuzzleResult{}, fmt.Errorf("%w: %s is not scored", domain.ErrUnknownGame, game)
	}
	if puzzleID <= 0 {
		return domain.PuzzleResult{}, fmt.Errorf("%w: puzzle number must be positive", domain.ErrInvalidRequest)
	}

	records, err := s.store.ListPuzzleScores(ctx, game, puzzleID)
	if err != nil {
		recordSpanError(span, err)
		return domain.PuzzleResult{}, fmt.Errorf("listing puzzle scores: %w", err)
	}

	results, err := s.engine.Results(records)
	if err != nil {
		recordSpanError(span, err)
		return domain.PuzzleResult{}, err
	}
	if len(results) == 0 {
		return domain.PuzzleResult{}, domain.ErrPuzzleNotFound
	}
	return results[0], nil
}

// RecentScores returns a player's latest records, newest first
func (s *ScoreService) RecentScores(ctx context.Context, playerID string, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	records, err := s.store.ListPlayerScores(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing player scores: %w", err)
	}
	return records, nil
}

// Refresh recomputes every period, rewrites the cache and notifies subscribers
func (s *ScoreService) Refresh(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ScoreService.Refresh")
	defer span.End()

	for _, period := range domain.Periods {
		gen := s.currentGeneration()
		standings, err := s.compute(ctx, period)
		if err != nil {
			recordSpanError(span, err)
			return fmt.Errorf("refreshing %s standings: %w", period, err)
		}

		s.storeSnapshot(ctx, gen, period, standings)
		if s.broadcaster != nil {
			s.broadcaster.BroadcastStandings(period, standings)
		}
	}
	return nil
}

// storeSnapshot caches standings computed under generation gen, unless a
// write invalidated the cache while they were being computed.
func (s *ScoreService) storeSnapshot(ctx context.Context, gen uint64, period domain.Period, standings []domain.PlayerStanding) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	if s.generation != gen {
		s.logger.Debug("discarding stale standings", "period", period)
		return
	}
	if err := s.cache.SetStandings(ctx, period, standings); err != nil {
		s.logger.Warn("failed to cache standings", "period", period, "error", err)
	}
}

func (s *ScoreService) currentGeneration() uint64 {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.generation
}

// compute reads the period's records and ranks them. Records for games no
// longer in the scoring table are skipped.
func (s *ScoreService) compute(ctx context.Context, period domain.Period) ([]domain.PlayerStanding, error) {
	records, err := s.store.ListScores(ctx, period.Filter(s.now()))
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}

	scored := records[:0:0]
	for _, rec := range records {
		if s.scoring.Has(rec.GameType) {
			scored = append(scored, rec)
		}
	}
	if skipped := len(records) - len(scored); skipped > 0 {
		s.logger.Debug("skipped records of unscored games", "period", period, "count", skipped)
	}

	start := time.Now()
	standings, err := s.engine.Rank(scored)
	if err != nil {
		return nil, fmt.Errorf("ranking %s: %w", period, err)
	}
	s.metrics.ObserveRanking(string(period), len(standings), time.Since(start))
	return standings, nil
}
