package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
	"github.com/puzzle-leaderboard/internal/extract"
	"github.com/puzzle-leaderboard/internal/metrics"
	"github.com/puzzle-leaderboard/internal/ranking"
)

const tracerName = "github.com/puzzle-leaderboard/internal/service"

// ScoreStore persists score records and player profiles
type ScoreStore interface {
	InsertScore(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error)
	// UpsertProfile reports whether the stored profile changed
	UpsertProfile(ctx context.Context, player domain.Player) (bool, error)
	ListScores(ctx context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error)
	ListPuzzleScores(ctx context.Context, game domain.GameType, puzzleID int) ([]domain.ScoreRecord, error)
	ListPlayerScores(ctx context.Context, playerID string, limit int) ([]domain.ScoreRecord, error)
}

// StandingsCache keeps computed standings between writes
type StandingsCache interface {
	GetStandings(ctx context.Context, period domain.Period) ([]domain.PlayerStanding, error)
	SetStandings(ctx context.Context, period domain.Period, standings []domain.PlayerStanding) error
	Invalidate(ctx context.Context) error
}

// Broadcaster pushes fresh standings to live subscribers
type Broadcaster interface {
	BroadcastStandings(period domain.Period, standings []domain.PlayerStanding)
}

// BatchResult summarises a batch of share messages
type BatchResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// ScoreService provides business logic for score submission and standings
type ScoreService struct {
	store       ScoreStore
	cache       StandingsCache
	broadcaster Broadcaster
	scoring     domain.Scoring
	extractor   *extract.Extractor
	engine      *ranking.Engine
	dates       *when.Parser
	config      *config.LeaderboardConfig
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger

	// generation is bumped on every invalidation. Snapshots computed under
	// an older generation are not cached.
	snapshotMu sync.Mutex
	generation uint64
}

// Option customises a ScoreService
type Option func(*ScoreService)

// WithBroadcaster publishes recomputed standings after every refresh
func WithBroadcaster(b Broadcaster) Option {
	return func(s *ScoreService) { s.broadcaster = b }
}

// WithMetrics records submission and ranking metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ScoreService) { s.metrics = m }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(s *ScoreService) { s.tracer = t }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ScoreService) { s.now = now }
}

// NewScoreService creates a new score service. The scoring table must
// already be validated.
func NewScoreService(
	store ScoreStore,
	cache StandingsCache,
	scoring domain.Scoring,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
	opts ...Option,
) *ScoreService {
	dates := when.New(nil)
	dates.Add(en.All...)

	s := &ScoreService{
		store:     store,
		cache:     cache,
		scoring:   scoring,
		extractor: extract.New(scoring.Games),
		engine:    ranking.New(scoring),
		dates:     dates,
		config:    cfg,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Games returns the configured games and points table
func (s *ScoreService) Games() domain.Scoring {
	return domain.Scoring{
		Games:         append([]domain.GameType(nil), s.scoring.Games...),
		PointsByRank:  append([]int(nil), s.scoring.PointsByRank...),
		DefaultPoints: s.scoring.DefaultPoints,
	}
}

// Parse previews what would be recorded for a share text
func (s *ScoreService) Parse(text string) (domain.ParsedScore, error) {
	parsed, ok := s.extractor.Extract(text)
	if !ok {
		s.metrics.Extraction("")
		return domain.ParsedScore{}, domain.ErrNoMatch
	}
	s.metrics.Extraction(string(parsed.GameType))
	return parsed, nil
}

// UpsertPlayer stores the display name a player is known by. Standings are
// only invalidated when the name actually changed.
func (s *ScoreService) UpsertPlayer(ctx context.Context, player domain.Player) error {
	player.ID = strings.TrimSpace(player.ID)
	player.Username = strings.TrimSpace(player.Username)
	if player.ID == "" {
		return fmt.Errorf("%w: player id is required", domain.ErrInvalidSubmission)
	}
	if player.Username == "" {
		return nil
	}
	player.UpdatedAt = s.now().UTC()

	changed, err := s.store.UpsertProfile(ctx, player)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	if changed {
		s.invalidate(ctx)
	}
	return nil
}

// SubmitText extracts a score from pasted share text and records it
func (s *ScoreService) SubmitText(ctx context.Context, playerID, text, date string) (domain.ScoreRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ScoreService.SubmitText")
	defer span.End()

	record, err := s.submitText(ctx, metrics.SourcePaste, playerID, text, date)
	if err != nil {
		recordSpanError(span, err)
		return domain.ScoreRecord{}, err
	}
	s.afterWrite(ctx)
	return record, nil
}

// SubmitManual records a score entered through the form
func (s *ScoreService) SubmitManual(ctx context.Context, playerID string, sub domain.ManualSubmission) (domain.ScoreRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ScoreService.SubmitManual")
	defer span.End()

	record, err := s.manualRecord(playerID, sub)
	if err != nil {
		s.metrics.Submission(metrics.SourceManual, metrics.OutcomeInvalid)
		recordSpanError(span, err)
		return domain.ScoreRecord{}, err
	}

	stored, err := s.insert(ctx, metrics.SourceManual, record)
	if err != nil {
		recordSpanError(span, err)
		return domain.ScoreRecord{}, err
	}
	s.afterWrite(ctx)
	return stored, nil
}

// SubmitTextBatch ingests forwarded share messages. A failing message is
// logged and counted, it never aborts the batch.
func (s *ScoreService) SubmitTextBatch(ctx context.Context, messages []domain.ShareMessage) BatchResult {
	ctx, span := s.tracer.Start(ctx, "ScoreService.SubmitTextBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(messages))))
	defer span.End()

	var result BatchResult
	for _, msg := range messages {
		if msg.PlayerName != "" {
			player := domain.Player{ID: msg.PlayerID, Username: msg.PlayerName, UpdatedAt: s.now().UTC()}
			if _, err := s.store.UpsertProfile(ctx, player); err != nil {
				s.logger.Warn("failed to upsert profile from share", "player_id", msg.PlayerID, "error", err)
			}
		}

		date := ""
		if !msg.SentAt.IsZero() {
			date = msg.SentAt.UTC().Format(domain.DateLayout)
		}

		if _, err := s.submitText(ctx, metrics.SourceKafka, msg.PlayerID, msg.Text, date); err != nil {
			result.Rejected++
			s.logger.Debug("share message rejected",
				"message_id", msg.ID,
				"player_id", msg.PlayerID,
				"error", err,
			)
			continue
		}
		result.Accepted++
	}

	span.SetAttributes(
		attribute.Int("batch.accepted", result.Accepted),
		attribute.Int("batch.rejected", result.Rejected),
	)
	if result.Accepted > 0 {
		s.afterWrite(ctx)
	}
	return result
}

func (s *ScoreService) submitText(ctx context.Context, source, playerID, text, date string) (domain.ScoreRecord, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		s.metrics.Submission(source, metrics.OutcomeInvalid)
		return domain.ScoreRecord{}, fmt.Errorf("%w: player id is required", domain.ErrInvalidSubmission)
	}

	parsed, err := s.Parse(text)
	if err != nil {
		s.metrics.Submission(source, metrics.OutcomeNoMatch)
		return domain.ScoreRecord{}, err
	}

	puzzleDate, err := s.ResolveDate(date)
	if err != nil {
		s.metrics.Submission(source, metrics.OutcomeInvalid)
		return domain.ScoreRecord{}, err
	}

	record := domain.ScoreRecord{
		PlayerID:    playerID,
		GameType:    parsed.GameType,
		PuzzleID:    parsed.PuzzleID,
		PuzzleDate:  puzzleDate,
		TimeSeconds: parsed.TimeSeconds,
	}
	if err := record.Validate(); err != nil {
		s.metrics.Submission(source, metrics.OutcomeInvalid)
		return domain.ScoreRecord{}, err
	}
	return s.insert(ctx, source, record)
}

func (s *ScoreService) manualRecord(playerID string, sub domain.ManualSubmission) (domain.ScoreRecord, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return domain.ScoreRecord{}, fmt.Errorf("%w: player id is required", domain.ErrInvalidSubmission)
	}

	game, err := domain.ParseGameType(sub.GameType)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if !s.scoring.Has(game) {
		return domain.ScoreRecord{}, fmt.Errorf("%w: %s is not scored", domain.ErrUnknownGame, game)
	}

	seconds, err := domain.ParseDuration(sub.Time)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	puzzleDate, err := s.ResolveDate(sub.Date)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	record := domain.ScoreRecord{
		PlayerID:    playerID,
		GameType:    game,
		PuzzleID:    sub.PuzzleID,
		PuzzleDate:  puzzleDate,
		TimeSeconds: seconds,
	}
	if err := record.Validate(); err != nil {
		return domain.ScoreRecord{}, err
	}
	return record, nil
}

func (s *ScoreService) insert(ctx context.Context, source string, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	stored, err := s.store.InsertScore(ctx, record)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			s.metrics.Submission(source, metrics.OutcomeDuplicate)
			return domain.ScoreRecord{}, err
		}
		s.metrics.Submission(source, metrics.OutcomeError)
		return domain.ScoreRecord{}, fmt.Errorf("storing score: %w", err)
	}

	s.metrics.Submission(source, metrics.OutcomeAccepted)
	s.logger.Info("score recorded",
		"source", source,
		"player_id", stored.PlayerID,
		"game", stored.GameType,
		"puzzle_id", stored.PuzzleID,
		"time", stored.FormattedTime(),
	)
	return stored, nil
}

// ResolveDate turns user input into a puzzle date. Empty means today,
// otherwise YYYY-MM-DD or a phrase such as "yesterday" is accepted.
func (s *ScoreService) ResolveDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	now := s.now().UTC()
	if input == "" {
		return truncateDay(now), nil
	}

	if t, err := time.Parse(domain.DateLayout, input); err == nil {
		return t, nil
	}

	r, err := s.dates.Parse(strings.ToLower(input), now)
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDate, input)
	}
	return truncateDay(r.Time.UTC()), nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// afterWrite drops stale standings and, when anyone is listening, pushes
// the recomputed ones.
func (s *ScoreService) afterWrite(ctx context.Context) {
	s.invalidate(ctx)
	if s.broadcaster == nil {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("failed to refresh standings after write", "error", err)
	}
}

func (s *ScoreService) invalidate(ctx context.Context) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	s.generation++
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate standings cache", "error", err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
