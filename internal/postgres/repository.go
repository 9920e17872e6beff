package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
)

// uniqueViolation is the SQLSTATE raised by the scores uniqueness constraint
const uniqueViolation = "23505"

// Repository provides PostgreSQL-based score storage
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			avatar_url TEXT,
			updated_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			game_type TEXT NOT NULL,
			puzzle_id INT NOT NULL CHECK (puzzle_id > 0),
			puzzle_date DATE NOT NULL,
			time_seconds INT NOT NULL CHECK (time_seconds >= 0),
			created_at TIMESTAMPTZ DEFAULT now(),
			UNIQUE (user_id, game_type, puzzle_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_puzzle ON scores(game_type, puzzle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_recent ON scores(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_puzzle_date ON scores(puzzle_date)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// UpsertProfile creates or renames a player profile. It reports false when
// the stored profile already matched.
func (r *Repository) UpsertProfile(ctx context.Context, player domain.Player) (bool, error) {
	query := `
		INSERT INTO profiles (id, username, avatar_url, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (id)
		DO UPDATE SET username = $2, avatar_url = COALESCE(NULLIF($3, ''), profiles.avatar_url), updated_at = $4
		WHERE profiles.username IS DISTINCT FROM EXCLUDED.username
			OR (EXCLUDED.avatar_url IS NOT NULL AND profiles.avatar_url IS DISTINCT FROM EXCLUDED.avatar_url)
	`
	tag, err := r.pool.Exec(ctx, query, player.ID, player.Username, player.AvatarURL, time.Now())
	if err != nil {
		return false, fmt.Errorf("upserting profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertScore appends a score. A second score for the same player, game and
// puzzle returns domain.ErrDuplicateSubmission.
func (r *Repository) InsertScore(ctx context.Context, record domain.ScoreRecord) (domain.ScoreRecord, error) {
	query := `
		INSERT INTO scores (user_id, game_type, puzzle_id, puzzle_date, time_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		record.PlayerID,
		string(record.GameType),
		record.PuzzleID,
		record.PuzzleDate,
		record.TimeSeconds,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ScoreRecord{}, domain.ErrDuplicateSubmission
		}
		return domain.ScoreRecord{}, fmt.Errorf("inserting score: %w", err)
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const selectScores = `
	SELECT s.id, s.user_id, COALESCE(p.username, ''), s.game_type, s.puzzle_id,
	       s.puzzle_date, s.time_seconds, s.created_at
	FROM scores s
	LEFT JOIN profiles p ON p.id = s.user_id
`

// ListScores returns every score joined with the player's display name
func (r *Repository) ListScores(ctx context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.Since.IsZero() {
		rows, err = r.pool.Query(ctx, selectScores+` ORDER BY s.id`)
	} else {
		rows, err = r.pool.Query(ctx, selectScores+` WHERE s.puzzle_date >= $1 ORDER BY s.id`, filter.Since)
	}
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	return collectScores(rows)
}

// ListPuzzleScores returns the scores of a single puzzle
func (r *Repository) ListPuzzleScores(ctx context.Context, game domain.GameType, puzzleID int) ([]domain.ScoreRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectScores+` WHERE s.game_type = $1 AND s.puzzle_id = $2 ORDER BY s.time_seconds, s.id`,
		string(game), puzzleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing puzzle scores: %w", err)
	}
	return collectScores(rows)
}

// ListPlayerScores returns a player's most recent submissions
func (r *Repository) ListPlayerScores(ctx context.Context, playerID string, limit int) ([]domain.ScoreRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectScores+` WHERE s.user_id = $1 ORDER BY s.created_at DESC, s.id DESC LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing player scores: %w", err)
	}
	return collectScores(rows)
}

func collectScores(rows pgx.Rows) ([]domain.ScoreRecord, error) {
	defer rows.Close()

	records := []domain.ScoreRecord{}
	for rows.Next() {
		var (
			rec  domain.ScoreRecord
			game string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.PlayerID,
			&rec.DisplayName,
			&game,
			&rec.PuzzleID,
			&rec.PuzzleDate,
			&rec.TimeSeconds,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		rec.GameType = domain.GameType(game)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}
	return records, nil
}
