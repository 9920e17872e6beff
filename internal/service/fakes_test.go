package service

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
)

var testNow = time.Date(2026, time.March, 15, 12, 30, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	records  []domain.ScoreRecord
	profiles map[string]string
	upserts  int
	limits   []int
	listErr  error
	// afterList runs once the records of a ListScores call have been read
	afterList func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[string]string)}
}

func (f *fakeStore) InsertScore(_ context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.PlayerID == rec.PlayerID && r.GameType == rec.GameType && r.PuzzleID == rec.PuzzleID {
			return domain.ScoreRecord{}, domain.ErrDuplicateSubmission
		}
	}
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = testNow.Add(time.Duration(f.nextID) * time.Second)
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) UpsertProfile(_ context.Context, p domain.Player) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if prev, ok := f.profiles[p.ID]; ok && prev == p.Username {
		return false, nil
	}
	f.profiles[p.ID] = p.Username
	return true, nil
}

func (f *fakeStore) joined(match func(domain.ScoreRecord) bool) []domain.ScoreRecord {
	var out []domain.ScoreRecord
	for _, r := range f.records {
		if match(r) {
			r.DisplayName = f.profiles[r.PlayerID]
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeStore) ListScores(_ context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error) {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	out := f.joined(func(r domain.ScoreRecord) bool {
		return filter.Since.IsZero() || !r.PuzzleDate.Before(filter.Since)
	})
	hook := f.afterList
	f.afterList = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) ListPuzzleScores(_ context.Context, game domain.GameType, puzzleID int) ([]domain.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined(func(r domain.ScoreRecord) bool {
		return r.GameType == game && r.PuzzleID == puzzleID
	}), nil
}

func (f *fakeStore) ListPlayerScores(_ context.Context, playerID string, limit int) ([]domain.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	out := f.joined(func(r domain.ScoreRecord) bool { return r.PlayerID == playerID })
	slices.SortFunc(out, func(a, b domain.ScoreRecord) int { return cmp.Compare(b.ID, a.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCache struct {
	mu            sync.Mutex
	snapshots     map[domain.Period][]domain.PlayerStanding
	sets          int
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[domain.Period][]domain.PlayerStanding)}
}

func (c *fakeCache) GetStandings(_ context.Context, p domain.Period) ([]domain.PlayerStanding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.snapshots[p]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return st, nil
}

func (c *fakeCache) SetStandings(_ context.Context, p domain.Period, st []domain.PlayerStanding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.snapshots[p] = st
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	clear(c.snapshots)
	return nil
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent map[domain.Period][]domain.PlayerStanding
}

func (b *fakeBroadcaster) BroadcastStandings(p domain.Period, st []domain.PlayerStanding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent == nil {
		b.sent = make(map[domain.Period][]domain.PlayerStanding)
	}
	b.sent[p] = st
}

func newTestService(store *fakeStore, cache *fakeCache, opts ...Option) *ScoreService {
	cfg := &config.LeaderboardConfig{DefaultLimit: 20, MaxLimit: 50}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewScoreService(store, cache, domain.DefaultScoring(), cfg, logger, opts...)
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
