// Package ranking turns raw puzzle results into a points leaderboard.
//
// Every (game, puzzle) pair is ranked on its own using dense ranking by solve
// time: equal times share a rank and the next slower time gets the next rank.
// Ranks map to points through domain.Scoring and points are summed per player.
package ranking

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/puzzle-leaderboard/internal/domain"
)

// UnknownPlayerName is shown for records without a joined display name.
const UnknownPlayerName = "Unknown"

// Engine ranks score records with a fixed scoring table. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	scoring  domain.Scoring
	gameRank map[domain.GameType]int
}

// New creates an engine. The scoring table is expected to be validated.
func New(scoring domain.Scoring) *Engine {
	gameRank := make(map[domain.GameType]int, len(scoring.Games))
	for i, g := range scoring.Games {
		gameRank[g] = i
	}
	return &Engine{scoring: scoring, gameRank: gameRank}
}

var defaultEngine = New(domain.DefaultScoring())

// Rank computes standings with the default scoring table.
func Rank(records []domain.ScoreRecord) ([]domain.PlayerStanding, error) {
	return defaultEngine.Rank(records)
}

// Results ranks puzzle groups with the default scoring table.
func Results(records []domain.ScoreRecord) ([]domain.PuzzleResult, error) {
	return defaultEngine.Results(records)
}

type groupKey struct {
	game   domain.GameType
	puzzle int
}

// Rank builds one standing per player appearing in records, sorted by total
// points descending, then display name, then player ID. Players without
// records are absent. records is never modified.
func (e *Engine) Rank(records []domain.ScoreRecord) ([]domain.PlayerStanding, error) {
	results, err := e.Results(records)
	if err != nil {
		return nil, err
	}

	byPlayer := make(map[string]*domain.PlayerStanding)
	for _, result := range results {
		for _, p := range result.Placings {
			st, ok := byPlayer[p.PlayerID]
			if !ok {
				st = e.newStanding(p.PlayerID)
				byPlayer[p.PlayerID] = st
			}
			if st.DisplayName == UnknownPlayerName && p.DisplayName != UnknownPlayerName {
				st.DisplayName = p.DisplayName
			}
			st.TotalPoints += p.Points
			st.PointsByGame[result.GameType] += p.Points
		}
	}

	standings := make([]domain.PlayerStanding, 0, len(byPlayer))
	for _, st := range byPlayer {
		standings = append(standings, *st)
	}
	slices.SortFunc(standings, compareStandings)
	return standings, nil
}

func (e *Engine) newStanding(playerID string) *domain.PlayerStanding {
	byGame := make(map[domain.GameType]int, len(e.scoring.Games))
	for _, g := range e.scoring.Games {
		byGame[g] = 0
	}
	return &domain.PlayerStanding{
		PlayerID:     playerID,
		DisplayName:  UnknownPlayerName,
		PointsByGame: byGame,
	}
}

func compareStandings(a, b domain.PlayerStanding) int {
	if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DisplayName, b.DisplayName); c != 0 {
		return c
	}
	return cmp.Compare(a.PlayerID, b.PlayerID)
}

// Results ranks every puzzle group. Groups are ordered by game priority then
// puzzle ID; placings by rank then player ID.
func (e *Engine) Results(records []domain.ScoreRecord) ([]domain.PuzzleResult, error) {
	if err := e.validate(records); err != nil {
		return nil, err
	}

	groups := make(map[groupKey][]domain.ScoreRecord)
	for _, r := range records {
		k := groupKey{game: r.GameType, puzzle: r.PuzzleID}
		groups[k] = append(groups[k], r)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b groupKey) int {
		if c := cmp.Compare(e.gameRank[a.game], e.gameRank[b.game]); c != 0 {
			return c
		}
		return cmp.Compare(a.puzzle, b.puzzle)
	})

	results := make([]domain.PuzzleResult, 0, len(keys))
	for _, k := range keys {
		results = append(results, domain.PuzzleResult{
			GameType: k.game,
			PuzzleID: k.puzzle,
			Placings: e.place(groups[k]),
		})
	}
	return results, nil
}

// place dense-ranks one puzzle group. entries is owned by the caller's
// grouping map, so sorting it in place does not touch the input slice.
func (e *Engine) place(entries []domain.ScoreRecord) []domain.Placing {
	slices.SortFunc(entries, func(a, b domain.ScoreRecord) int {
		if c := cmp.Compare(a.TimeSeconds, b.TimeSeconds); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})

	placings := make([]domain.Placing, len(entries))
	rank := 1
	for i, r := range entries {
		if i > 0 && r.TimeSeconds > entries[i-1].TimeSeconds {
			rank++
		}
		name := r.DisplayName
		if name == "" {
			name = UnknownPlayerName
		}
		placings[i] = domain.Placing{
			PlayerID:      r.PlayerID,
			DisplayName:   name,
			TimeSeconds:   r.TimeSeconds,
			FormattedTime: domain.FormatDuration(r.TimeSeconds),
			Rank:          rank,
			Points:        e.scoring.PointsFor(rank),
		}
	}
	return placings
}

// validate rejects input that breaks the storage contract instead of
// guessing: missing player, negative time, unconfigured game, or a second
// record for the same player and puzzle.
func (e *Engine) validate(records []domain.ScoreRecord) error {
	type submission struct {
		player string
		key    groupKey
	}
	seen := make(map[submission]bool, len(records))
	for i, r := range records {
		switch {
		case r.PlayerID == "":
			return fmt.Errorf("%w: record %d has no player", domain.ErrMalformedRecord, i)
		case r.TimeSeconds < 0:
			return fmt.Errorf("%w: record %d has negative time %d", domain.ErrMalformedRecord, i, r.TimeSeconds)
		case !e.scoring.Has(r.GameType):
			return fmt.Errorf("%w: record %d has unknown game %q", domain.ErrMalformedRecord, i, r.GameType)
		}
		s := submission{player: r.PlayerID, key: groupKey{game: r.GameType, puzzle: r.PuzzleID}}
		if seen[s] {
			return fmt.Errorf("%w: duplicate record for player %s on %s #%d",
				domain.ErrMalformedRecord, r.PlayerID, r.GameType, r.PuzzleID)
		}
		seen[s] = true
	}
	return nil
}
