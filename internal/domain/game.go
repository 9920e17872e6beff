package domain

import (
	"fmt"
	"strings"
)

// GameType identifies one of the supported daily puzzles
type GameType string

const (
	GameQueens GameType = "Queens"
	GameTango  GameType = "Tango"
	GameZip    GameType = "Zip"
	GameSudoku GameType = "Sudoku"
)

// AllGames lists every known game in extraction priority order.
var AllGames = []GameType{GameQueens, GameTango, GameZip, GameSudoku}

// IsKnown reports whether g belongs to the closed set of games.
func (g GameType) IsKnown() bool {
	for _, known := range AllGames {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGameType resolves a case-insensitive game name.
func ParseGameType(s string) (GameType, error) {
	s = strings.TrimSpace(s)
	for _, g := range AllGames {
		if strings.EqualFold(s, string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGame, s)
}

// Scoring holds the games in play and the rank to points table shared by
// the extractor and the ranking engine.
type Scoring struct {
	Games         []GameType `yaml:"games" json:"games"`
	PointsByRank  []int      `yaml:"points_by_rank" json:"points_by_rank"`
	DefaultPoints int        `yaml:"default_points" json:"default_points"`
}

// DefaultScoring returns the standard table: 3, 2 and 1 points for the top
// three ranks and nothing below.
func DefaultScoring() Scoring {
	games := make([]GameType, len(AllGames))
	copy(games, AllGames)
	return Scoring{
		Games:         games,
		PointsByRank:  []int{3, 2, 1},
		DefaultPoints: 0,
	}
}

// Validate checks the scoring table once at startup.
func (s Scoring) Validate() error {
	if len(s.Games) == 0 {
		return fmt.Errorf("%w: no games configured", ErrInvalidScoring)
	}
	seen := make(map[GameType]bool, len(s.Games))
	for _, g := range s.Games {
		if !g.IsKnown() {
			return fmt.Errorf("%w: unknown game %q", ErrInvalidScoring, g)
		}
		if seen[g] {
			return fmt.Errorf("%w: duplicate game %q", ErrInvalidScoring, g)
		}
		seen[g] = true
	}
	for i, p := range s.PointsByRank {
		if p < 0 {
			return fmt.Errorf("%w: negative points for rank %d", ErrInvalidScoring, i+1)
		}
		if i > 0 && p > s.PointsByRank[i-1] {
			return fmt.Errorf("%w: rank %d earns more than rank %d", ErrInvalidScoring, i+1, i)
		}
	}
	if s.DefaultPoints < 0 {
		return fmt.Errorf("%w: negative default points", ErrInvalidScoring)
	}
	if n := len(s.PointsByRank); n > 0 && s.DefaultPoints > s.PointsByRank[n-1] {
		return fmt.Errorf("%w: default points exceed last ranked tier", ErrInvalidScoring)
	}
	return nil
}

// PointsFor maps a dense rank to points. Ranks beyond the table, and
// non-positive ranks, earn DefaultPoints.
func (s Scoring) PointsFor(rank int) int {
	if rank >= 1 && rank <= len(s.PointsByRank) {
		return s.PointsByRank[rank-1]
	}
	return s.DefaultPoints
}

// Has reports whether g is one of the configured games.
func (s Scoring) Has(g GameType) bool {
	for _, configured := range s.Games {
		if configured == g {
			return true
		}
	}
	return false
}
