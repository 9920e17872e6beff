package domain

import "time"

// Period selects the window of puzzles a leaderboard covers
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
)

// Periods lists every leaderboard window kept in the cache.
var Periods = []Period{PeriodAll, PeriodMonth}

// ParsePeriod defaults to PeriodAll for an empty value
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", ErrInvalidRequest
	}
}

// Filter returns the storage filter for the period relative to now.
func (p Period) Filter(now time.Time) ScoreFilter {
	if p != PeriodMonth {
		return ScoreFilter{}
	}
	now = now.UTC()
	return ScoreFilter{Since: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// PlayerStanding is one row of the computed leaderboard
type PlayerStanding struct {
	PlayerID     string           `json:"player_id"`
	DisplayName  string           `json:"display_name"`
	TotalPoints  int              `json:"total_points"`
	PointsByGame map[GameType]int `json:"points_by_game"`
}

// PlayerPosition is a player's standing plus 1-based place in the sorted leaderboard
type PlayerPosition struct {
	Position int            `json:"position"`
	Standing PlayerStanding `json:"standing"`
}

// Placing is one entry of a ranked puzzle group
type Placing struct {
	PlayerID      string `json:"player_id"`
	DisplayName   string `json:"display_name"`
	TimeSeconds   int    `json:"time_seconds"`
	FormattedTime string `json:"formatted_time"`
	Rank          int    `json:"rank"`
	Points        int    `json:"points"`
}

// PuzzleResult is the dense-ranked outcome of one (game, puzzle) group
type PuzzleResult struct {
	GameType GameType  `json:"game_type"`
	PuzzleID int       `json:"puzzle_id"`
	Placings []Placing `json:"placings"`
}
