// Package extract recognises puzzle results in free-form share messages such as
// "Queens #123 | 1:30" or "Tango n.º 5 ... 2:00".
package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/puzzle-leaderboard/internal/domain"
)

// A rule matches the game name, a puzzle marker ("#" or the ordinal "n.º"),
// the puzzle number, then an m:ss time later on the same line with no digits in between.
const rulePattern = `(?i)%s\s*(?:#|n\.?\s*[º°])\s*(\d+)[^\d\n]*?((\d+):([0-5]\d))(?:\D|$)`

type rule struct {
	game domain.GameType
	re   *regexp.Regexp
}

// Extractor checks one rule per game in a fixed priority order; the first
// rule that matches wins.
type Extractor struct {
	rules []rule
}

// New builds an extractor whose priority follows the order of games.
func New(games []domain.GameType) *Extractor {
	rules := make([]rule, 0, len(games))
	for _, g := range games {
		rules = append(rules, rule{
			game: g,
			re:   regexp.MustCompile(fmt.Sprintf(rulePattern, regexp.QuoteMeta(string(g)))),
		})
	}
	return &Extractor{rules: rules}
}

var defaultExtractor = New(domain.AllGames)

// Extract runs the default extractor covering every known game.
func Extract(text string) (domain.ParsedScore, bool) {
	return defaultExtractor.Extract(text)
}

// Games returns the games in priority order.
func (e *Extractor) Games() []domain.GameType {
	games := make([]domain.GameType, len(e.rules))
	for i, r := range e.rules {
		games[i] = r.game
	}
	return games
}

// Extract returns the first score found, or false when the text holds no
// recognisable announcement. It never panics and has no side effects.
func (e *Extractor) Extract(text string) (domain.ParsedScore, bool) {
	if text == "" {
		return domain.ParsedScore{}, false
	}
	for _, r := range e.rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		score, ok := buildScore(r.game, m[1], m[2], m[3], m[4])
		if !ok {
			continue
		}
		return score, true
	}
	return domain.ParsedScore{}, false
}

func buildScore(game domain.GameType, puzzle, formatted, mins, secs string) (domain.ParsedScore, bool) {
	puzzleID, err := strconv.Atoi(puzzle)
	if err != nil {
		return domain.ParsedScore{}, false
	}
	m, err := strconv.Atoi(mins)
	if err != nil || m > (math.MaxInt-59)/60 {
		return domain.ParsedScore{}, false
	}
	s, err := strconv.Atoi(secs)
	if err != nil {
		return domain.ParsedScore{}, false
	}
	return domain.ParsedScore{
		GameType:      game,
		PuzzleID:      puzzleID,
		TimeSeconds:   m*60 + s,
		FormattedTime: formatted,
	}, true
}
