package main

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/puzzle-leaderboard/internal/domain"
)

// shareMarkers are the puzzle number prefixes seen in localized share texts
var shareMarkers = []string{"#", "n.º ", "nº ", "N.° "}

// player is a synthetic chat participant
type player struct {
	ID   string
	Name string
}

// generator produces share messages from a fixed pool of players. Each
// player gets at most one score per puzzle; chatter has no score at all.
type generator struct {
	faker     *gofakeit.Faker
	games     []domain.GameType
	players   []player
	puzzle    int
	noise     float64
	submitted map[string]bool
}

func newGenerator(seed uint64, players int, games []domain.GameType, firstPuzzle int, noise float64) *generator {
	faker := gofakeit.New(seed)
	pool := make([]player, players)
	for i := range pool {
		pool[i] = player{ID: faker.UUID(), Name: faker.FirstName()}
	}
	return &generator{
		faker:     faker,
		games:     games,
		players:   pool,
		puzzle:    firstPuzzle,
		noise:     noise,
		submitted: make(map[string]bool),
	}
}

// Next returns a message and whether it carries a score
func (g *generator) Next(now time.Time) (domain.ShareMessage, bool) {
	p := g.players[g.faker.Number(0, len(g.players)-1)]
	msg := domain.ShareMessage{
		ID:         g.faker.UUID(),
		PlayerID:   p.ID,
		PlayerName: p.Name,
		SentAt:     now.UTC(),
	}

	game := g.games[g.faker.Number(0, len(g.games)-1)]
	key := fmt.Sprintf("%s/%s/%d", p.ID, game, g.puzzle)
	if g.faker.Float64Range(0, 1) < g.noise || g.submitted[key] {
		msg.Text = g.faker.Sentence(g.faker.Number(3, 9))
		return msg, false
	}
	g.submitted[key] = true

	seconds := g.faker.Number(15, 600)
	marker := shareMarkers[g.faker.Number(0, len(shareMarkers)-1)]
	msg.Text = fmt.Sprintf("%s %s%d | %s %s\nlnkd.in/%s",
		game, marker, g.puzzle, domain.FormatDuration(seconds),
		g.faker.RandomString([]string{"👑", "🏁", "🌗", "🔢", ""}),
		g.faker.LetterN(6),
	)
	return msg, true
}

// NextPuzzle moves every game to the next daily puzzle
func (g *generator) NextPuzzle() {
	g.puzzle++
	clear(g.submitted)
}
