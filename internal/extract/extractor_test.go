package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puzzle-leaderboard/internal/domain"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   domain.ParsedScore
		wantOK bool
	}{
		{
			name:   "hash marker",
			input:  "Queens #123 1:30",
			want:   domain.ParsedScore{GameType: domain.GameQueens, PuzzleID: 123, TimeSeconds: 90, FormattedTime: "1:30"},
			wantOK: true,
		},
		{
			name:   "localized ordinal marker with prose",
			input:  "I solved Tango n.º 5 in 2:00",
			want:   domain.ParsedScore{GameType: domain.GameTango, PuzzleID: 5, TimeSeconds: 120, FormattedTime: "2:00"},
			wantOK: true,
		},
		{
			name:   "zero minutes",
			input:  "Zip #100 0:45",
			want:   domain.ParsedScore{GameType: domain.GameZip, PuzzleID: 100, TimeSeconds: 45, FormattedTime: "0:45"},
			wantOK: true,
		},
		{
			name:   "case insensitive game name",
			input:  "sudoku #7 | 3:05 ✏️",
			want:   domain.ParsedScore{GameType: domain.GameSudoku, PuzzleID: 7, TimeSeconds: 185, FormattedTime: "3:05"},
			wantOK: true,
		},
		{
			name:   "ordinal without dot or space",
			input:  "Zip nº12 0:09",
			want:   domain.ParsedScore{GameType: domain.GameZip, PuzzleID: 12, TimeSeconds: 9, FormattedTime: "0:09"},
			wantOK: true,
		},
		{
			name:   "unbounded minutes",
			input:  "Queens #1 took me 125:59 today",
			want:   domain.ParsedScore{GameType: domain.GameQueens, PuzzleID: 1, TimeSeconds: 125*60 + 59, FormattedTime: "125:59"},
			wantOK: true,
		},
		{
			name:   "share message with surrounding text",
			input:  "Hey all!\nQueens #412 | 1:32 👑\nlnkd.in/queens",
			want:   domain.ParsedScore{GameType: domain.GameQueens, PuzzleID: 412, TimeSeconds: 92, FormattedTime: "1:32"},
			wantOK: true,
		},
		{name: "empty", input: ""},
		{name: "random text", input: "Random Text"},
		{name: "game without marker", input: "Queens 123 1:30"},
		{name: "seconds out of range", input: "Queens #123 1:75"},
		{name: "single digit seconds", input: "Tango #9 1:5"},
		{name: "three digit seconds", input: "Tango #9 1:234"},
		{name: "time on next line", input: "Zip #100\n0:45"},
		{name: "digits between puzzle and time", input: "Sudoku #4 solved 2 times 1:10"},
		{name: "overflowing puzzle number", input: "Queens #99999999999999999999999 1:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.input)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Priority(t *testing.T) {
	input := "Tango #2 1:00\nQueens #1 0:30\nSudoku #3 4:00"

	got, ok := Extract(input)
	require.True(t, ok)
	assert.Equal(t, domain.GameQueens, got.GameType)
	assert.Equal(t, 1, got.PuzzleID)
	assert.Equal(t, 30, got.TimeSeconds)
}

func TestExtract_FallsThroughToLowerPriority(t *testing.T) {
	// Queens is mentioned but has no valid time, so Zip is reported.
	got, ok := Extract("Queens #5 gave up\nZip #8 0:50")
	require.True(t, ok)
	assert.Equal(t, domain.GameZip, got.GameType)
	assert.Equal(t, 8, got.PuzzleID)
}

func TestExtract_Idempotent(t *testing.T) {
	input := "Tango n.º 77 | 1:01 and Zip #3 0:10"
	first, ok1 := Extract(input)
	second, ok2 := Extract(input)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestExtractor_ConfiguredGames(t *testing.T) {
	e := New([]domain.GameType{domain.GameZip, domain.GameQueens})
	assert.Equal(t, []domain.GameType{domain.GameZip, domain.GameQueens}, e.Games())

	got, ok := e.Extract("Queens #1 0:30 Zip #2 0:40")
	require.True(t, ok)
	assert.Equal(t, domain.GameZip, got.GameType)

	_, ok = e.Extract("Tango #4 1:00")
	assert.False(t, ok, "games outside the configured set are not recognised")
}

func TestExtract_AllGames(t *testing.T) {
	for _, g := range domain.AllGames {
		for _, marker := range []string{"#", "n.º "} {
			t.Run(string(g)+" "+marker, func(t *testing.T) {
				got, ok := Extract(string(g) + " " + marker + "42 ... 3:07")
				require.True(t, ok)
				assert.Equal(t, domain.ParsedScore{GameType: g, PuzzleID: 42, TimeSeconds: 187, FormattedTime: "3:07"}, got)
			})
		}
	}
}
