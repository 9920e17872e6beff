package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "1:30", want: 90},
		{in: "0:05", want: 5},
		{in: " 12:00 ", want: 720},
		{in: "130:59", want: 130*60 + 59},
		{in: "1:60", wantErr: true},
		{in: "1:5", wantErr: true},
		{in: "90", wantErr: true},
		{in: ":30", wantErr: true},
		{in: "-1:30", wantErr: true},
		{in: "a:bc", wantErr: true},
		{in: "", wantErr: true},
		{in: "35791393:59", want: 35791393*60 + 59},
		{in: "35791394:00", wantErr: true},
		{in: "999999999999999999:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreRecordValidate(t *testing.T) {
	valid := ScoreRecord{PlayerID: "u1", GameType: GameQueens, PuzzleID: 1, TimeSeconds: 0}
	require.NoError(t, valid.Validate())

	tests := map[string]ScoreRecord{
		"zero puzzle":      {PuzzleID: 0, TimeSeconds: 90},
		"negative puzzle":  {PuzzleID: -4, TimeSeconds: 90},
		"puzzle too large": {PuzzleID: MaxPuzzleID + 1, TimeSeconds: 90},
		"negative time":    {PuzzleID: 5, TimeSeconds: -1},
		"time too large":   {PuzzleID: 5, TimeSeconds: MaxTimeSeconds + 1},
	}
	for name, rec := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, rec.Validate(), ErrInvalidSubmission)
		})
	}

	edge := ScoreRecord{PuzzleID: MaxPuzzleID, TimeSeconds: MaxTimeSeconds}
	assert.NoError(t, edge.Validate())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1:30", FormatDuration(90))
	assert.Equal(t, "0:05", FormatDuration(5))
	assert.Equal(t, "0:00", FormatDuration(-3))
	assert.Equal(t, "61:01", FormatDuration(3661))
}

func TestPeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, p)

	_, err = ParsePeriod("year")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	now := time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC)
	assert.True(t, PeriodAll.Filter(now).Since.IsZero())
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), PeriodMonth.Filter(now).Since)
}
