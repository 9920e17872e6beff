package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar format used for puzzle dates
const DateLayout = "2006-01-02"

// Storage bounds of a score record, both columns are 32-bit
const (
	MaxPuzzleID    = math.MaxInt32
	MaxTimeSeconds = math.MaxInt32
)

// ScoreRecord is one stored result, optionally joined with the player's display name
type ScoreRecord struct {
	ID          int64     `json:"id,omitempty"`
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name,omitempty"`
	GameType    GameType  `json:"game_type"`
	PuzzleID    int       `json:"puzzle_id"`
	PuzzleDate  time.Time `json:"puzzle_date"`
	TimeSeconds int       `json:"time_seconds"`
	CreatedAt   time.Time `json:"created_at"`
}

// FormattedTime renders the solve time as m:ss
func (r ScoreRecord) FormattedTime() string {
	return FormatDuration(r.TimeSeconds)
}

// Validate checks the puzzle number and solve time fit the stored columns
func (r ScoreRecord) Validate() error {
	if r.PuzzleID < 1 || r.PuzzleID > MaxPuzzleID {
		return fmt.Errorf("%w: puzzle number must be between 1 and %d", ErrInvalidSubmission, MaxPuzzleID)
	}
	if r.TimeSeconds < 0 || r.TimeSeconds > MaxTimeSeconds {
		return fmt.Errorf("%w: solve time out of range", ErrInvalidSubmission)
	}
	return nil
}

// ParsedScore is what the extractor recovers from a share message
type ParsedScore struct {
	GameType      GameType `json:"game_type"`
	PuzzleID      int      `json:"puzzle_id"`
	TimeSeconds   int      `json:"time_seconds"`
	FormattedTime string   `json:"formatted_time"`
}

// ManualSubmission is the form-based entry path
type ManualSubmission struct {
	GameType string `json:"game_type"`
	PuzzleID int    `json:"puzzle_id"`
	Time     string `json:"time"`
	Date     string `json:"date,omitempty"`
}

// PasteSubmission carries free text pasted by a player
type PasteSubmission struct {
	Text string `json:"text"`
	Date string `json:"date,omitempty"`
}

// ShareMessage is a chat message forwarded for ingestion
type ShareMessage struct {
	ID         string    `json:"id,omitempty"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name,omitempty"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// Player represents a player profile
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreFilter restricts which records are read for a leaderboard
type ScoreFilter struct {
	Since time.Time
}

// ParseDuration converts "m:ss" into seconds. Seconds must be two digits
// between 00 and 59 and the total must fit MaxTimeSeconds.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	mins, secs, ok := strings.Cut(s, ":")
	if !ok || mins == "" || len(secs) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	for _, part := range []string{mins, secs} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
			}
		}
	}
	m, err := strconv.Atoi(mins)
	if err != nil || m > (MaxTimeSeconds-59)/60 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	sec, _ := strconv.Atoi(secs)
	if sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return m*60 + sec, nil
}

// FormatDuration renders seconds as m:ss
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
