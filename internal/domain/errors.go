package domain

import "errors"

// Domain errors
var (
	ErrNoMatch             = errors.New("could not find a valid score in this text")
	ErrDuplicateSubmission = errors.New("you have already submitted a score for this puzzle")
	ErrMalformedRecord     = errors.New("malformed score record")
	ErrInvalidSubmission   = errors.New("invalid score submission")
	ErrUnknownGame         = errors.New("unknown game type")
	ErrInvalidDuration     = errors.New("time must be in M:SS format")
	ErrInvalidDate         = errors.New("invalid puzzle date")
	ErrInvalidScoring      = errors.New("invalid scoring configuration")
	ErrPlayerNotFound      = errors.New("player not found in leaderboard")
	ErrPuzzleNotFound      = errors.New("puzzle not found")
	ErrCacheMiss           = errors.New("standings not cached")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUnauthenticated     = errors.New("missing player identity")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrPuzzleNotFound)
}

// IsValidationError reports whether err was caused by bad user input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSubmission) ||
		errors.Is(err, ErrUnknownGame) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidRequest)
}
