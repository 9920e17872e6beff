package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/puzzle-leaderboard/internal/domain"
)

// parseRequest is the body of a parse preview
type parseRequest struct {
	Text string `json:"text"`
}

// GetGames returns the scored games and points table
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, h.service.Games())
}

// ParseScore previews the score found in a share text without storing it
func (h *Handler) ParseScore(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	parsed, err := h.service.Parse(req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, parsed)
}

// SubmitManual records a score entered through the form
func (h *Handler) SubmitManual(w http.ResponseWriter, r *http.Request) {
	var sub domain.ManualSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.SubmitManual(r.Context(), PlayerIDFromContext(r.Context()), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, record)
}

// SubmitPaste records the score found in pasted share text
func (h *Handler) SubmitPaste(w http.ResponseWriter, r *http.Request) {
	var sub domain.PasteSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.SubmitText(r.Context(), PlayerIDFromContext(r.Context()), sub.Text, sub.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, record)
}

// GetPuzzleResults returns the ranked placings of one puzzle
func (h *Handler) GetPuzzleResults(w http.ResponseWriter, r *http.Request) {
	puzzleID, err := strconv.Atoi(chi.URLParam(r, "puzzleID"))
	if err != nil {
		h.writeError(w, r, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.PuzzleResults(r.Context(), chi.URLParam(r, "game"), puzzleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, result)
}

// GetPlayerScores returns a player's most recent scores
func (h *Handler) GetPlayerScores(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, r, domain.ErrInvalidRequest)
			return
		}
		limit = l
	}

	records, err := h.service.RecentScores(r.Context(), chi.URLParam(r, "playerID"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.ScoreRecord{}
	}
	h.writeSuccess(w, http.StatusOK, records)
}
