package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/puzzle-leaderboard/internal/domain"
)

// LeaderboardResponse is the body of a leaderboard read
type LeaderboardResponse struct {
	Period    domain.Period           `json:"period"`
	Standings []domain.PlayerStanding `json:"standings"`
}

// GetLeaderboard returns the standings of a period
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	standings, err := h.service.Standings(r.Context(), period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if standings == nil {
		standings = []domain.PlayerStanding{}
	}
	h.writeSuccess(w, http.StatusOK, LeaderboardResponse{Period: period, Standings: standings})
}

// GetPlayerStanding returns one player's standing and position
func (h *Handler) GetPlayerStanding(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pos, err := h.service.PlayerStanding(r.Context(), period, chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, pos)
}
