package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playduel/quizduel/internal/game"
)

func handleSubmitAnswer(logger *slog.Logger, games *game.Manager) http.HandlerFunc {
	type request struct {
		PlayerID       int64  `json:"playerId"`
		QuestionID     int64  `json:"questionId"`
		QuestionNumber int    `json:"questionNumber"`
		Answer         string `json:"answer"`
		ElapsedMs      int64  `json:"elapsedMs"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")

		var req request
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.PlayerID <= 0 {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		if req.QuestionID <= 0 {
			writeError(w, http.StatusBadRequest, "questionId is required")
			return
		}
		if req.QuestionNumber < 1 {
			writeError(w, http.StatusBadRequest, "questionNumber must be at least 1")
			return
		}

		result, err := games.SubmitAnswer(r.Context(), game.SubmitRequest{
			MatchID:        matchID,
			PlayerID:       req.PlayerID,
			QuestionID:     req.QuestionID,
			QuestionNumber: req.QuestionNumber,
			Answer:         req.Answer,
			ElapsedMs:      req.ElapsedMs,
		})
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
