package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playduel/quizduel/internal/quizduel"
)

type matchResponse struct {
	MatchID      string                             `json:"matchId"`
	Topic        string                             `json:"topic"`
	Player1      int64                              `json:"player1"`
	Player2      int64                              `json:"player2,omitempty"`
	Status       quizduel.MatchStatus               `json:"status"`
	Player1Score int                                `json:"player1Score"`
	Player2Score int                                `json:"player2Score"`
	WinnerID     int64                              `json:"winnerId,omitempty"`
	QuestionIDs  []int64                            `json:"questionIds"`
	CreatedAt    int64                              `json:"createdAt"`
	CompletedAt  *int64                             `json:"completedAt,omitempty"`
	Answers      map[string][]quizduel.PlayerAnswer `json:"answers,omitempty"`
}

// handleGetMatch serves the authoritative durable record. For a completed
// match this includes both players' persisted answers; while a match is
// live the session endpoint is the source of truth instead.
func handleGetMatch(logger *slog.Logger, matches MatchStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")

		m, err := matches.Match(r.Context(), matchID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		resp := matchResponse{
			MatchID:      m.ID,
			Topic:        m.Topic,
			Player1:      m.Player1,
			Player2:      m.Player2,
			Status:       m.Status,
			Player1Score: m.Player1Score,
			Player2Score: m.Player2Score,
			WinnerID:     m.WinnerID,
			QuestionIDs:  m.QuestionIDs,
			CreatedAt:    m.CreatedAt,
			CompletedAt:  m.CompletedAt,
		}

		if m.Status == quizduel.MatchCompleted {
			resp.Answers = make(map[string][]quizduel.PlayerAnswer, 2)
			for _, playerID := range []int64{m.Player1, m.Player2} {
				if playerID == 0 {
					continue
				}
				answers, err := matches.MatchAnswers(r.Context(), matchID, playerID)
				if err != nil {
					writeEngineError(w, logger, err)
					return
				}
				if len(answers) > 0 {
					resp.Answers[strconv.FormatInt(playerID, 10)] = answers
				}
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
