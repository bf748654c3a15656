package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/playduel/quizduel/internal/game"
	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/session"
)

// MatchStore is the durable side the handlers touch directly: starting a
// match outside the matchmaking sweep (challenge games where the opponent
// joins later) and reading finished results.
type MatchStore interface {
	TopicQuestionIDs(ctx context.Context, topic string, n int) ([]int64, error)
	CreateMatch(ctx context.Context, m quizduel.Match) error
	SetMatchPlayer2(ctx context.Context, matchID string, playerID int64) error
	Match(ctx context.Context, id string) (quizduel.Match, error)
	MatchAnswers(ctx context.Context, matchID string, playerID int64) ([]quizduel.PlayerAnswer, error)
}

type sessionResponse struct {
	MatchID      string  `json:"matchId"`
	Player1      int64   `json:"player1"`
	Player2      int64   `json:"player2,omitempty"`
	QuestionIDs  []int64 `json:"questionIds"`
	Player1Score int     `json:"player1Score"`
	Player2Score int     `json:"player2Score"`
	CreatedAt    int64   `json:"createdAt"`

	// Answers holds the requesting player's submissions, keyed by question
	// number. Only populated on reads.
	Answers map[int]quizduel.PlayerAnswer `json:"answers,omitempty"`
}

func toSessionResponse(g quizduel.GameSession) sessionResponse {
	return sessionResponse{
		MatchID:      g.MatchID,
		Player1:      g.Player1,
		Player2:      g.Player2,
		QuestionIDs:  g.QuestionIDs,
		Player1Score: g.Player1Score,
		Player2Score: g.Player2Score,
		CreatedAt:    g.CreatedAt,
	}
}

func handleCreateSession(logger *slog.Logger, games *game.Manager, matches MatchStore, questionsPerMatch int) http.HandlerFunc {
	type request struct {
		PlayerID int64  `json:"playerId"`
		Topic    string `json:"topic"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")
		if _, err := uuid.Parse(matchID); err != nil {
			writeError(w, http.StatusBadRequest, "match id must be a UUID")
			return
		}

		var req request
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.PlayerID <= 0 {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		if req.Topic == "" {
			writeError(w, http.StatusBadRequest, "topic is required")
			return
		}

		if _, err := games.Session(r.Context(), matchID); err == nil {
			writeError(w, http.StatusConflict, "session already exists")
			return
		} else if !errors.Is(err, quizduel.ErrSessionNotFound) {
			writeEngineError(w, logger, err)
			return
		}

		questionIDs, err := matches.TopicQuestionIDs(r.Context(), req.Topic, questionsPerMatch)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		if err := matches.CreateMatch(r.Context(), quizduel.Match{
			ID:          matchID,
			Topic:       req.Topic,
			Player1:     req.PlayerID,
			Status:      quizduel.MatchInProgress,
			QuestionIDs: questionIDs,
			CreatedAt:   time.Now().UnixMilli(),
		}); err != nil {
			writeEngineError(w, logger, err)
			return
		}

		if err := games.CreateSession(r.Context(), matchID, req.PlayerID, 0, questionIDs); err != nil {
			writeEngineError(w, logger, err)
			return
		}

		g, err := games.Session(r.Context(), matchID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSessionResponse(g))
	}
}

func handleGetSession(logger *slog.Logger, games *game.Manager, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")
		playerID, err := strconv.ParseInt(r.URL.Query().Get("playerId"), 10, 64)
		if err != nil || playerID <= 0 {
			writeError(w, http.StatusBadRequest, "playerId query parameter is required")
			return
		}

		g, err := games.Session(r.Context(), matchID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		if !g.HasPlayer(playerID) {
			writeEngineError(w, logger, quizduel.ErrNotParticipant)
			return
		}

		resp := toSessionResponse(g)
		answers, err := sessions.Answers(r.Context(), matchID, playerID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		resp.Answers = answers
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleAttachOpponent(logger *slog.Logger, games *game.Manager, matches MatchStore) http.HandlerFunc {
	type request struct {
		PlayerID int64 `json:"playerId"`
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

		if err := games.AttachOpponent(r.Context(), matchID, req.PlayerID); err != nil {
			writeEngineError(w, logger, err)
			return
		}
		if err := matches.SetMatchPlayer2(r.Context(), matchID, req.PlayerID); err != nil {
			writeEngineError(w, logger, err)
			return
		}

		g, err := games.Session(r.Context(), matchID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(g))
	}
}
