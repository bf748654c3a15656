package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playduel/quizduel/internal/matchmaking"
	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/session"
)

// PlayerStore keeps durable profiles current. Join requests carry the
// caller's latest name/avatar/skill, so joining doubles as a profile sync.
type PlayerStore interface {
	UpsertPlayer(ctx context.Context, p quizduel.Player) error
}

type queueStatusResponse struct {
	matchmaking.Status
	Online bool `json:"online"`
}

func handleQueueJoin(logger *slog.Logger, queue *matchmaking.Queue, players PlayerStore) http.HandlerFunc {
	type request struct {
		PlayerID int64  `json:"playerId"`
		Name     string `json:"name"`
		Avatar   string `json:"avatar"`
		Skill    int    `json:"skill"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		topic := chi.URLParam(r, "topic")

		var req request
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.PlayerID <= 0 {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		if req.Skill < 0 {
			writeError(w, http.StatusBadRequest, "skill must not be negative")
			return
		}
		// Default applied here, once, so the durable profile and the queue
		// entry record the same rating.
		if req.Skill == 0 {
			req.Skill = quizduel.DefaultSkill
		}

		if err := players.UpsertPlayer(r.Context(), quizduel.Player{
			ID:     req.PlayerID,
			Name:   req.Name,
			Avatar: req.Avatar,
			Skill:  req.Skill,
		}); err != nil {
			writeEngineError(w, logger, err)
			return
		}

		err := queue.Join(r.Context(), topic, quizduel.QueueEntry{
			PlayerID: req.PlayerID,
			Name:     req.Name,
			Avatar:   req.Avatar,
			Skill:    req.Skill,
		})
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		status, err := queue.Status(r.Context(), topic, req.PlayerID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, status)
	}
}

func handleQueueLeave(logger *slog.Logger, queue *matchmaking.Queue) http.HandlerFunc {
	type request struct {
		PlayerID int64 `json:"playerId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		topic := chi.URLParam(r, "topic")

		var req request
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.PlayerID <= 0 {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}

		if err := queue.Leave(r.Context(), topic, req.PlayerID); err != nil {
			writeEngineError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleQueueStatus(logger *slog.Logger, queue *matchmaking.Queue, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := chi.URLParam(r, "topic")
		playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
		if err != nil || playerID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid player id")
			return
		}

		status, err := queue.Status(r.Context(), topic, playerID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		online, err := sessions.Online(r.Context(), playerID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, queueStatusResponse{Status: status, Online: online})
	}
}
