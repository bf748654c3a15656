package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playduel/quizduel/internal/session"
)

// handlePresence refreshes the caller's TTL-bound online marker. Clients call
// it on a heartbeat; a player whose marker lapsed simply reads as offline.
func handlePresence(logger *slog.Logger, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
		if err != nil || playerID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid player id")
			return
		}

		if err := sessions.TouchPresence(r.Context(), playerID); err != nil {
			writeEngineError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
