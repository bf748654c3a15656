package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playduel/quizduel/internal/reconcile"
)

func handleComplete(logger *slog.Logger, reconciler *reconcile.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")

		outcome, err := reconciler.Complete(r.Context(), matchID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}
}
