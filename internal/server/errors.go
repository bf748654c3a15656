package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/playduel/quizduel/internal/quizduel"
)

// writeEngineError maps the domain sentinel errors to HTTP statuses. Anything
// unrecognized is a 500 and gets logged; sentinel failures are the caller's
// fault and stay quiet.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, quizduel.ErrAlreadyQueued),
		errors.Is(err, quizduel.ErrAlreadyCompleted),
		errors.Is(err, quizduel.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, quizduel.ErrNotQueued),
		errors.Is(err, quizduel.ErrSessionNotFound),
		errors.Is(err, quizduel.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quizduel.ErrNotParticipant):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, quizduel.ErrInvalidTiming),
		errors.Is(err, quizduel.ErrQuestionMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
