// Package reconcile folds a finished match's ephemeral state into durable
// storage exactly once, then tears the ephemeral keys down.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/session"
)

// MatchStore is the durable side of reconciliation. CompleteMatch must be a
// check-and-set: it only succeeds while the match is still in progress, which
// is what makes a second Complete call fail instead of double-writing.
type MatchStore interface {
	CompleteMatch(ctx context.Context, matchID string, p1Score, p2Score int, winnerID int64, completedAt int64) error
	SaveAnswers(ctx context.Context, matchID string, playerID int64, answers []quizduel.PlayerAnswer) error
}

// Outcome is the final result of a match. WinnerID is zero on a draw.
type Outcome struct {
	MatchID      string `json:"matchId"`
	WinnerID     int64  `json:"winnerId"`
	Draw         bool   `json:"draw"`
	Player1      int64  `json:"player1"`
	Player2      int64  `json:"player2"`
	Player1Score int    `json:"player1Score"`
	Player2Score int    `json:"player2Score"`
}

type Reconciler struct {
	sessions *session.Store
	matches  MatchStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewReconciler(sessions *session.Store, matches MatchStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{sessions: sessions, matches: matches, logger: logger, now: time.Now}
}

// Complete reads the final session, writes scores/winner durably, persists
// the answer records, and deletes the ephemeral keys. Safe against double
// invocation: once the session is gone the call fails ErrSessionNotFound,
// and the durable check-and-set rejects a repeat with ErrAlreadyCompleted.
// A forfeited side simply has an empty answered-set; whatever scores exist
// decide the winner deterministically.
func (r *Reconciler) Complete(ctx context.Context, matchID string) (Outcome, error) {
	g, err := r.sessions.Game(ctx, matchID)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		MatchID:      matchID,
		Player1:      g.Player1,
		Player2:      g.Player2,
		Player1Score: g.Player1Score,
		Player2Score: g.Player2Score,
	}
	switch {
	case g.Player1Score > g.Player2Score:
		outcome.WinnerID = g.Player1
	case g.Player2Score > g.Player1Score:
		outcome.WinnerID = g.Player2
	default:
		// A tie is a draw. No tie-break by answer time at this layer.
		outcome.Draw = true
	}

	// The durable write is the commit point. Everything after it is
	// cleanup that must not fail the match.
	if err := r.matches.CompleteMatch(ctx, matchID, g.Player1Score, g.Player2Score, outcome.WinnerID, r.now().UnixMilli()); err != nil {
		return Outcome{}, err
	}

	persisted := r.persistAnswers(ctx, matchID, g.Player1)
	if g.Player2 != 0 {
		persisted = r.persistAnswers(ctx, matchID, g.Player2) && persisted
	}

	if !persisted {
		// Answer records must reach durable storage before teardown. Leave
		// the ephemeral keys alone so the data survives for the TTL window;
		// expiry is the backstop, not this delete.
		r.logger.Warn("skipping ephemeral cleanup, answers not fully persisted", "match_id", matchID)
	} else if err := r.sessions.DeleteGame(ctx, matchID, g.Player1, g.Player2); err != nil {
		// The keys self-expire via TTL; the match is still completed.
		r.logger.Warn("ephemeral cleanup failed", "match_id", matchID, "error", err)
	}

	r.logger.Info("match reconciled", "match_id", matchID,
		"winner_id", outcome.WinnerID, "draw", outcome.Draw,
		"player1_score", outcome.Player1Score, "player2_score", outcome.Player2Score)
	return outcome, nil
}

// persistAnswers reports whether the player's answers reached durable
// storage; an empty answered-set counts as persisted.
func (r *Reconciler) persistAnswers(ctx context.Context, matchID string, playerID int64) bool {
	byNumber, err := r.sessions.Answers(ctx, matchID, playerID)
	if err != nil {
		r.logger.Warn("reading answers for durable persist failed", "match_id", matchID, "player_id", playerID, "error", err)
		return false
	}
	if len(byNumber) == 0 {
		return true
	}
	answers := make([]quizduel.PlayerAnswer, 0, len(byNumber))
	for _, a := range byNumber {
		answers = append(answers, a)
	}
	if err := r.matches.SaveAnswers(ctx, matchID, playerID, answers); err != nil {
		r.logger.Warn("persisting answers failed", "match_id", matchID, "player_id", playerID, "error", err)
		return false
	}
	return true
}
