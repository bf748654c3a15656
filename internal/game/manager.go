// Package game owns the live state of one match: creation, reads, and the
// answer submission path shared by realtime and asynchronous play.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/scoring"
	"github.com/playduel/quizduel/internal/session"
)

// AnswerOracle resolves a question's authoritative correct answer.
type AnswerOracle interface {
	QuestionAnswer(ctx context.Context, questionID int64) (string, error)
}

// SubmitRequest carries one answer submission.
type SubmitRequest struct {
	MatchID        string
	PlayerID       int64
	QuestionID     int64
	QuestionNumber int // 1-based
	Answer         string
	ElapsedMs      int64
}

// SubmitResult is the outcome reported back to the submitting player. The
// correct answer is always revealed after a submission.
type SubmitResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	Points        int    `json:"points"`
	Player1Score  int    `json:"player1Score"`
	Player2Score  int    `json:"player2Score"`
	CorrectAnswer string `json:"correctAnswer"`
	// Duplicate marks an idempotent replay: the values above are the
	// originally recorded result, not a re-score.
	Duplicate bool `json:"duplicate,omitempty"`
}

type Manager struct {
	sessions *session.Store
	oracle   AnswerOracle
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(sessions *session.Store, oracle AnswerOracle, logger *slog.Logger) *Manager {
	return &Manager{sessions: sessions, oracle: oracle, logger: logger, now: time.Now}
}

// CreateSession writes a fresh TTL-bound session with zero scores. player2
// may be zero for an asynchronous match whose second side has not started.
// Re-creating for the same match overwrites; callers guard with durable
// match status checks.
func (m *Manager) CreateSession(ctx context.Context, matchID string, player1, player2 int64, questionIDs []int64) error {
	if err := m.sessions.CreateGame(ctx, quizduel.GameSession{
		MatchID:     matchID,
		Player1:     player1,
		Player2:     player2,
		QuestionIDs: questionIDs,
		CreatedAt:   m.now().UnixMilli(),
	}); err != nil {
		return err
	}
	m.logger.Info("game session created", "match_id", matchID,
		"player1", player1, "player2", player2, "questions", len(questionIDs))
	return nil
}

// Session returns the live state, or quizduel.ErrSessionNotFound.
func (m *Manager) Session(ctx context.Context, matchID string) (quizduel.GameSession, error) {
	return m.sessions.Game(ctx, matchID)
}

// AttachOpponent claims the open second slot of an asynchronous session.
// Idempotent for the same player; quizduel.ErrNotParticipant if the slot is
// already held by someone else.
func (m *Manager) AttachOpponent(ctx context.Context, matchID string, playerID int64) error {
	g, err := m.sessions.Game(ctx, matchID)
	if err != nil {
		return err
	}
	if playerID == g.Player1 || playerID == g.Player2 {
		return nil
	}

	ok, err := m.sessions.AttachPlayer2(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race for the slot; re-read to see who holds it.
		g, err := m.sessions.Game(ctx, matchID)
		if err != nil {
			return err
		}
		if g.Player2 != playerID {
			return quizduel.ErrNotParticipant
		}
		return nil
	}
	m.logger.Info("opponent attached", "match_id", matchID, "player_id", playerID)
	return nil
}

// SubmitAnswer validates, scores, and records one answer. First write wins
// per (player, question number): a duplicate returns the original recorded
// result and never re-scores.
func (m *Manager) SubmitAnswer(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if !scoring.ValidElapsed(req.ElapsedMs) {
		return SubmitResult{}, quizduel.ErrInvalidTiming
	}

	g, err := m.sessions.Game(ctx, req.MatchID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !g.HasPlayer(req.PlayerID) {
		return SubmitResult{}, quizduel.ErrNotParticipant
	}
	if req.QuestionNumber < 1 || req.QuestionNumber > len(g.QuestionIDs) ||
		g.QuestionIDs[req.QuestionNumber-1] != req.QuestionID {
		return SubmitResult{}, quizduel.ErrQuestionMismatch
	}

	correctAnswer, err := m.oracle.QuestionAnswer(ctx, req.QuestionID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("resolving correct answer: %w", err)
	}

	isCorrect := strings.EqualFold(
		strings.TrimSpace(req.Answer),
		strings.TrimSpace(correctAnswer),
	)
	points := scoring.PointsFor(isCorrect, req.ElapsedMs)

	answer := quizduel.PlayerAnswer{
		QuestionID:     req.QuestionID,
		QuestionNumber: req.QuestionNumber,
		Answer:         req.Answer,
		IsCorrect:      isCorrect,
		ElapsedMs:      req.ElapsedMs,
		Points:         points,
		AnsweredAt:     m.now().UnixMilli(),
	}

	recorded, err := m.sessions.PutAnswer(ctx, req.MatchID, req.PlayerID, answer)
	if err != nil {
		return SubmitResult{}, err
	}
	if !recorded {
		// Idempotent replay: report what was recorded the first time.
		prev, found, err := m.sessions.Answer(ctx, req.MatchID, req.PlayerID, req.QuestionNumber)
		if err != nil {
			return SubmitResult{}, err
		}
		if !found {
			return SubmitResult{}, fmt.Errorf("answer vanished for match %s question %d", req.MatchID, req.QuestionNumber)
		}
		p1, p2, err := m.sessions.Scores(ctx, req.MatchID)
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{
			IsCorrect:     prev.IsCorrect,
			Points:        prev.Points,
			Player1Score:  p1,
			Player2Score:  p2,
			CorrectAnswer: correctAnswer,
			Duplicate:     true,
		}, nil
	}

	if points > 0 {
		slot := 1
		if req.PlayerID == g.Player2 {
			slot = 2
		}
		if _, err := m.sessions.AddScore(ctx, req.MatchID, slot, points); err != nil {
			return SubmitResult{}, err
		}
	}

	p1, p2, err := m.sessions.Scores(ctx, req.MatchID)
	if err != nil {
		return SubmitResult{}, err
	}

	m.logger.Info("answer submitted", "match_id", req.MatchID, "player_id", req.PlayerID,
		"question", req.QuestionNumber, "correct", isCorrect, "points", points, "elapsed_ms", req.ElapsedMs)

	return SubmitResult{
		IsCorrect:     isCorrect,
		Points:        points,
		Player1Score:  p1,
		Player2Score:  p2,
		CorrectAnswer: correctAnswer,
	}, nil
}
