// Package store is the durable SQLite side of the engine: player profiles,
// the question bank (which doubles as the correctness oracle), and the
// authoritative match records the reconciler writes exactly once.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playduel/quizduel/internal/quizduel"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) UpsertPlayer(ctx context.Context, p quizduel.Player) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, name, avatar, skill, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			avatar = excluded.avatar,
			skill = excluded.skill,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Avatar, p.Skill, now, now)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Player(ctx context.Context, id int64) (quizduel.Player, error) {
	var p quizduel.Player
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, avatar, skill FROM players WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Avatar, &p.Skill)
	if errors.Is(err, sql.ErrNoRows) {
		return p, quizduel.ErrNotFound
	}
	return p, err
}

// QuestionAnswer is the correctness oracle: the authoritative answer for a
// question id.
func (s *SQLiteStore) QuestionAnswer(ctx context.Context, questionID int64) (string, error) {
	var answer string
	err := s.db.QueryRowContext(ctx, `
		SELECT correct_answer FROM questions WHERE id = ?
	`, questionID).Scan(&answer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", quizduel.ErrNotFound
	}
	return answer, err
}

// TopicQuestionIDs draws n random question ids for a topic. Fails if the
// topic has fewer than n questions rather than shipping a short match.
func (s *SQLiteStore) TopicQuestionIDs(ctx context.Context, topic string, n int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM questions WHERE topic = ? ORDER BY RANDOM() LIMIT ?
	`, topic, n)
	if err != nil {
		return nil, fmt.Errorf("selecting questions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) < n {
		return nil, fmt.Errorf("topic %q has only %d of %d required questions", topic, len(ids), n)
	}
	return ids, nil
}

func (s *SQLiteStore) CreateMatch(ctx context.Context, m quizduel.Match) error {
	questionIDs, err := json.Marshal(m.QuestionIDs)
	if err != nil {
		return fmt.Errorf("encoding question ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (id, topic, player1_id, player2_id, status, question_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Topic, m.Player1, m.Player2, string(m.Status), string(questionIDs), m.CreatedAt)
	if err != nil {
		// The primary key rejects a second insert for the same id. Concurrent
		// duplicate requests both reach here; map the loser to the sentinel
		// instead of surfacing the driver error.
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("creating match %s: %w", m.ID, quizduel.ErrAlreadyExists)
		}
		return fmt.Errorf("creating match: %w", err)
	}
	return nil
}

// SetMatchPlayer2 records a late-joining opponent on the durable row.
// Idempotent for the same player; the open slot is represented as zero.
func (s *SQLiteStore) SetMatchPlayer2(ctx context.Context, matchID string, playerID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE matches SET player2_id = ? WHERE id = ? AND player2_id IN (0, ?)
	`, playerID, matchID, playerID)
	if err != nil {
		return fmt.Errorf("recording opponent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return quizduel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Match(ctx context.Context, id string) (quizduel.Match, error) {
	var m quizduel.Match
	var status string
	var winnerID sql.NullInt64
	var completedAt sql.NullInt64
	var questionIDs string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, topic, player1_id, player2_id, status,
		       player1_score, player2_score, winner_id, question_ids,
		       created_at, completed_at
		FROM matches WHERE id = ?
	`, id).Scan(&m.ID, &m.Topic, &m.Player1, &m.Player2, &status,
		&m.Player1Score, &m.Player2Score, &winnerID, &questionIDs,
		&m.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return m, quizduel.ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.Status = quizduel.MatchStatus(status)
	if winnerID.Valid {
		m.WinnerID = winnerID.Int64
	}
	if completedAt.Valid {
		m.CompletedAt = &completedAt.Int64
	}
	if err := json.Unmarshal([]byte(questionIDs), &m.QuestionIDs); err != nil {
		return m, fmt.Errorf("decoding question ids: %w", err)
	}
	return m, nil
}

// CompleteMatch writes the final result with a status check-and-set: only a
// match still in progress can be completed, so a repeat call fails with
// ErrAlreadyCompleted instead of rewriting durable scores.
func (s *SQLiteStore) CompleteMatch(ctx context.Context, matchID string, p1Score, p2Score int, winnerID int64, completedAt int64) error {
	var winner sql.NullInt64
	if winnerID != 0 {
		winner = sql.NullInt64{Int64: winnerID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE matches
		SET status = ?, player1_score = ?, player2_score = ?, winner_id = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, string(quizduel.MatchCompleted), p1Score, p2Score, winner, completedAt,
		matchID, string(quizduel.MatchInProgress))
	if err != nil {
		return fmt.Errorf("completing match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing match: %w", err)
	}
	if n == 0 {
		if _, err := s.Match(ctx, matchID); errors.Is(err, quizduel.ErrNotFound) {
			return quizduel.ErrNotFound
		}
		return quizduel.ErrAlreadyCompleted
	}
	return nil
}

// SaveAnswers persists a player's answer records. INSERT OR IGNORE keeps a
// retried reconciliation from tripping over rows it already wrote.
func (s *SQLiteStore) SaveAnswers(ctx context.Context, matchID string, playerID int64, answers []quizduel.PlayerAnswer) error {
	for _, a := range answers {
		isCorrect := 0
		if a.IsCorrect {
			isCorrect = 1
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO match_answers
				(match_id, player_id, question_id, question_number, answer, is_correct, elapsed_ms, points, answered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, matchID, playerID, a.QuestionID, a.QuestionNumber, a.Answer, isCorrect, a.ElapsedMs, a.Points, a.AnsweredAt)
		if err != nil {
			return fmt.Errorf("saving answer %d: %w", a.QuestionNumber, err)
		}
	}
	return nil
}

// MatchAnswers returns the durably persisted answers of one player, ordered
// by question number.
func (s *SQLiteStore) MatchAnswers(ctx context.Context, matchID string, playerID int64) ([]quizduel.PlayerAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, question_number, answer, is_correct, elapsed_ms, points, answered_at
		FROM match_answers
		WHERE match_id = ? AND player_id = ?
		ORDER BY question_number
	`, matchID, playerID)
	if err != nil {
		return nil, fmt.Errorf("reading match answers: %w", err)
	}
	defer rows.Close()

	var answers []quizduel.PlayerAnswer
	for rows.Next() {
		var a quizduel.PlayerAnswer
		var isCorrect int
		if err := rows.Scan(&a.QuestionID, &a.QuestionNumber, &a.Answer, &isCorrect, &a.ElapsedMs, &a.Points, &a.AnsweredAt); err != nil {
			return nil, err
		}
		a.IsCorrect = isCorrect == 1
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
