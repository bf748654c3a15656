// Package quizduel defines the core domain types and error taxonomy for the
// match engine. It has zero external dependencies — everything here is pure Go.
package quizduel

import "errors"

// Sentinel errors shared across the engine. Handlers map these to HTTP
// statuses; everything else is treated as an upstream failure.
var (
	ErrAlreadyQueued    = errors.New("player already queued")
	ErrNotQueued        = errors.New("player not queued")
	ErrSessionNotFound  = errors.New("game session not found")
	ErrNotParticipant   = errors.New("player is not a participant of this match")
	ErrInvalidTiming    = errors.New("elapsed time outside the valid window")
	ErrQuestionMismatch = errors.New("question does not belong to this match")
	ErrAlreadyCompleted = errors.New("match already completed")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
)

// QueueEntry is one player waiting for a match on one topic.
type QueueEntry struct {
	PlayerID int64  `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Skill    int    `json:"skill"`
	JoinedAt int64  `json:"joinedAt"` // epoch millis
}

// DefaultSkill is assumed when a join request carries no rating.
const DefaultSkill = 1000

// GameSession is the ephemeral state of one active match. Player2 is zero
// for an asynchronous session whose second side has not joined yet.
type GameSession struct {
	MatchID      string
	Player1      int64
	Player2      int64
	QuestionIDs  []int64
	Player1Score int
	Player2Score int
	CreatedAt    int64 // epoch millis
}

// HasPlayer reports whether id is one of the session's participants.
// The zero sentinel never matches.
func (s GameSession) HasPlayer(id int64) bool {
	if id == 0 {
		return false
	}
	return id == s.Player1 || id == s.Player2
}

// ScoreOf returns the cumulative score recorded for the given participant.
func (s GameSession) ScoreOf(id int64) int {
	if id == s.Player1 {
		return s.Player1Score
	}
	if id == s.Player2 && id != 0 {
		return s.Player2Score
	}
	return 0
}

// PlayerAnswer is one submitted answer, kept per session until reconciliation.
type PlayerAnswer struct {
	QuestionID     int64  `json:"questionId"`
	QuestionNumber int    `json:"questionNumber"` // 1-based
	Answer         string `json:"answer"`
	IsCorrect      bool   `json:"isCorrect"`
	ElapsedMs      int64  `json:"elapsedMs"`
	Points         int    `json:"points"`
	AnsweredAt     int64  `json:"answeredAt"` // epoch millis
}

// Player is a durable profile row. Skill is consumed for matchmaking only;
// the engine never updates it.
type Player struct {
	ID     int64
	Name   string
	Avatar string
	Skill  int
}

// Question is a durable trivia question. CorrectAnswer is the authoritative
// value answers are checked against.
type Question struct {
	ID            int64
	Topic         string
	Prompt        string
	CorrectAnswer string
}

// Match is the durable authoritative record of a match.
type Match struct {
	ID           string
	Topic        string
	Player1      int64
	Player2      int64
	Status       MatchStatus
	Player1Score int
	Player2Score int
	WinnerID     int64 // 0 = draw or not decided yet
	QuestionIDs  []int64
	CreatedAt    int64
	CompletedAt  *int64
}

type MatchStatus string

const (
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchAbandoned  MatchStatus = "abandoned"
	MatchExpired    MatchStatus = "expired"
)
