// Package matchmaking maintains per-topic waiting lists and pairs players by
// skill. Joining is not matching: Join only inserts an entry, pairing happens
// in the periodic sweep so the join request stays fast and a topic list never
// has two writers consuming entries at once.
package matchmaking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/session"
)

type Config struct {
	// Timeout evicts entries that waited too long; paired with the store
	// TTL, which is the backstop when no sweep runs.
	Timeout time.Duration
	// ToleranceBase is the widest acceptable skill gap for a fresh entry.
	ToleranceBase int
	// ToleranceStep widens the gap by this many skill points per
	// ToleranceEvery waited, so long waits eventually match anyone.
	ToleranceStep  int
	ToleranceEvery time.Duration
	// QuestionsPerMatch is how many question ids a new match draws.
	QuestionsPerMatch int
}

// Status is the queue position report exposed to the UI. EstimatedWait is a
// non-binding linear hint derived from the rank.
type Status struct {
	Position             int `json:"position"`
	QueueSize            int `json:"queueSize"`
	EstimatedWaitSeconds int `json:"estimatedWaitSeconds"`
}

type Queue struct {
	sessions *session.Store
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewQueue(sessions *session.Store, cfg Config, logger *slog.Logger) *Queue {
	return &Queue{sessions: sessions, cfg: cfg, logger: logger, now: time.Now}
}

// Join inserts a waiting entry for the player on the given topic.
// quizduel.ErrAlreadyQueued if the player is waiting anywhere already.
func (q *Queue) Join(ctx context.Context, topic string, e quizduel.QueueEntry) error {
	if e.Skill == 0 {
		e.Skill = quizduel.DefaultSkill
	}
	if e.JoinedAt == 0 {
		e.JoinedAt = q.now().UnixMilli()
	}

	ok, err := q.sessions.Enqueue(ctx, topic, e)
	if err != nil {
		return fmt.Errorf("joining queue: %w", err)
	}
	if !ok {
		return quizduel.ErrAlreadyQueued
	}

	q.logger.Info("player queued", "topic", topic, "player_id", e.PlayerID, "skill", e.Skill)
	return nil
}

// Leave removes the player's entry. quizduel.ErrNotQueued if absent.
func (q *Queue) Leave(ctx context.Context, topic string, playerID int64) error {
	removed, err := q.sessions.Dequeue(ctx, topic, playerID)
	if err != nil {
		return fmt.Errorf("leaving queue: %w", err)
	}
	if !removed {
		return quizduel.ErrNotQueued
	}
	q.logger.Info("player left queue", "topic", topic, "player_id", playerID)
	return nil
}

// Status returns the player's 0-based rank (ordered by join time) and the
// queue size. quizduel.ErrNotQueued if the player is not waiting on topic.
func (q *Queue) Status(ctx context.Context, topic string, playerID int64) (Status, error) {
	entries, err := q.sessions.QueueEntries(ctx, topic)
	if err != nil {
		return Status{}, fmt.Errorf("reading queue: %w", err)
	}
	sortByJoinTime(entries)

	for i, e := range entries {
		if e.PlayerID == playerID {
			return Status{
				Position:             i,
				QueueSize:            len(entries),
				EstimatedWaitSeconds: estimatedWait(i),
			}, nil
		}
	}
	return Status{}, quizduel.ErrNotQueued
}

// estimatedWait is a monotone linear hint, nothing more.
func estimatedWait(rank int) int {
	return 10 + 10*rank
}

func sortByJoinTime(entries []quizduel.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAt != entries[j].JoinedAt {
			return entries[i].JoinedAt < entries[j].JoinedAt
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
}

// tolerance is the acceptable skill gap for an entry that has waited the
// given duration.
func (c Config) tolerance(waited time.Duration) int {
	if waited < 0 {
		waited = 0
	}
	steps := int(waited / c.ToleranceEvery)
	return c.ToleranceBase + c.ToleranceStep*steps
}
