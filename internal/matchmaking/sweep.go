package matchmaking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/session"
)

// topicLockTTL bounds how long a sweep can hold a topic before a stuck
// process stops blocking pairing.
const topicLockTTL = 15 * time.Second

// MatchStore is the durable side the sweep writes new matches to.
type MatchStore interface {
	CreateMatch(ctx context.Context, m quizduel.Match) error
	TopicQuestionIDs(ctx context.Context, topic string, n int) ([]int64, error)
}

// SessionCreator initializes the ephemeral state for a freshly paired match.
type SessionCreator interface {
	CreateSession(ctx context.Context, matchID string, player1, player2 int64, questionIDs []int64) error
}

// Paired describes one match formed by a sweep tick.
type Paired struct {
	MatchID string `json:"matchId"`
	Topic   string `json:"topic"`
	Player1 int64  `json:"player1"`
	Player2 int64  `json:"player2"`
}

// TickResult reports what one sweep pass did.
type TickResult struct {
	Paired  []Paired
	Expired []int64
}

// Sweeper runs the periodic pairing pass. Each invocation is independent;
// exclusivity per topic comes from the store lock, not from this process.
type Sweeper struct {
	sessions *session.Store
	matches  MatchStore
	games    SessionCreator
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(sessions *session.Store, matches MatchStore, games SessionCreator, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		matches:  matches,
		games:    games,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Tick processes every topic that currently has waiting entries.
func (s *Sweeper) Tick(ctx context.Context) (TickResult, error) {
	topics, err := s.sessions.QueuedTopics(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("listing topics: %w", err)
	}

	var result TickResult
	for _, topic := range topics {
		paired, expired, err := s.sweepTopic(ctx, topic)
		if err != nil {
			s.logger.Error("sweep failed for topic", "topic", topic, "error", err)
			continue
		}
		result.Paired = append(result.Paired, paired...)
		result.Expired = append(result.Expired, expired...)
	}
	return result, nil
}

func (s *Sweeper) sweepTopic(ctx context.Context, topic string) ([]Paired, []int64, error) {
	locked, err := s.sessions.TryLockTopic(ctx, topic, topicLockTTL)
	if err != nil {
		return nil, nil, err
	}
	if !locked {
		// Another instance is pairing this topic right now.
		return nil, nil, nil
	}
	defer s.sessions.UnlockTopic(ctx, topic)

	entries, err := s.sessions.QueueEntries(ctx, topic)
	if err != nil {
		return nil, nil, err
	}
	sortByJoinTime(entries)
	now := s.now()

	// Evict entries past the matchmaking timeout. The key TTL would catch
	// them eventually; this reports them as expired instead of pairing them.
	var expired []int64
	waiting := entries[:0]
	for _, e := range entries {
		if now.Sub(time.UnixMilli(e.JoinedAt)) > s.cfg.Timeout {
			if _, err := s.sessions.Dequeue(ctx, topic, e.PlayerID); err != nil {
				s.logger.Warn("failed to evict expired entry", "topic", topic, "player_id", e.PlayerID, "error", err)
				continue
			}
			expired = append(expired, e.PlayerID)
			s.logger.Info("queue entry expired", "topic", topic, "player_id", e.PlayerID)
			continue
		}
		waiting = append(waiting, e)
	}

	var paired []Paired
	for len(waiting) >= 2 {
		head := waiting[0]
		rest := waiting[1:]

		idx := closestWithinTolerance(head, rest, s.cfg.tolerance(now.Sub(time.UnixMilli(head.JoinedAt))))
		if idx < 0 {
			// Nobody close enough yet; the head waits, and so does
			// everyone who joined after it.
			waiting = rest
			continue
		}
		opponent := rest[idx]

		p, err := s.pair(ctx, topic, head, opponent)
		if err != nil {
			// Aborted pairings put their claimed entries back; the next
			// tick retries them.
			s.logger.Error("pairing failed", "topic", topic,
				"player1", head.PlayerID, "player2", opponent.PlayerID, "error", err)
			waiting = rest
			continue
		}
		paired = append(paired, p)

		waiting = append(rest[:idx:idx], rest[idx+1:]...)
	}

	return paired, expired, nil
}

// closestWithinTolerance returns the index of the candidate whose skill is
// nearest to head's, or -1 if none lies within the tolerance window.
func closestWithinTolerance(head quizduel.QueueEntry, candidates []quizduel.QueueEntry, tolerance int) int {
	best := -1
	bestGap := tolerance + 1
	for i, c := range candidates {
		gap := head.Skill - c.Skill
		if gap < 0 {
			gap = -gap
		}
		if gap <= tolerance && gap < bestGap {
			best = i
			bestGap = gap
		}
	}
	return best
}

func (s *Sweeper) pair(ctx context.Context, topic string, p1, p2 quizduel.QueueEntry) (Paired, error) {
	// Claim both entries before writing the match. If the dequeue ran last
	// and failed, the entries would stay visible and a later tick would pair
	// the same players into a second match.
	claimed, err := s.sessions.Dequeue(ctx, topic, p1.PlayerID)
	if err != nil {
		return Paired{}, fmt.Errorf("claiming player %d: %w", p1.PlayerID, err)
	}
	if !claimed {
		return Paired{}, fmt.Errorf("player %d left the queue mid-sweep", p1.PlayerID)
	}
	claimed, err = s.sessions.Dequeue(ctx, topic, p2.PlayerID)
	if err != nil {
		s.requeue(ctx, topic, p1)
		return Paired{}, fmt.Errorf("claiming player %d: %w", p2.PlayerID, err)
	}
	if !claimed {
		s.requeue(ctx, topic, p1)
		return Paired{}, fmt.Errorf("player %d left the queue mid-sweep", p2.PlayerID)
	}

	questionIDs, err := s.matches.TopicQuestionIDs(ctx, topic, s.cfg.QuestionsPerMatch)
	if err != nil {
		s.requeue(ctx, topic, p1, p2)
		return Paired{}, fmt.Errorf("picking questions: %w", err)
	}

	matchID := uuid.NewString()
	match := quizduel.Match{
		ID:          matchID,
		Topic:       topic,
		Player1:     p1.PlayerID,
		Player2:     p2.PlayerID,
		Status:      quizduel.MatchInProgress,
		QuestionIDs: questionIDs,
		CreatedAt:   s.now().UnixMilli(),
	}
	if err := s.matches.CreateMatch(ctx, match); err != nil {
		s.requeue(ctx, topic, p1, p2)
		return Paired{}, fmt.Errorf("creating match record: %w", err)
	}

	// The durable row is the commit point. Past it the claims stand: putting
	// the entries back would pair players who already hold an in-progress
	// match into a second one.
	if err := s.games.CreateSession(ctx, matchID, p1.PlayerID, p2.PlayerID, questionIDs); err != nil {
		return Paired{}, fmt.Errorf("creating game session: %w", err)
	}

	s.logger.Info("players paired", "topic", topic, "match_id", matchID,
		"player1", p1.PlayerID, "player2", p2.PlayerID,
		"skill_gap", abs(p1.Skill-p2.Skill))
	return Paired{MatchID: matchID, Topic: topic, Player1: p1.PlayerID, Player2: p2.PlayerID}, nil
}

// requeue puts claimed entries back after an aborted pairing, keeping their
// original join times so they do not lose their place.
func (s *Sweeper) requeue(ctx context.Context, topic string, entries ...quizduel.QueueEntry) {
	for _, e := range entries {
		if _, err := s.sessions.Enqueue(ctx, topic, e); err != nil {
			s.logger.Warn("failed to re-queue player after aborted pairing",
				"topic", topic, "player_id", e.PlayerID, "error", err)
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
