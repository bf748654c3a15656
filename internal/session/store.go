// Package session is the typed adapter over the ephemeral Redis backend.
// It is the only gateway to live queue and match state: every mutation is
// either a conditional primitive (SetNX, HSetNX) or an atomic delta
// (HIncrBy), so correctness never depends on single-process serialization.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playduel/quizduel/internal/quizduel"
)

// TTLs bound the lifetime of every ephemeral key so abandoned queue entries
// and sessions self-expire even if no cleanup ever runs.
type TTLs struct {
	Queue    time.Duration
	Match    time.Duration
	Answers  time.Duration
	Presence time.Duration
}

type Store struct {
	rdb  *redis.Client
	ttls TTLs
}

func NewStore(rdb *redis.Client, ttls TTLs) *Store {
	return &Store{rdb: rdb, ttls: ttls}
}

func queueKey(topic string, playerID int64) string {
	return fmt.Sprintf("queue:%s:%d", topic, playerID)
}

func queuePattern(topic string) string {
	return "queue:" + topic + ":*"
}

func queuedKey(playerID int64) string {
	return fmt.Sprintf("queued:%d", playerID)
}

func gameKey(matchID string) string {
	return "game:" + matchID
}

func answersKey(matchID string, playerID int64) string {
	return fmt.Sprintf("answers:%s:%d", matchID, playerID)
}

func presenceKey(playerID int64) string {
	return fmt.Sprintf("online:%d", playerID)
}

func sweepLockKey(topic string) string {
	return "sweeplock:" + topic
}

// Enqueue adds a queue entry for the player on the given topic. The
// queued:{player} index key is claimed first with SetNX, which enforces the
// one-queue-per-player invariant across topics and concurrent joins.
// Returns false if the player is already waiting somewhere.
func (s *Store) Enqueue(ctx context.Context, topic string, e quizduel.QueueEntry) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, queuedKey(e.PlayerID), topic, s.ttls.Queue).Result()
	if err != nil {
		return false, fmt.Errorf("claiming queue index: %w", err)
	}
	if !ok {
		return false, nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encoding queue entry: %w", err)
	}
	if err := s.rdb.Set(ctx, queueKey(topic, e.PlayerID), data, s.ttls.Queue).Err(); err != nil {
		// Roll the index back so the player is not stuck queued-nowhere
		// until the TTL clears it.
		s.rdb.Del(ctx, queuedKey(e.PlayerID))
		return false, fmt.Errorf("writing queue entry: %w", err)
	}
	return true, nil
}

// Dequeue removes the player's entry from the topic queue. Returns false if
// no entry was present. The queued:{player} index is released only when an
// entry was actually removed; a miss on the wrong topic must leave the
// player's real queue membership intact.
func (s *Store) Dequeue(ctx context.Context, topic string, playerID int64) (bool, error) {
	removed, err := s.rdb.Del(ctx, queueKey(topic, playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("removing queue entry: %w", err)
	}
	if removed == 0 {
		return false, nil
	}
	if err := s.rdb.Del(ctx, queuedKey(playerID)).Err(); err != nil {
		return false, fmt.Errorf("removing queue index: %w", err)
	}
	return true, nil
}

// QueuedTopic returns the topic the player is currently waiting on, or ""
// if not queued.
func (s *Store) QueuedTopic(ctx context.Context, playerID int64) (string, error) {
	topic, err := s.rdb.Get(ctx, queuedKey(playerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading queue index: %w", err)
	}
	return topic, nil
}

// QueueEntries lists all entries waiting on a topic, in no particular order.
// Entries that expired between SCAN and GET are skipped.
func (s *Store) QueueEntries(ctx context.Context, topic string) ([]quizduel.QueueEntry, error) {
	var entries []quizduel.QueueEntry

	iter := s.rdb.Scan(ctx, 0, queuePattern(topic), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning queue: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading queue entries: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e quizduel.QueueEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// QueuedTopics returns the distinct topics that currently have at least one
// waiting entry.
func (s *Store) QueuedTopics(ctx context.Context) ([]string, error) {
	iter := s.rdb.Scan(ctx, 0, "queue:*", 100).Iterator()
	seen := make(map[string]struct{})
	var topics []string
	for iter.Next(ctx) {
		// queue:{topic}:{playerID}
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		if _, ok := seen[parts[1]]; ok {
			continue
		}
		seen[parts[1]] = struct{}{}
		topics = append(topics, parts[1])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning topics: %w", err)
	}
	return topics, nil
}

// TryLockTopic claims the per-topic pairing lock. Pairing consumes two
// entries together, so concurrent sweep ticks must be exclusive per topic.
func (s *Store) TryLockTopic(ctx context.Context, topic string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, sweepLockKey(topic), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("locking topic: %w", err)
	}
	return ok, nil
}

func (s *Store) UnlockTopic(ctx context.Context, topic string) error {
	return s.rdb.Del(ctx, sweepLockKey(topic)).Err()
}

// Game hash fields. player2 is only present once a second side exists, so
// HSetNX can attach an opponent to an asynchronous session atomically.
const (
	fieldPlayer1   = "player1"
	fieldPlayer2   = "player2"
	fieldQuestions = "questions"
	fieldP1Score   = "p1_score"
	fieldP2Score   = "p2_score"
	fieldCreatedAt = "created_at"
)

// CreateGame writes a fresh session hash, replacing any previous state for
// the match, and bounds it with the match TTL.
func (s *Store) CreateGame(ctx context.Context, g quizduel.GameSession) error {
	questions, err := json.Marshal(g.QuestionIDs)
	if err != nil {
		return fmt.Errorf("encoding question list: %w", err)
	}

	fields := map[string]interface{}{
		fieldPlayer1:   g.Player1,
		fieldQuestions: string(questions),
		fieldP1Score:   g.Player1Score,
		fieldP2Score:   g.Player2Score,
		fieldCreatedAt: g.CreatedAt,
	}
	if g.Player2 != 0 {
		fields[fieldPlayer2] = g.Player2
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, gameKey(g.MatchID), answersKey(g.MatchID, g.Player1), answersKey(g.MatchID, g.Player2))
	pipe.HSet(ctx, gameKey(g.MatchID), fields)
	pipe.Expire(ctx, gameKey(g.MatchID), s.ttls.Match)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("creating game session: %w", err)
	}
	return nil
}

// Game loads the session for a match, or ErrSessionNotFound if it never
// existed or already expired.
func (s *Store) Game(ctx context.Context, matchID string) (quizduel.GameSession, error) {
	fields, err := s.rdb.HGetAll(ctx, gameKey(matchID)).Result()
	if err != nil {
		return quizduel.GameSession{}, fmt.Errorf("reading game session: %w", err)
	}
	if len(fields) == 0 {
		return quizduel.GameSession{}, quizduel.ErrSessionNotFound
	}

	g := quizduel.GameSession{MatchID: matchID}
	g.Player1, _ = strconv.ParseInt(fields[fieldPlayer1], 10, 64)
	if v, ok := fields[fieldPlayer2]; ok {
		g.Player2, _ = strconv.ParseInt(v, 10, 64)
	}
	g.Player1Score, _ = strconv.Atoi(fields[fieldP1Score])
	g.Player2Score, _ = strconv.Atoi(fields[fieldP2Score])
	g.CreatedAt, _ = strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err := json.Unmarshal([]byte(fields[fieldQuestions]), &g.QuestionIDs); err != nil {
		return quizduel.GameSession{}, fmt.Errorf("decoding question list: %w", err)
	}
	return g, nil
}

// AttachPlayer2 claims the open second slot of an asynchronous session.
// Returns false if a second player is already attached.
func (s *Store) AttachPlayer2(ctx context.Context, matchID string, playerID int64) (bool, error) {
	ok, err := s.rdb.HSetNX(ctx, gameKey(matchID), fieldPlayer2, playerID).Result()
	if err != nil {
		return false, fmt.Errorf("attaching second player: %w", err)
	}
	return ok, nil
}

// PutAnswer records an answer under its question number with first-write-wins
// semantics. Returns false when an answer for that question number was
// already present; the stored record is never overwritten.
func (s *Store) PutAnswer(ctx context.Context, matchID string, playerID int64, a quizduel.PlayerAnswer) (bool, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encoding answer: %w", err)
	}
	key := answersKey(matchID, playerID)
	ok, err := s.rdb.HSetNX(ctx, key, strconv.Itoa(a.QuestionNumber), data).Result()
	if err != nil {
		return false, fmt.Errorf("recording answer: %w", err)
	}
	if ok {
		s.rdb.Expire(ctx, key, s.ttls.Answers)
	}
	return ok, nil
}

// Answer returns the recorded answer for a question number, if any.
func (s *Store) Answer(ctx context.Context, matchID string, playerID int64, questionNumber int) (quizduel.PlayerAnswer, bool, error) {
	raw, err := s.rdb.HGet(ctx, answersKey(matchID, playerID), strconv.Itoa(questionNumber)).Result()
	if err == redis.Nil {
		return quizduel.PlayerAnswer{}, false, nil
	}
	if err != nil {
		return quizduel.PlayerAnswer{}, false, fmt.Errorf("reading answer: %w", err)
	}
	var a quizduel.PlayerAnswer
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return quizduel.PlayerAnswer{}, false, fmt.Errorf("decoding answer: %w", err)
	}
	return a, true, nil
}

// Answers returns all answers a player has recorded for a match, keyed by
// question number.
func (s *Store) Answers(ctx context.Context, matchID string, playerID int64) (map[int]quizduel.PlayerAnswer, error) {
	raw, err := s.rdb.HGetAll(ctx, answersKey(matchID, playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	answers := make(map[int]quizduel.PlayerAnswer, len(raw))
	for field, val := range raw {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var a quizduel.PlayerAnswer
		if err := json.Unmarshal([]byte(val), &a); err != nil {
			continue
		}
		answers[n] = a
	}
	return answers, nil
}

// AddScore applies an atomic score delta for one side of the match and
// returns the new value. Deltas, never overwrites: two concurrent writers
// must not be able to clobber each other.
func (s *Store) AddScore(ctx context.Context, matchID string, playerSlot int, delta int) (int, error) {
	field := fieldP1Score
	if playerSlot == 2 {
		field = fieldP2Score
	}
	v, err := s.rdb.HIncrBy(ctx, gameKey(matchID), field, int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing score: %w", err)
	}
	return int(v), nil
}

// Scores reads both cumulative scores.
func (s *Store) Scores(ctx context.Context, matchID string) (p1, p2 int, err error) {
	vals, err := s.rdb.HMGet(ctx, gameKey(matchID), fieldP1Score, fieldP2Score).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("reading scores: %w", err)
	}
	if raw, ok := vals[0].(string); ok {
		p1, _ = strconv.Atoi(raw)
	}
	if raw, ok := vals[1].(string); ok {
		p2, _ = strconv.Atoi(raw)
	}
	return p1, p2, nil
}

// DeleteGame tears down the session hash and both answer hashes.
func (s *Store) DeleteGame(ctx context.Context, matchID string, player1, player2 int64) error {
	keys := []string{gameKey(matchID), answersKey(matchID, player1)}
	if player2 != 0 {
		keys = append(keys, answersKey(matchID, player2))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting game session: %w", err)
	}
	return nil
}

// TouchPresence refreshes the player's online marker.
func (s *Store) TouchPresence(ctx context.Context, playerID int64) error {
	if err := s.rdb.Set(ctx, presenceKey(playerID), "1", s.ttls.Presence).Err(); err != nil {
		return fmt.Errorf("touching presence: %w", err)
	}
	return nil
}

// Online reports whether the player's presence marker is still live.
func (s *Store) Online(ctx context.Context, playerID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, presenceKey(playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking presence: %w", err)
	}
	return n > 0, nil
}
