package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/playduel/quizduel/internal/database"
	"github.com/playduel/quizduel/internal/game"
	"github.com/playduel/quizduel/internal/matchmaking"
	"github.com/playduel/quizduel/internal/migrations"
	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/reconcile"
	"github.com/playduel/quizduel/internal/session"
	"github.com/playduel/quizduel/internal/store"
)

type testEnv struct {
	router   http.Handler
	sessions *session.Store
	matches  *store.SQLiteStore
	mr       *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	matches := store.NewSQLiteStore(db)
	if err := matches.SeedDemoQuestions(ctx, logger); err != nil {
		t.Fatalf("seeding questions: %v", err)
	}

	sessions := session.NewStore(rdb, session.TTLs{
		Queue:    3 * time.Minute,
		Match:    time.Hour,
		Answers:  time.Hour,
		Presence: time.Minute,
	})

	cfg := matchmaking.Config{
		Timeout:           3 * time.Minute,
		ToleranceBase:     200,
		ToleranceStep:     50,
		ToleranceEvery:    5 * time.Second,
		QuestionsPerMatch: 10,
	}

	r := chi.NewRouter()
	addRoutes(r, logger, Deps{
		Queue:             matchmaking.NewQueue(sessions, cfg, logger),
		Games:             game.NewManager(sessions, matches, logger),
		Reconciler:        reconcile.NewReconciler(sessions, matches, logger),
		Sessions:          sessions,
		Matches:           matches,
		Players:           matches,
		DB:                db,
		RDB:               rdb,
		QuestionsPerMatch: 10,
	})

	return &testEnv{router: r, sessions: sessions, matches: matches, mr: mr}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestQueueJoinAndStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/queue/science/join",
		map[string]any{"playerId": 1, "name": "ada", "skill": 1000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	st := decode[matchmaking.Status](t, rec)
	if st.Position != 0 || st.QueueSize != 1 {
		t.Fatalf("status = %+v, want position 0 size 1", st)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/queue/science/join",
		map[string]any{"playerId": 2, "name": "grace", "skill": 1100})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second join status = %d", rec.Code)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/queue/science/players/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}
	full := decode[queueStatusResponse](t, rec)
	if full.Position != 1 || full.QueueSize != 2 {
		t.Fatalf("status = %+v, want position 1 size 2", full)
	}
	if full.EstimatedWaitSeconds != 20 {
		t.Fatalf("estimated wait = %d, want 20", full.EstimatedWaitSeconds)
	}
	if full.Online {
		t.Fatal("player should read offline without a heartbeat")
	}

	// Joining also syncs the durable profile.
	p, err := env.matches.Player(context.Background(), 2)
	if err != nil {
		t.Fatalf("reading player: %v", err)
	}
	if p.Name != "grace" || p.Skill != 1100 {
		t.Fatalf("player = %+v, want grace/1100", p)
	}
}

func TestQueueJoinDefaultSkillSyncsProfile(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/queue/science/join",
		map[string]any{"playerId": 7, "name": "kay"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d (%s)", rec.Code, rec.Body.String())
	}

	// Omitted skill defaults once, so the durable profile and the queue
	// entry carry the same rating.
	p, err := env.matches.Player(context.Background(), 7)
	if err != nil {
		t.Fatalf("reading player: %v", err)
	}
	if p.Skill != quizduel.DefaultSkill {
		t.Fatalf("durable skill = %d, want %d", p.Skill, quizduel.DefaultSkill)
	}
}

func TestQueueJoinRejectsSecondQueue(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/queue/science/join",
		map[string]any{"playerId": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d", rec.Code)
	}

	// Same topic and a different topic are both rejected while queued.
	rec = doJSON(t, env.router, http.MethodPost, "/api/queue/science/join",
		map[string]any{"playerId": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("rejoin status = %d, want %d", rec.Code, http.StatusConflict)
	}
	rec = doJSON(t, env.router, http.MethodPost, "/api/queue/history/join",
		map[string]any{"playerId": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("cross-topic join status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestQueueLeave(t *testing.T) {
	env := newTestEnv(t)

	doJSON(t, env.router, http.MethodPost, "/api/queue/science/join", map[string]any{"playerId": 1})

	rec := doJSON(t, env.router, http.MethodPost, "/api/queue/science/leave", map[string]any{"playerId": 1})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("leave status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/queue/science/leave", map[string]any{"playerId": 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second leave status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/queue/science/players/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after leave = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestQueueJoinValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/queue/science/join", map[string]any{"name": "nobody"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing playerId status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/queue/science/join", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/queue/science/players/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad player id status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPresenceHeartbeat(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodPut, "/api/presence/5", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("presence status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	online, err := env.sessions.Online(context.Background(), 5)
	if err != nil {
		t.Fatalf("checking presence: %v", err)
	}
	if !online {
		t.Fatal("player should read as online after heartbeat")
	}

	rec = doJSON(t, env.router, http.MethodPut, "/api/presence/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad presence id status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
