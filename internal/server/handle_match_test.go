package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/playduel/quizduel/internal/game"
	"github.com/playduel/quizduel/internal/quizduel"
	"github.com/playduel/quizduel/internal/reconcile"
)

func createChallenge(t *testing.T, env *testEnv, playerID int64) (string, sessionResponse) {
	t.Helper()
	matchID := uuid.NewString()
	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/session",
		map[string]any{"playerId": playerID, "topic": "science"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d (%s)", rec.Code, rec.Body.String())
	}
	return matchID, decode[sessionResponse](t, rec)
}

func TestCreateChallengeSession(t *testing.T) {
	env := newTestEnv(t)

	matchID, sess := createChallenge(t, env, 7)
	if sess.Player1 != 7 || sess.Player2 != 0 {
		t.Fatalf("players = %d/%d, want 7/0", sess.Player1, sess.Player2)
	}
	if len(sess.QuestionIDs) != 10 {
		t.Fatalf("question count = %d, want 10", len(sess.QuestionIDs))
	}

	// The durable row exists from the start.
	m, err := env.matches.Match(context.Background(), matchID)
	if err != nil {
		t.Fatalf("reading durable match: %v", err)
	}
	if m.Status != quizduel.MatchInProgress {
		t.Fatalf("durable status = %q, want %q", m.Status, quizduel.MatchInProgress)
	}

	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/session",
		map[string]any{"playerId": 8, "topic": "science"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-create status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/not-a-uuid/session",
		map[string]any{"playerId": 7, "topic": "science"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// When the ephemeral session is gone but the durable row survives, a repeat
// create must still read as a conflict, not an internal error. This is also
// the path a concurrent duplicate request loses through.
func TestCreateSessionDuplicateRowConflicts(t *testing.T) {
	env := newTestEnv(t)
	matchID, _ := createChallenge(t, env, 7)

	// Drop the ephemeral state so the fast exists-check misses and the
	// request reaches the durable insert.
	env.mr.FlushAll()

	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/session",
		map[string]any{"playerId": 7, "topic": "science"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want %d (%s)", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestAttachOpponent(t *testing.T) {
	env := newTestEnv(t)
	matchID, _ := createChallenge(t, env, 7)

	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/opponent",
		map[string]any{"playerId": 9})
	if rec.Code != http.StatusOK {
		t.Fatalf("attach status = %d (%s)", rec.Code, rec.Body.String())
	}
	sess := decode[sessionResponse](t, rec)
	if sess.Player2 != 9 {
		t.Fatalf("player2 = %d, want 9", sess.Player2)
	}

	m, err := env.matches.Match(context.Background(), matchID)
	if err != nil {
		t.Fatalf("reading durable match: %v", err)
	}
	if m.Player2 != 9 {
		t.Fatalf("durable player2 = %d, want 9", m.Player2)
	}

	// Same player again is idempotent; a third player is rejected.
	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/opponent",
		map[string]any{"playerId": 9})
	if rec.Code != http.StatusOK {
		t.Fatalf("re-attach status = %d", rec.Code)
	}
	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/opponent",
		map[string]any{"playerId": 11})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("third player status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t)
	matchID, _ := createChallenge(t, env, 7)

	rec := doJSON(t, env.router, http.MethodGet, "/api/matches/"+matchID+"/session?playerId=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/matches/"+matchID+"/session?playerId=8", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/matches/"+matchID+"/session", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing playerId status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/matches/"+uuid.NewString()+"/session?playerId=7", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown match status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSubmitAnswerOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	matchID, sess := createChallenge(t, env, 7)

	qid := sess.QuestionIDs[0]
	correct, err := env.matches.QuestionAnswer(ctx, qid)
	if err != nil {
		t.Fatalf("looking up answer: %v", err)
	}

	body := map[string]any{
		"playerId": 7, "questionId": qid, "questionNumber": 1,
		"answer": correct, "elapsedMs": 1500,
	}
	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/answers", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d (%s)", rec.Code, rec.Body.String())
	}
	res := decode[game.SubmitResult](t, rec)
	if !res.IsCorrect || res.Points != 18 || res.Player1Score != 18 {
		t.Fatalf("result = %+v, want correct 18 points", res)
	}

	// A replay reports the original result and never re-scores.
	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/answers", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	res = decode[game.SubmitResult](t, rec)
	if !res.Duplicate || res.Player1Score != 18 {
		t.Fatalf("replay result = %+v, want duplicate with score 18", res)
	}
}

func TestSubmitAnswerRejections(t *testing.T) {
	env := newTestEnv(t)
	matchID, sess := createChallenge(t, env, 7)
	qid := sess.QuestionIDs[0]

	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/answers",
		map[string]any{"playerId": 7, "questionId": qid, "questionNumber": 1, "answer": "x", "elapsedMs": 20000})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-window status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/answers",
		map[string]any{"playerId": 8, "questionId": qid, "questionNumber": 1, "answer": "x", "elapsedMs": 1000})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/answers",
		map[string]any{"playerId": 7, "questionId": qid, "questionNumber": 2, "answer": "x", "elapsedMs": 1000})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched question status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCompleteMatchOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	matchID, sess := createChallenge(t, env, 7)

	doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/opponent", map[string]any{"playerId": 9})

	qid := sess.QuestionIDs[0]
	correct, err := env.matches.QuestionAnswer(ctx, qid)
	if err != nil {
		t.Fatalf("looking up answer: %v", err)
	}
	doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/answers",
		map[string]any{"playerId": 7, "questionId": qid, "questionNumber": 1, "answer": correct, "elapsedMs": 500})

	rec := doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d (%s)", rec.Code, rec.Body.String())
	}
	out := decode[reconcile.Outcome](t, rec)
	if out.WinnerID != 7 || out.Draw {
		t.Fatalf("outcome = %+v, want winner 7", out)
	}

	m, err := env.matches.Match(ctx, matchID)
	if err != nil {
		t.Fatalf("reading durable match: %v", err)
	}
	if m.Status != quizduel.MatchCompleted || m.WinnerID != 7 {
		t.Fatalf("durable match = status %q winner %d, want completed/7", m.Status, m.WinnerID)
	}

	// The session is gone, so a repeat completion has nothing to act on.
	rec = doJSON(t, env.router, http.MethodPost, "/api/matches/"+matchID+"/complete", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second complete status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// The durable record endpoint now serves the result with answers.
	rec = doJSON(t, env.router, http.MethodGet, "/api/matches/"+matchID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get match status = %d", rec.Code)
	}
	mr := decode[matchResponse](t, rec)
	if mr.Status != quizduel.MatchCompleted || mr.WinnerID != 7 {
		t.Fatalf("match record = %+v, want completed winner 7", mr)
	}
	if len(mr.Answers["7"]) != 1 {
		t.Fatalf("persisted answers for winner = %d, want 1", len(mr.Answers["7"]))
	}
}

func TestGetMatchNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/matches/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
