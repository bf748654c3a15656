package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playduel/quizduel/internal/game"
	"github.com/playduel/quizduel/internal/matchmaking"
	"github.com/playduel/quizduel/internal/reconcile"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps dependency name to check status.
type HealthResponse map[string]struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

// Request shapes mirrored here for the published document.
type (
	QueueJoinRequest struct {
		PlayerID int64  `json:"playerId"`
		Name     string `json:"name"`
		Avatar   string `json:"avatar"`
		Skill    int    `json:"skill"`
	}
	QueueLeaveRequest struct {
		PlayerID int64 `json:"playerId"`
	}
	CreateSessionRequest struct {
		PlayerID int64  `json:"playerId"`
		Topic    string `json:"topic"`
	}
	AttachOpponentRequest struct {
		PlayerID int64 `json:"playerId"`
	}
	SubmitAnswerRequest struct {
		PlayerID       int64  `json:"playerId"`
		QuestionID     int64  `json:"questionId"`
		QuestionNumber int    `json:"questionNumber"`
		Answer         string `json:"answer"`
		ElapsedMs      int64  `json:"elapsedMs"`
	}
)

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "QuizDuel API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Matchmaking and live match-state engine for head-to-head trivia duels.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/queue/{topic}/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/queue/{topic}/join")
	postJoin.SetSummary("Join matchmaking queue")
	postJoin.SetDescription("Enqueues the player on one topic. A player can wait in at most one queue at a time.")
	postJoin.AddReqStructure(QueueJoinRequest{})
	postJoin.AddRespStructure(matchmaking.Status{}, openapi.WithHTTPStatus(http.StatusCreated))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/queue/{topic}/leave
	postLeave, _ := r.NewOperationContext(http.MethodPost, "/api/queue/{topic}/leave")
	postLeave.SetSummary("Leave matchmaking queue")
	postLeave.SetDescription("Removes the player's waiting entry from the topic queue.")
	postLeave.AddReqStructure(QueueLeaveRequest{})
	postLeave.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postLeave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postLeave)

	// GET /api/queue/{topic}/players/{playerID}
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/api/queue/{topic}/players/{playerID}")
	getStatus.SetSummary("Queue status")
	getStatus.SetDescription("Returns the player's position, the queue size, an estimated wait, and the online flag.")
	getStatus.AddRespStructure(queueStatusResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getStatus)

	// GET /api/matches/{matchID}
	getMatch, _ := r.NewOperationContext(http.MethodGet, "/api/matches/{matchID}")
	getMatch.SetSummary("Get match record")
	getMatch.SetDescription("Returns the authoritative durable record. Completed matches include both players' persisted answers.")
	getMatch.AddRespStructure(matchResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMatch.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getMatch)

	// POST /api/matches/{matchID}/session
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/matches/{matchID}/session")
	postSession.SetSummary("Start challenge match")
	postSession.SetDescription("Creates a durable match and its live session with one player. The opponent joins later via the opponent endpoint. The match id is a client-minted UUID.")
	postSession.AddReqStructure(CreateSessionRequest{})
	postSession.AddRespStructure(sessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postSession)

	// GET /api/matches/{matchID}/session
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/matches/{matchID}/session")
	getSession.SetSummary("Get live session")
	getSession.SetDescription("Returns the live match state plus the requesting player's answers. Pass playerId as query parameter; participants only.")
	getSession.AddRespStructure(sessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	// POST /api/matches/{matchID}/opponent
	postOpponent, _ := r.NewOperationContext(http.MethodPost, "/api/matches/{matchID}/opponent")
	postOpponent.SetSummary("Join as opponent")
	postOpponent.SetDescription("Claims the open second slot of a challenge match. Idempotent for the same player.")
	postOpponent.AddReqStructure(AttachOpponentRequest{})
	postOpponent.AddRespStructure(sessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postOpponent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postOpponent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postOpponent)

	// POST /api/matches/{matchID}/answers
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/matches/{matchID}/answers")
	postAnswer.SetSummary("Submit answer")
	postAnswer.SetDescription("Scores and records one answer. First write wins per question; a replay returns the original result.")
	postAnswer.AddReqStructure(SubmitAnswerRequest{})
	postAnswer.AddRespStructure(game.SubmitResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postAnswer)

	// POST /api/matches/{matchID}/complete
	postComplete, _ := r.NewOperationContext(http.MethodPost, "/api/matches/{matchID}/complete")
	postComplete.SetSummary("Complete match")
	postComplete.SetDescription("Finalizes a match: decides the winner, persists scores and answers durably, deletes the live session.")
	postComplete.AddRespStructure(reconcile.Outcome{}, openapi.WithHTTPStatus(http.StatusOK))
	postComplete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postComplete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postComplete)

	// PUT /api/presence/{playerID}
	putPresence, _ := r.NewOperationContext(http.MethodPut, "/api/presence/{playerID}")
	putPresence.SetSummary("Presence heartbeat")
	putPresence.SetDescription("Refreshes the player's TTL-bound online marker.")
	putPresence.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	putPresence.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putPresence)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
