package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("QuizDuel API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, deps.DB, deps.RDB))

	r.Route("/api", func(r chi.Router) {
		r.Route("/queue/{topic}", func(r chi.Router) {
			r.Post("/join", handleQueueJoin(logger, deps.Queue, deps.Players))
			r.Post("/leave", handleQueueLeave(logger, deps.Queue))
			r.Get("/players/{playerID}", handleQueueStatus(logger, deps.Queue, deps.Sessions))
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", handleGetMatch(logger, deps.Matches))
			r.Post("/session", handleCreateSession(logger, deps.Games, deps.Matches, deps.QuestionsPerMatch))
			r.Get("/session", handleGetSession(logger, deps.Games, deps.Sessions))
			r.Post("/opponent", handleAttachOpponent(logger, deps.Games, deps.Matches))
			r.Post("/answers", handleSubmitAnswer(logger, deps.Games))
			r.Post("/complete", handleComplete(logger, deps.Reconciler))
		})

		r.Put("/presence/{playerID}", handlePresence(logger, deps.Sessions))
	})
}
