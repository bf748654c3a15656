package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playduel/quizduel/internal/config"
	"github.com/playduel/quizduel/internal/database"
	"github.com/playduel/quizduel/internal/game"
	"github.com/playduel/quizduel/internal/matchmaking"
	"github.com/playduel/quizduel/internal/migrations"
	"github.com/playduel/quizduel/internal/reconcile"
	"github.com/playduel/quizduel/internal/server"
	"github.com/playduel/quizduel/internal/session"
	"github.com/playduel/quizduel/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	matches := store.NewSQLiteStore(db)
	if err := matches.SeedDemoQuestions(ctx, logger); err != nil {
		return fmt.Errorf("seeding questions: %w", err)
	}

	// --- Redis ---
	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	sessions := session.NewStore(rdb, session.TTLs{
		Queue:    cfg.MatchmakingTimeout,
		Match:    cfg.MatchTTL,
		Answers:  cfg.AnswerTTL,
		Presence: cfg.PresenceTTL,
	})

	// --- Engine ---
	mmCfg := matchmaking.Config{
		Timeout:           cfg.MatchmakingTimeout,
		ToleranceBase:     cfg.SkillToleranceBase,
		ToleranceStep:     cfg.SkillToleranceStep,
		ToleranceEvery:    5 * time.Second,
		QuestionsPerMatch: cfg.QuestionsPerMatch,
	}
	games := game.NewManager(sessions, matches, logger)
	queue := matchmaking.NewQueue(sessions, mmCfg, logger)
	sweeper := matchmaking.NewSweeper(sessions, matches, games, mmCfg, logger)
	reconciler := reconcile.NewReconciler(sessions, matches, logger)

	// --- Pairing sweep ---
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func(jobCtx context.Context) {
			res, err := sweeper.Tick(jobCtx)
			if err != nil {
				logger.Error("matchmaking sweep failed", "error", err)
				return
			}
			if len(res.Paired) > 0 || len(res.Expired) > 0 {
				logger.Info("matchmaking sweep", "paired", len(res.Paired), "expired", len(res.Expired))
			}
		}),
	); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Queue:             queue,
		Games:             games,
		Reconciler:        reconciler,
		Sessions:          sessions,
		Matches:           matches,
		Players:           matches,
		DB:                db,
		RDB:               rdb,
		QuestionsPerMatch: cfg.QuestionsPerMatch,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
