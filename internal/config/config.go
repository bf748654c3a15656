package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/quizduel.db"`
	RedisURL string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Match shape.
	QuestionsPerMatch int           `env:"QUESTIONS_PER_MATCH" envDefault:"10"`
	QuestionTimeLimit time.Duration `env:"QUESTION_TIME_LIMIT" envDefault:"10s"`

	// Matchmaking.
	MatchmakingTimeout time.Duration `env:"MATCHMAKING_TIMEOUT" envDefault:"180s"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"2s"`
	SkillToleranceBase int           `env:"SKILL_TOLERANCE_BASE" envDefault:"200"`
	SkillToleranceStep int           `env:"SKILL_TOLERANCE_STEP" envDefault:"50"`

	// Ephemeral state lifetimes.
	MatchTTL    time.Duration `env:"MATCH_TTL" envDefault:"1h"`
	AnswerTTL   time.Duration `env:"ANSWER_TTL" envDefault:"1h"`
	PresenceTTL time.Duration `env:"PRESENCE_TTL" envDefault:"60s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
