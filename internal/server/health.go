package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// handleHealth pings both stores. The engine is unusable if either side is
// down: matches live in Redis, their authoritative records in SQLite.
func handleHealth(logger *slog.Logger, db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	type result struct {
		Status    string `json:"status"`
		LatencyMs int64  `json:"latencyMs"`
	}

	check := func(ctx context.Context, name string, ping func(context.Context) error) (result, bool) {
		start := time.Now()
		err := ping(ctx)
		res := result{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			logger.Error("health check failed", "name", name, "error", err)
			res.Status = "error"
			return res, false
		}
		return res, true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]result, 2)

		res, ok := check(ctx, "sqlite", db.PingContext)
		checks["sqlite"] = res
		if !ok {
			status = http.StatusServiceUnavailable
		}

		res, ok = check(ctx, "redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		checks["redis"] = res
		if !ok {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(checks)
	}
}
