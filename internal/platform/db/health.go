package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the JSON view of the pgx pool counters.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names a dependency for the health report.
type Check struct {
	Name   string
	Pinger Pinger
}

// HealthHandler probes every check and answers 503 when any fails. The pool
// statistics are included when pool is non-nil.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	if pool != nil {
		checks = append([]Check{{Name: "database", Pinger: pool}}, checks...)
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status, results := probe(ctx, checks)
		body := map[string]interface{}{
			"status": status,
			"checks": results,
		}
		if pool != nil {
			body["pool"] = GetPoolStats(pool)
		}
		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, body)
	}
}

func probe(ctx context.Context, checks []Check) (string, map[string]string) {
	status := "healthy"
	results := make(map[string]string, len(checks))
	for _, chk := range checks {
		if err := chk.Pinger.Ping(ctx); err != nil {
			results[chk.Name] = err.Error()
			status = "unhealthy"
			continue
		}
		results[chk.Name] = "ok"
	}
	return status, results
}
