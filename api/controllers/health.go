package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/streamatlas/streamatlas-backend/api/responses"
	"github.com/streamatlas/streamatlas-backend/internal/ingestion"
	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/redis"
)

const healthCheckTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StreamAtlas-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each dependency and reports per-component status. The
// endpoint answers 200 even when degraded; orchestration reads the body.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		components := map[string]string{
			"database": pingStatus(ctx, dbP),
			"redis":    pingStatus(ctx, redisP),
		}

		status := "ready"
		for _, componentStatus := range components {
			if componentStatus != "ok" {
				status = "degraded"
				if logg != nil {
					logg.Warn(r.Context(), "readiness check degraded")
				}
				break
			}
		}

		w.Header().Set("X-StreamAtlas-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]any{
			"status":     status,
			"components": components,
		})
	}
}

// runStatusReporter is the slice of the orchestrator the detailed health
// endpoint reads.
type runStatusReporter interface {
	GetStatus() ingestion.Status
}

// HealthDetailed adds the ingestion schedule and last-run outcome to the
// readiness components.
func HealthDetailed(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, reporter runStatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		components := map[string]string{
			"database": pingStatus(ctx, dbP),
			"redis":    pingStatus(ctx, redisP),
		}

		status := "ready"
		for _, componentStatus := range components {
			if componentStatus != "ok" {
				status = "degraded"
				break
			}
		}

		ingestionInfo := map[string]any{"schedule": cfg.Ingestion.CronSchedule}
		if reporter != nil {
			ingestionInfo["run"] = reporter.GetStatus()
		}

		payload := map[string]any{
			"status":     status,
			"components": components,
			"ingestion":  ingestionInfo,
		}

		w.Header().Set("X-StreamAtlas-Env", cfg.App.Env)
		responses.WriteSuccess(w, payload)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func pingStatus(ctx context.Context, p pinger) string {
	if p == nil {
		return "not configured"
	}
	if err := p.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
