package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/streamatlas/streamatlas-backend/api/responses"
	"github.com/streamatlas/streamatlas-backend/api/validators"
	"github.com/streamatlas/streamatlas-backend/internal/ingestion"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
)

// PipelineTrigger is the orchestrator surface the admin endpoints drive.
type PipelineTrigger interface {
	UpdateCatalog(ctx context.Context, trigger string) *ingestion.PipelineResult
	Bootstrap(ctx context.Context, platformIDs []string) *ingestion.PipelineResult
	GetStatus() ingestion.Status
}

// TriggerUpdate kicks off an incremental catalog refresh and answers
// immediately; the run continues in the background and its outcome is
// readable from the status endpoint.
func TriggerUpdate(orchestrator PipelineTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orchestrator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator unavailable"))
			return
		}
		if orchestrator.GetStatus().IsRunning {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "pipeline already running"))
			return
		}

		runCtx := context.WithoutCancel(r.Context())
		go func() {
			result := orchestrator.UpdateCatalog(runCtx, "admin")
			if logg != nil && (!result.Success || result.HasStageFailures()) {
				logg.Warn(logg.WithField(runCtx, "message", result.Message), "admin-triggered refresh did not complete cleanly")
			}
		}()

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"started": true})
	}
}

type bootstrapRequest struct {
	PlatformIDs []string `json:"platformIds" validate:"omitempty,max=100,dive,required,max=64"`
}

// TriggerBootstrap kicks off the full four-stage pipeline in the background.
func TriggerBootstrap(orchestrator PipelineTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orchestrator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator unavailable"))
			return
		}

		var req bootstrapRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if orchestrator.GetStatus().IsRunning {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "pipeline already running"))
			return
		}

		runCtx := context.WithoutCancel(r.Context())
		go func() {
			result := orchestrator.Bootstrap(runCtx, req.PlatformIDs)
			if logg != nil && (!result.Success || result.HasStageFailures()) {
				logg.Warn(logg.WithField(runCtx, "message", result.Message), "bootstrap did not complete cleanly")
			}
		}()

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"started": true})
	}
}

// IngestionStatus reports the worker schedule plus whether a pipeline run is
// in flight and how the last one ended.
func IngestionStatus(orchestrator PipelineTrigger, schedule string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orchestrator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator unavailable"))
			return
		}
		status := orchestrator.GetStatus()
		responses.WriteSuccess(w, map[string]any{
			"isScheduled":        schedule != "",
			"cronSchedule":       schedule,
			"isRunning":          status.IsRunning,
			"orchestratorStatus": status,
		})
	}
}
