package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/streamatlas/streamatlas-backend/internal/ingestion"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
)

const statusSnapshotTTL = 48 * time.Hour

// pipelineRunner is the orchestrator surface the job drives.
type pipelineRunner interface {
	UpdateCatalog(ctx context.Context, trigger string) *ingestion.PipelineResult
	GetStatus() ingestion.Status
}

// statusStore publishes run snapshots for other processes to read.
type statusStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CatalogUpdateJobParams configures the scheduled catalog refresh.
type CatalogUpdateJobParams struct {
	Logger       *logger.Logger
	Orchestrator pipelineRunner

	// Status and StatusKey are optional; when set, each run's result is
	// published so the API process can serve it without sharing memory.
	Status    statusStore
	StatusKey string
}

type catalogUpdateJob struct {
	logg         *logger.Logger
	orchestrator pipelineRunner
	status       statusStore
	statusKey    string
}

// NewCatalogUpdateJob constructs the scheduled catalog refresh job.
func NewCatalogUpdateJob(params CatalogUpdateJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	return &catalogUpdateJob{
		logg:         params.Logger,
		orchestrator: params.Orchestrator,
		status:       params.Status,
		statusKey:    params.StatusKey,
	}, nil
}

func (j *catalogUpdateJob) Name() string { return "catalog-update" }

func (j *catalogUpdateJob) Run(ctx context.Context) error {
	result := j.orchestrator.UpdateCatalog(ctx, "cron")
	j.publishSnapshot(ctx, result)

	// An overlapping manual trigger is not a job failure; the next firing
	// will pick up where it left off.
	if result.Message == ingestion.AlreadyRunningMessage {
		j.logg.Info(j.logg.WithField(ctx, "reason", result.Message), "catalog refresh skipped")
		return nil
	}
	if !result.Success {
		return fmt.Errorf("catalog refresh aborted: %s", result.Message)
	}

	// A completed run still reports success with per-stage failures in their
	// slots; surface those so the scheduler counts the cycle as failed.
	return multierr.Combine(stageErrors(result)...)
}

func stageErrors(result *ingestion.PipelineResult) []error {
	stages := map[string]*ingestion.StageResult{
		"ingestion":  result.Ingestion,
		"enrichment": result.Enrichment,
		"platforms":  result.Platforms,
		"genres":     result.Genres,
	}
	var errs []error
	for name, stage := range stages {
		if stage != nil && !stage.Success {
			errs = append(errs, fmt.Errorf("stage %s: %s", name, stage.Error))
		}
	}
	return errs
}

func (j *catalogUpdateJob) publishSnapshot(ctx context.Context, result *ingestion.PipelineResult) {
	if j.status == nil || j.statusKey == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		j.logg.Error(ctx, "marshal run snapshot", err)
		return
	}
	if err := j.status.Set(ctx, j.statusKey, payload, statusSnapshotTTL); err != nil {
		j.logg.Error(ctx, "publish run snapshot", err)
	}
}
