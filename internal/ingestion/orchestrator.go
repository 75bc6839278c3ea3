package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/enums"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/metrics"
)

// Stage names used in logs and metrics.
const (
	stagePlatforms  = "platforms"
	stageGenres     = "genres"
	stageIngestion  = "ingestion"
	stageEnrichment = "enrichment"
)

// AlreadyRunningMessage is the refusal reported when a trigger loses the
// single-flight race.
const AlreadyRunningMessage = "pipeline already running"

// catalogStage is the catalog sync surface the orchestrator drives.
type catalogStage interface {
	SyncPlatforms(ctx context.Context) (int, error)
	IngestPlatforms(ctx context.Context, justWatchIDs []string, maxPages int) *Summary
	IngestAllActive(ctx context.Context, maxPages int) (*Summary, error)
}

// enrichmentStage is the enrichment surface the orchestrator drives.
type enrichmentStage interface {
	SyncGenres(ctx context.Context) (int, error)
	EnrichPending(ctx context.Context, limit int) (*EnrichmentResult, error)
}

// PipelineOptions selects which stages a pipeline run executes and how far
// each one goes.
type PipelineOptions struct {
	SyncPlatforms bool
	SyncGenres    bool
	IngestMovies  bool
	EnrichMovies  bool

	// PlatformIDs restricts ingestion to specific catalog platform ids.
	// Empty means every active platform.
	PlatformIDs []string
	MaxPages    int
	EnrichLimit int

	// Trigger labels the run source for metrics (cron, admin, bootstrap).
	Trigger string
}

// StageResult is one stage's slot in the pipeline result.
type StageResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// PipelineResult reports one pipeline run. Success reflects whether the run
// completed; individual stage failures are recorded in their slots without
// failing the run.
type PipelineResult struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`

	Platforms  *StageResult `json:"platforms,omitempty"`
	Genres     *StageResult `json:"genres,omitempty"`
	Ingestion  *StageResult `json:"ingestion,omitempty"`
	Enrichment *StageResult `json:"enrichment,omitempty"`

	IngestionSummary *Summary          `json:"ingestionSummary,omitempty"`
	EnrichmentResult *EnrichmentResult `json:"enrichmentResult,omitempty"`
}

// HasStageFailures reports whether any executed stage recorded a failure.
func (r *PipelineResult) HasStageFailures() bool {
	for _, stage := range []*StageResult{r.Platforms, r.Genres, r.Ingestion, r.Enrichment} {
		if stage != nil && !stage.Success {
			return true
		}
	}
	return false
}

// Status is the orchestrator's externally visible state.
type Status struct {
	IsRunning     bool            `json:"isRunning"`
	LastRunTime   *time.Time      `json:"lastRunTime,omitempty"`
	LastRunStatus enums.RunStatus `json:"lastRunStatus,omitempty"`
}

// Orchestrator serializes pipeline runs. Only one run may be in flight per
// process; a second trigger while running is refused, not queued.
type Orchestrator struct {
	catalog    catalogStage
	enrichment enrichmentStage
	logg       *logger.Logger
	metrics    *metrics.IngestionMetrics
	cfg        config.IngestionConfig

	mu            sync.Mutex
	running       bool
	lastRunTime   *time.Time
	lastRunStatus enums.RunStatus

	now func() time.Time
}

// OrchestratorParams wires the orchestrator dependencies.
type OrchestratorParams struct {
	Catalog    *CatalogService
	Enrichment *EnrichmentService
	Logger     *logger.Logger
	Metrics    *metrics.IngestionMetrics
	Config     config.IngestionConfig
}

// NewOrchestrator validates dependencies and builds the orchestrator.
func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog service required")
	}
	if params.Enrichment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "enrichment service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Orchestrator{
		catalog:    params.Catalog,
		enrichment: params.Enrichment,
		logg:       params.Logger,
		metrics:    params.Metrics,
		cfg:        params.Config,
		now:        time.Now,
	}, nil
}

// tryAcquire flips the running flag, reporting whether this caller won.
func (o *Orchestrator) tryAcquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) release(completed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	finished := o.now()
	o.lastRunTime = &finished
	if completed {
		o.lastRunStatus = enums.RunStatusSuccess
	} else {
		o.lastRunStatus = enums.RunStatusFailed
	}
}

// ExecutePipeline runs the selected stages in order. It never returns an
// error; refusals and stage failures are reported through the result so
// callers (cron, HTTP) can serialize it directly.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, opts PipelineOptions) *PipelineResult {
	if !o.tryAcquire() {
		o.logg.Warn(ctx, "pipeline trigger refused, a run is already in flight")
		return &PipelineResult{Success: false, Message: AlreadyRunningMessage}
	}

	started := o.now()
	result := &PipelineResult{}

	defer func() {
		result.Duration = o.now().Sub(started)
		o.release(result.Success)
		if result.Success {
			o.metrics.IncRunSuccess(opts.Trigger)
		} else {
			o.metrics.IncRunFailure(opts.Trigger)
		}
	}()

	o.logg.Info(ctx, "pipeline run starting")

	if opts.SyncPlatforms {
		result.Platforms = o.runStage(ctx, stagePlatforms, func(ctx context.Context) (int, error) {
			return o.catalog.SyncPlatforms(ctx)
		})
	}

	if opts.SyncGenres {
		result.Genres = o.runStage(ctx, stageGenres, func(ctx context.Context) (int, error) {
			return o.enrichment.SyncGenres(ctx)
		})
	}

	if opts.IngestMovies {
		result.Ingestion = o.runStage(ctx, stageIngestion, func(ctx context.Context) (int, error) {
			summary, err := o.ingestSummary(ctx, opts)
			if err != nil {
				return 0, err
			}
			result.IngestionSummary = summary
			return summary.TotalMovies, nil
		})
	}

	if opts.EnrichMovies {
		result.Enrichment = o.runStage(ctx, stageEnrichment, func(ctx context.Context) (int, error) {
			enriched, err := o.enrichment.EnrichPending(ctx, o.enrichLimit(opts))
			if err != nil {
				return 0, err
			}
			result.EnrichmentResult = enriched
			return enriched.Enriched, nil
		})
	}

	// A stage failure degrades the run without failing it; later stages
	// already had their chance to execute and the failure lives in its slot.
	// Only a run cut short by cancellation is marked failed.
	if err := ctx.Err(); err != nil {
		result.Message = "pipeline aborted: " + err.Error()
	} else {
		result.Success = true
	}

	o.logg.Info(o.logg.WithFields(ctx, map[string]any{
		"success":  result.Success,
		"duration": o.now().Sub(started).String(),
	}), "pipeline run finished")

	return result
}

func (o *Orchestrator) runStage(ctx context.Context, stage string, fn func(ctx context.Context) (int, error)) *StageResult {
	ctx = o.logg.WithStage(ctx, stage)
	started := o.now()

	count, err := fn(ctx)
	o.metrics.ObserveStage(stage, o.now().Sub(started))

	if err != nil {
		o.logg.Error(ctx, "pipeline stage failed", err)
		return &StageResult{Success: false, Error: err.Error()}
	}
	return &StageResult{Success: true, Count: count}
}

func (o *Orchestrator) ingestSummary(ctx context.Context, opts PipelineOptions) (*Summary, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = o.cfg.MaxPagesPerPlatform
	}
	if len(opts.PlatformIDs) > 0 {
		return o.catalog.IngestPlatforms(ctx, opts.PlatformIDs, maxPages), nil
	}
	return o.catalog.IngestAllActive(ctx, maxPages)
}

func (o *Orchestrator) enrichLimit(opts PipelineOptions) int {
	if opts.EnrichLimit > 0 {
		return opts.EnrichLimit
	}
	return o.cfg.EnrichLimit
}

// Bootstrap runs the full four-stage pipeline for a fresh database. When
// platformIDs is empty every active platform is ingested.
func (o *Orchestrator) Bootstrap(ctx context.Context, platformIDs []string) *PipelineResult {
	return o.ExecutePipeline(ctx, PipelineOptions{
		SyncPlatforms: true,
		SyncGenres:    true,
		IngestMovies:  true,
		EnrichMovies:  true,
		PlatformIDs:   platformIDs,
		MaxPages:      o.cfg.BootstrapMaxPages,
		EnrichLimit:   o.cfg.BootstrapEnrichLimit,
		Trigger:       "bootstrap",
	})
}

// UpdateCatalog runs the incremental refresh used by the scheduler: ingest
// plus enrich, skipping the platform and genre syncs.
func (o *Orchestrator) UpdateCatalog(ctx context.Context, trigger string) *PipelineResult {
	return o.ExecutePipeline(ctx, PipelineOptions{
		IngestMovies: true,
		EnrichMovies: true,
		MaxPages:     o.cfg.MaxPagesPerPlatform,
		EnrichLimit:  o.cfg.EnrichLimit,
		Trigger:      trigger,
	})
}

// GetStatus reports whether a run is in flight and how the last one ended.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		IsRunning:     o.running,
		LastRunTime:   o.lastRunTime,
		LastRunStatus: o.lastRunStatus,
	}
}
