// Package orchestrator drives per-category fetch/parse/merge cycles for a
// job: bounded deadlines, retries with backoff, partial-failure tolerance
// and duplicate-request suppression. Categories run in small concurrent
// batches and communicate only through the shared job record; every merge
// re-runs deduplication against the current accumulated set, so out-of-order
// completion never produces duplicate entries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventradar/eventradar/internal/daycache"
	"github.com/eventradar/eventradar/internal/dedup"
	"github.com/eventradar/eventradar/internal/jobstore"
	"github.com/eventradar/eventradar/internal/metrics"
	"github.com/eventradar/eventradar/internal/models"
	"github.com/eventradar/eventradar/internal/provider"
)

// Config holds orchestration parameters.
type Config struct {
	// BatchSize is how many categories run concurrently between pauses.
	BatchSize int

	// BatchPause is the wait between batches, the polite rate limit toward
	// providers.
	BatchPause time.Duration

	// CategoryTimeout bounds one category's whole fetch cycle, retries
	// included. Values below MinCategoryTimeout are raised to it.
	CategoryTimeout    time.Duration
	MinCategoryTimeout time.Duration

	Retry RetryPolicy
}

// DefaultConfig returns the standard orchestration parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:          3,
		BatchPause:         2 * time.Second,
		CategoryTimeout:    90 * time.Second,
		MinCategoryTimeout: 60 * time.Second,
		Retry:              DefaultRetryPolicy(),
	}
}

// Orchestrator composes the job store, the deduplicator and the day cache
// around an external provider adapter.
type Orchestrator struct {
	jobs    *jobstore.JobStore
	cache   *daycache.Cache
	adapter provider.Adapter
	dedup   dedup.Config
	metrics *metrics.Collector
	logger  *slog.Logger
	cfg     Config
}

// New creates an orchestrator.
func New(
	jobs *jobstore.JobStore,
	cache *daycache.Cache,
	adapter provider.Adapter,
	dedupCfg dedup.Config,
	collector *metrics.Collector,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.CategoryTimeout < cfg.MinCategoryTimeout {
		cfg.CategoryTimeout = cfg.MinCategoryTimeout
	}

	return &Orchestrator{
		jobs:    jobs,
		cache:   cache,
		adapter: adapter,
		dedup:   dedupCfg,
		metrics: collector,
		logger:  logger,
		cfg:     cfg,
	}
}

// Launch resolves the request against the active-job index and, when no
// in-flight job matches, creates one and starts processing it in the
// background. The returned flag reports whether an existing job was reused.
func (o *Orchestrator) Launch(ctx context.Context, city, date string, categories []string) (*models.JobRecord, bool, error) {
	job, reused, err := o.jobs.CreateOrReuse(ctx, city, date, categories)
	if err != nil {
		return nil, false, err
	}
	if reused {
		o.metrics.JobReused()
		return job, true, nil
	}

	// The job outlives the request; its lifetime is bounded by per-category
	// deadlines and store-level TTLs, not by the caller's context.
	go func() {
		if err := o.Run(context.Background(), job.ID); err != nil {
			o.logger.Error("job run failed", "job_id", job.ID, "error", err)
		}
	}()

	return job, false, nil
}

// Run processes every category of the job to a terminal state, then marks
// the job done and pushes the final deduplicated set into the day cache.
// It returns an error only when the job could not be attempted at all.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if o.adapter == nil {
		return o.failJob(ctx, jobID, "no provider adapter configured")
	}

	states := make(map[string]models.CategoryProgress, len(job.Categories))
	for _, cat := range job.Categories {
		states[cat] = models.CategoryProgress{State: models.CategoryNotStarted, UpdatedAt: time.Now()}
	}

	running := models.JobStatusRunning
	if _, err := o.jobs.UpdateJob(ctx, jobID, models.JobPatch{
		Status:         &running,
		Progress:       &models.Progress{TotalCategories: len(job.Categories)},
		CategoryStates: states,
	}); err != nil {
		return o.failJob(ctx, jobID, fmt.Sprintf("could not mark job running: %v", err))
	}

	o.logger.Info("job started",
		"job_id", jobID,
		"city", job.City,
		"date", job.Date,
		"categories", len(job.Categories),
	)

	for start := 0; start < len(job.Categories); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(job.Categories) {
			end = len(job.Categories)
		}

		var wg sync.WaitGroup
		for _, category := range job.Categories[start:end] {
			wg.Add(1)
			go func(cat string) {
				defer wg.Done()
				o.runCategory(ctx, job, cat)
			}(category)
		}
		wg.Wait()

		if end < len(job.Categories) && o.cfg.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.BatchPause):
			}
		}
	}

	return o.finishJob(ctx, jobID)
}

// runCategory takes one category from in-progress to a terminal state. A
// slow or broken category never blocks or fails the whole job.
func (o *Orchestrator) runCategory(ctx context.Context, job *models.JobRecord, category string) {
	o.setCategoryState(ctx, job.ID, category, models.CategoryProgress{
		State:     models.CategoryInProgress,
		UpdatedAt: time.Now(),
	})

	timeout := o.cfg.CategoryTimeout
	if timeout < o.cfg.MinCategoryTimeout {
		timeout = o.cfg.MinCategoryTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := provider.Request{City: job.City, Date: job.Date, Category: category}

	var result *provider.Result
	attempts, err := retry(cctx, o.cfg.Retry, func() error {
		var ferr error
		result, ferr = o.adapter.Fetch(cctx, req)
		return ferr
	})

	if err != nil {
		state := models.CategoryFailed
		if cctx.Err() != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			state = models.CategoryTimedOut
		}

		o.setCategoryState(ctx, job.ID, category, models.CategoryProgress{
			State:     state,
			Attempts:  attempts,
			Error:     err.Error(),
			UpdatedAt: time.Now(),
		})
		o.metrics.CategoryFinished(string(state))

		o.appendStep(ctx, job.ID, models.DiagnosticStep{
			Category: category,
			Message:  fmt.Sprintf("category %s after %d attempt(s): %v", state, attempts, err),
		})
		o.logger.Warn("category did not complete",
			"job_id", job.ID,
			"category", category,
			"state", state,
			"attempts", attempts,
			"error", err,
		)
		return
	}

	o.metrics.CandidatesParsed(len(result.Candidates))

	var merge dedup.MergeResult
	_, err = o.jobs.UpdateJobWith(ctx, job.ID, func(current *models.JobRecord) error {
		merge = dedup.DedupeWithEnrichment(result.Candidates, current.Events, o.dedup)
		current.Events = merge.Merged
		current.Progress.CompletedCategories++
		if current.CategoryStates == nil {
			current.CategoryStates = make(map[string]models.CategoryProgress)
		}
		current.CategoryStates[category] = models.CategoryProgress{
			State:      models.CategoryCompleted,
			Attempts:   attempts,
			EventCount: len(merge.Unique),
			UpdatedAt:  time.Now(),
		}
		return nil
	})
	if err != nil {
		// Store trouble is not a category failure; the events are lost for
		// this cycle but the next update retries the write path.
		o.logger.Error("failed to persist category result", "job_id", job.ID, "category", category, "error", err)
		return
	}

	o.metrics.CategoryFinished(string(models.CategoryCompleted))
	o.metrics.DuplicatesDropped(merge.DuplicateCount)
	o.metrics.EnrichmentsApplied(len(merge.Enrichments))

	o.appendStep(ctx, job.ID, models.DiagnosticStep{
		Category:      category,
		Message:       "category completed",
		QuerySummary:  result.QuerySummary,
		ParsedCount:   len(result.Candidates),
		UniqueCount:   len(merge.Unique),
		EnrichedCount: len(merge.Enrichments),
	})

	o.logger.Info("category completed",
		"job_id", job.ID,
		"category", category,
		"parsed", len(result.Candidates),
		"unique", len(merge.Unique),
		"enriched", len(merge.Enrichments),
		"duplicates", merge.DuplicateCount,
	)
}

// finishJob marks the job done and applies the adaptive TTL to the day
// bucket. Partial category failures still finish as done.
func (o *Orchestrator) finishJob(ctx context.Context, jobID string) error {
	done := models.JobStatusDone
	job, err := o.jobs.UpdateJob(ctx, jobID, models.JobPatch{Status: &done})
	if err != nil {
		return err
	}
	o.metrics.JobFinished(string(done))

	if len(job.Events) > 0 {
		if _, err := o.cache.Merge(ctx, job.City, job.Date, job.Events, time.Now()); err != nil {
			// Cache trouble does not demote a finished job.
			o.logger.Error("failed to cache job results", "job_id", jobID, "error", err)
		}
	}

	o.logger.Info("job done",
		"job_id", jobID,
		"events", len(job.Events),
		"completed_categories", job.Progress.CompletedCategories,
		"total_categories", job.Progress.TotalCategories,
	)
	return nil
}

// failJob moves a job straight to error. Reserved for jobs that could not
// be attempted at all.
func (o *Orchestrator) failJob(ctx context.Context, jobID, reason string) error {
	status := models.JobStatusError
	if _, err := o.jobs.UpdateJob(ctx, jobID, models.JobPatch{
		Status: &status,
		Error:  &reason,
	}); err != nil {
		o.logger.Error("failed to record job error", "job_id", jobID, "error", err)
	}
	o.metrics.JobFinished(string(status))
	return fmt.Errorf("job %s: %s", jobID, reason)
}

func (o *Orchestrator) setCategoryState(ctx context.Context, jobID, category string, cp models.CategoryProgress) {
	_, err := o.jobs.UpdateJobWith(ctx, jobID, func(job *models.JobRecord) error {
		if job.CategoryStates == nil {
			job.CategoryStates = make(map[string]models.CategoryProgress)
		}
		job.CategoryStates[category] = cp
		return nil
	})
	if err != nil {
		o.logger.Warn("failed to update category state",
			"job_id", jobID,
			"category", category,
			"state", cp.State,
			"error", err,
		)
	}
}

func (o *Orchestrator) appendStep(ctx context.Context, jobID string, step models.DiagnosticStep) {
	if err := o.jobs.AppendDiagnosticStep(ctx, jobID, step); err != nil {
		o.logger.Warn("failed to append diagnostic step", "job_id", jobID, "error", err)
	}
}
