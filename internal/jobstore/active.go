package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventradar/eventradar/internal/models"
)

const activeKeyPrefix = "activejob:v1:"

func activeKey(fingerprint string) string {
	return activeKeyPrefix + fingerprint
}

// SetActiveJob registers a fingerprint -> job id mapping with its own short
// TTL, independent of the job record's lifetime.
func (s *JobStore) SetActiveJob(ctx context.Context, fingerprint, jobID string, ttl time.Duration) error {
	if err := s.backend.Set(ctx, activeKey(fingerprint), []byte(jobID), ttl); err != nil {
		return fmt.Errorf("store active job %s: %w", fingerprint, err)
	}
	return nil
}

// GetActiveJob resolves a fingerprint to an in-flight job id. The boolean is
// false when no unexpired entry exists.
func (s *JobStore) GetActiveJob(ctx context.Context, fingerprint string) (string, bool, error) {
	raw, ok, err := s.backend.Get(ctx, activeKey(fingerprint))
	if err != nil {
		return "", false, fmt.Errorf("load active job %s: %w", fingerprint, err)
	}
	if !ok {
		return "", false, nil
	}
	return string(raw), true, nil
}

// DeleteActiveJob removes a fingerprint entry.
func (s *JobStore) DeleteActiveJob(ctx context.Context, fingerprint string) error {
	if err := s.backend.Delete(ctx, activeKey(fingerprint)); err != nil {
		return fmt.Errorf("delete active job %s: %w", fingerprint, err)
	}
	return nil
}

// CreateOrReuse implements the job reuse protocol. When an unexpired
// active-job entry exists for the request fingerprint, the existing job is
// returned and no new one is created; this is what prevents a refreshed or
// duplicate request from spawning a second pipeline whose results the
// caller would see split across two jobs. Otherwise a new pending job is
// persisted and registered in the active-job index.
func (s *JobStore) CreateOrReuse(ctx context.Context, city, date string, categories []string) (*models.JobRecord, bool, error) {
	fingerprint := models.Fingerprint(city, date, categories)

	if existingID, ok, err := s.GetActiveJob(ctx, fingerprint); err != nil {
		// The index is an optimization, not a correctness requirement: when
		// the backend is unreachable we fall through and create a new job.
		s.logger.Warn("active job lookup failed", "fingerprint", fingerprint, "error", err)
	} else if ok {
		job, err := s.GetJob(ctx, existingID)
		if err != nil {
			return nil, false, err
		}
		if job != nil {
			s.logger.Info("reusing active job",
				"job_id", job.ID,
				"fingerprint", fingerprint,
				"status", job.Status,
			)
			return job, true, nil
		}
		// Index points at a job the backend already expired; drop it.
		if err := s.DeleteActiveJob(ctx, fingerprint); err != nil {
			s.logger.Warn("failed to drop stale active job entry", "fingerprint", fingerprint, "error", err)
		}
	}

	now := time.Now()
	job := &models.JobRecord{
		ID:         uuid.NewString(),
		City:       city,
		Date:       date,
		Categories: categories,
		Status:     models.JobStatusPending,
		Progress: models.Progress{
			TotalCategories: len(categories),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.SetJob(ctx, job); err != nil {
		return nil, false, err
	}

	if err := s.SetActiveJob(ctx, fingerprint, job.ID, s.cfg.ActiveJobTTL); err != nil {
		s.logger.Warn("failed to register active job", "job_id", job.ID, "error", err)
	}

	return job, false, nil
}
