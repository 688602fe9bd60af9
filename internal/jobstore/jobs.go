// Package jobstore persists long-running job records through the shared
// storage backend and maintains the short-TTL active-job index used for
// duplicate-request suppression.
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventradar/eventradar/internal/models"
	"github.com/eventradar/eventradar/internal/storage"
)

const jobKeyPrefix = "job:v1:"

// Config holds job persistence parameters.
type Config struct {
	// JobTTL bounds every job record's lifetime in the backend. Expired
	// records are garbage collected by the backend or the cleanup sweep.
	JobTTL time.Duration

	// ActiveJobTTL is the independent, short lifetime of active-job index
	// entries. It may elapse before or after the job record itself.
	ActiveJobTTL time.Duration
}

// DefaultConfig returns the standard lifetimes.
func DefaultConfig() Config {
	return Config{
		JobTTL:       24 * time.Hour,
		ActiveJobTTL: 10 * time.Minute,
	}
}

// JobStore reads and writes job records. Updates are expressed as merges so
// that fields omitted from a patch are never lost.
//
// Update calls for one job id are serialized through a per-key mutex, which
// makes progress counters monotonic within a single process. Across
// processes sharing a durable backend, concurrent writers updating the same
// field may still race; that limitation is accepted and documented rather
// than hidden.
type JobStore struct {
	backend storage.Backend
	cfg     Config
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a job store over the given backend.
func New(backend storage.Backend, cfg Config, logger *slog.Logger) *JobStore {
	return &JobStore{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *JobStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// SetJob writes a complete job record.
func (s *JobStore) SetJob(ctx context.Context, job *models.JobRecord) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	if err := s.backend.Set(ctx, jobKey(job.ID), raw, s.cfg.JobTTL); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the job record, or nil when it is absent or expired.
func (s *JobStore) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	raw, ok, err := s.backend.Get(ctx, jobKey(id))
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}

	var job models.JobRecord
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateJob applies a partial patch as a single get-merge-set operation.
// Fields omitted from the patch are preserved.
func (s *JobStore) UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.JobRecord, error) {
	return s.UpdateJobWith(ctx, id, func(job *models.JobRecord) error {
		job.Apply(patch, time.Now())
		return nil
	})
}

// UpdateJobWith runs fn against the current job record and persists the
// result, serialized per job id. It is the primitive every merge cycle goes
// through: re-reading the accumulated state before writing is what keeps
// out-of-order category completions from producing duplicates.
func (s *JobStore) UpdateJobWith(ctx context.Context, id string, fn func(*models.JobRecord) error) (*models.JobRecord, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job not found: %s", id)
	}

	if err := fn(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now()

	if err := s.SetJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// AppendDiagnosticStep adds an entry to the job's append-only audit trail.
func (s *JobStore) AppendDiagnosticStep(ctx context.Context, id string, step models.DiagnosticStep) error {
	if step.At.IsZero() {
		step.At = time.Now()
	}

	_, err := s.UpdateJobWith(ctx, id, func(job *models.JobRecord) error {
		job.Diagnostics = append(job.Diagnostics, step)
		return nil
	})
	return err
}

// DeleteJob removes the job record and its lock.
func (s *JobStore) DeleteJob(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, jobKey(id)); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// CleanupOldJobs sweeps job records whose last update is older than maxAge
// and returns the number removed. Records the backend already expired are
// not counted.
func (s *JobStore) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := s.backend.Keys(ctx, jobKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("enumerate jobs: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, key := range keys {
		id := key[len(jobKeyPrefix):]
		job, err := s.GetJob(ctx, id)
		if err != nil {
			s.logger.Warn("cleanup: failed to load job", "job_id", id, "error", err)
			continue
		}
		if job == nil || job.UpdatedAt.After(cutoff) {
			continue
		}

		if err := s.DeleteJob(ctx, id); err != nil {
			s.logger.Warn("cleanup: failed to delete job", "job_id", id, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("cleaned up old jobs", "removed", removed, "max_age", maxAge)
	}
	return removed, nil
}
