package jobstore

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/eventradar/eventradar/internal/models"
	"github.com/eventradar/eventradar/internal/storage"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() (*JobStore, *storage.MemoryBackend) {
	backend := storage.NewMemoryBackend()
	return New(backend, DefaultConfig(), testLogger()), backend
}

func TestSetAndGetJob(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	job := &models.JobRecord{
		ID:         "job-1",
		City:       "vienna",
		Date:       "2026-09-12",
		Categories: []string{"music", "theatre"},
		Status:     models.JobStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := store.SetJob(ctx, job); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	loaded, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if loaded == nil || loaded.City != "vienna" || len(loaded.Categories) != 2 {
		t.Errorf("unexpected job: %+v", loaded)
	}
}

func TestGetJobMissing(t *testing.T) {
	store, _ := newTestStore()

	job, err := store.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Error("expected nil for missing job")
	}
}

func TestUpdateJobPreservesOmittedFields(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	job := &models.JobRecord{
		ID:     "job-1",
		City:   "vienna",
		Date:   "2026-09-12",
		Status: models.JobStatusRunning,
		Events: []models.EventRecord{{Title: "Jazz Night", Date: "2026-09-12"}},
		Progress: models.Progress{
			CompletedCategories: 1,
			TotalCategories:     3,
		},
	}
	if err := store.SetJob(ctx, job); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	status := models.JobStatusDone
	updated, err := store.UpdateJob(ctx, "job-1", models.JobPatch{Status: &status})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	if updated.Status != models.JobStatusDone {
		t.Errorf("status not applied: %v", updated.Status)
	}
	if len(updated.Events) != 1 {
		t.Error("events lost by a status-only patch")
	}
	if updated.Progress.CompletedCategories != 1 || updated.Progress.TotalCategories != 3 {
		t.Errorf("progress lost by a status-only patch: %+v", updated.Progress)
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	store, _ := newTestStore()

	status := models.JobStatusDone
	if _, err := store.UpdateJob(context.Background(), "ghost", models.JobPatch{Status: &status}); err == nil {
		t.Error("expected error updating a missing job")
	}
}

func TestUpdateJobWithConcurrentProgress(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	job := &models.JobRecord{
		ID:       "job-1",
		Status:   models.JobStatusRunning,
		Progress: models.Progress{TotalCategories: 20},
	}
	if err := store.SetJob(ctx, job); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateJobWith(ctx, "job-1", func(j *models.JobRecord) error {
				j.Progress.CompletedCategories++
				return nil
			})
			if err != nil {
				t.Errorf("UpdateJobWith: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if final.Progress.CompletedCategories != 20 {
		t.Errorf("lost updates: completed = %d, want 20", final.Progress.CompletedCategories)
	}
}

func TestAppendDiagnosticStep(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.SetJob(ctx, &models.JobRecord{ID: "job-1"}); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	for _, msg := range []string{"started", "category music done"} {
		if err := store.AppendDiagnosticStep(ctx, "job-1", models.DiagnosticStep{Message: msg}); err != nil {
			t.Fatalf("AppendDiagnosticStep: %v", err)
		}
	}

	job, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if len(job.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostic steps, got %d", len(job.Diagnostics))
	}
	if job.Diagnostics[0].Message != "started" || job.Diagnostics[1].Message != "category music done" {
		t.Errorf("steps out of order: %+v", job.Diagnostics)
	}
	if job.Diagnostics[0].At.IsZero() {
		t.Error("step timestamp should default to now")
	}
}

func TestCleanupOldJobs(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	old := &models.JobRecord{ID: "old", UpdatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &models.JobRecord{ID: "fresh", UpdatedAt: time.Now()}
	for _, j := range []*models.JobRecord{old, fresh} {
		if err := store.SetJob(ctx, j); err != nil {
			t.Fatalf("SetJob: %v", err)
		}
	}

	removed, err := store.CleanupOldJobs(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldJobs: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if job, _ := store.GetJob(ctx, "old"); job != nil {
		t.Error("old job should be gone")
	}
	if job, _ := store.GetJob(ctx, "fresh"); job == nil {
		t.Error("fresh job should survive")
	}
}
