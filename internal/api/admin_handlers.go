package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eventradar/eventradar/internal/jobstore"
	"github.com/eventradar/eventradar/internal/storage"
	"log/slog"
)

// Purger is implemented by backends that can drop expired rows eagerly.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// AdminHandler handles administrative maintenance requests
type AdminHandler struct {
	jobs      *jobstore.JobStore
	backend   storage.Backend
	maxJobAge time.Duration
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(jobs *jobstore.JobStore, backend storage.Backend, maxJobAge time.Duration, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		jobs:      jobs,
		backend:   backend,
		maxJobAge: maxJobAge,
		logger:    logger,
	}
}

// CleanupResponse reports what a cleanup pass removed
type CleanupResponse struct {
	JobsRemoved    int `json:"jobs_removed"`
	ExpiredRemoved int `json:"expired_removed"`
}

// Cleanup handles POST /api/admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed, err := h.jobs.CleanupOldJobs(r.Context(), h.maxJobAge)
	if err != nil {
		h.logger.Error("job cleanup failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := CleanupResponse{JobsRemoved: removed}
	if purger, ok := h.backend.(Purger); ok {
		purged, err := purger.Purge(r.Context())
		if err != nil {
			h.logger.Warn("expired-row purge failed", "error", err)
		} else {
			resp.ExpiredRemoved = int(purged)
		}
	}

	h.logger.Info("manual cleanup completed", "jobs_removed", resp.JobsRemoved, "expired_removed", resp.ExpiredRemoved)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// StatsResponse summarizes what the store currently holds
type StatsResponse struct {
	Jobs       int `json:"jobs"`
	ActiveJobs int `json:"active_jobs"`
	DayBuckets int `json:"day_buckets"`
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatsResponse{}
	counts := []struct {
		prefix string
		dest   *int
	}{
		{"job:", &resp.Jobs},
		{"activejob:", &resp.ActiveJobs},
		{"daybucket:", &resp.DayBuckets},
	}
	for _, c := range counts {
		keys, err := h.backend.Keys(r.Context(), c.prefix)
		if err != nil {
			h.logger.Error("failed to list keys for stats", "prefix", c.prefix, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		*c.dest = len(keys)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
