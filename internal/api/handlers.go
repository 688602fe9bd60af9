package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/eventradar/eventradar/internal/cityconfig"
	"github.com/eventradar/eventradar/internal/daycache"
	"github.com/eventradar/eventradar/internal/jobstore"
	"github.com/eventradar/eventradar/internal/metrics"
	"github.com/eventradar/eventradar/internal/models"
	"github.com/eventradar/eventradar/internal/orchestrator"
	"log/slog"
)

type Handler struct {
	orch      *orchestrator.Orchestrator
	jobs      *jobstore.JobStore
	cache     *daycache.Cache
	cities    cityconfig.Provider
	metrics   *metrics.Collector
	logger    *slog.Logger
	startTime time.Time
}

func NewHandler(orch *orchestrator.Orchestrator, jobs *jobstore.JobStore, cache *daycache.Cache, cities cityconfig.Provider, collector *metrics.Collector, logger *slog.Logger) *Handler {
	return &Handler{
		orch:      orch,
		jobs:      jobs,
		cache:     cache,
		cities:    cities,
		metrics:   collector,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SearchRequest represents a search request body
type SearchRequest struct {
	City       string   `json:"city"`
	Date       string   `json:"date"`
	Categories []string `json:"categories"`
}

// SearchResponse is returned when a search job is accepted
type SearchResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Reused bool   `json:"reused"`
}

// SearchHandler handles POST /api/search
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateSearchRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	city := req.City
	if h.cities != nil {
		city = h.cities.ResolveCity(city)
	}

	job, reused, err := h.orch.Launch(r.Context(), city, req.Date, req.Categories)
	if err != nil {
		h.logger.Error("failed to launch search job", "city", req.City, "date", req.Date, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SearchResponse{
		JobID:  job.ID,
		Status: string(job.Status),
		Reused: reused,
	})
}

// JobResponse is a point-in-time snapshot of a job
type JobResponse struct {
	ID             string                             `json:"id"`
	Status         models.JobStatus                   `json:"status"`
	City           string                             `json:"city"`
	Date           string                             `json:"date"`
	Categories     []string                           `json:"categories"`
	Progress       models.Progress                    `json:"progress"`
	CategoryStates map[string]models.CategoryProgress `json:"category_states,omitempty"`
	Events         []models.EventRecord               `json:"events,omitempty"`
	Error          string                             `json:"error,omitempty"`
	Diagnostics    []models.DiagnosticStep            `json:"diagnostics,omitempty"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
}

// GetJobHandler handles GET /api/jobs/:id
func (h *Handler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[3]

	includeDiagnostics := r.URL.Query().Get("diagnostics") == "true"

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error("failed to get job", "id", jobID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	resp := JobResponse{
		ID:             job.ID,
		Status:         job.Status,
		City:           job.City,
		Date:           job.Date,
		Categories:     job.Categories,
		Progress:       job.Progress,
		CategoryStates: job.CategoryStates,
		Events:         job.Events,
		Error:          job.Error,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if includeDiagnostics {
		resp.Diagnostics = job.Diagnostics
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// EventsResponse is returned by the cached-events lookup
type EventsResponse struct {
	City              string                          `json:"city"`
	Date              string                          `json:"date"`
	Events            map[string][]models.EventRecord `json:"events"`
	MissingCategories []string                        `json:"missing_categories,omitempty"`
	Count             int                             `json:"count"`
}

// GetEventsHandler handles GET /api/events
func (h *Handler) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	city := strings.TrimSpace(r.URL.Query().Get("city"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if city == "" || date == "" {
		http.Error(w, "city and date query parameters are required", http.StatusBadRequest)
		return
	}
	if !validDate(date) {
		http.Error(w, "date must be in YYYY-MM-DD format", http.StatusBadRequest)
		return
	}
	if h.cities != nil {
		city = h.cities.ResolveCity(city)
	}

	var categories []string
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}

	day, err := h.cache.GetByCategories(r.Context(), city, date, categories)
	if err != nil {
		h.logger.Error("cache lookup failed", "city", city, "date", date, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	hit := day != nil && len(day.Events) > 0
	if h.metrics != nil {
		h.metrics.CacheLookup(hit)
	}

	resp := EventsResponse{
		City:   city,
		Date:   date,
		Events: map[string][]models.EventRecord{},
	}
	if day != nil {
		resp.Events = day.Events
		resp.MissingCategories = day.MissingCategories
		for _, evs := range day.Events {
			resp.Count += len(evs)
		}
	} else if len(categories) > 0 {
		resp.MissingCategories = categories
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// HealthHandler handles GET /healthz
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
