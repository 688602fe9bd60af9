package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventradar/eventradar/internal/auth"
	"github.com/eventradar/eventradar/internal/cityconfig"
	"github.com/eventradar/eventradar/internal/daycache"
	"github.com/eventradar/eventradar/internal/dedup"
	"github.com/eventradar/eventradar/internal/jobstore"
	"github.com/eventradar/eventradar/internal/metrics"
	"github.com/eventradar/eventradar/internal/models"
	"github.com/eventradar/eventradar/internal/orchestrator"
	"github.com/eventradar/eventradar/internal/provider"
	"github.com/eventradar/eventradar/internal/storage"
	"log/slog"
)

type testEnv struct {
	mux     *http.ServeMux
	jobs    *jobstore.JobStore
	cache   *daycache.Cache
	adapter *provider.MockAdapter
	backend *storage.MemoryBackend
	auth    auth.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := storage.NewMemoryBackend()
	jobs := jobstore.New(backend, jobstore.DefaultConfig(), logger)
	cache := daycache.New(backend, daycache.DefaultConfig(), dedup.DefaultConfig(), logger)
	adapter := provider.NewMockAdapter()

	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("metrics.NewCollector: %v", err)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.BatchPause = 0
	orchCfg.MinCategoryTimeout = 10 * time.Millisecond
	orchCfg.CategoryTimeout = time.Second
	orch := orchestrator.New(jobs, cache, adapter, dedup.DefaultConfig(), collector, logger, orchCfg)

	authCfg := auth.Config{
		JWTSecret:     "test-secret",
		AdminPassword: "test-password",
		TokenDuration: time.Hour,
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, orch, jobs, cache, cityconfig.NewStaticProvider(), backend, collector, authCfg, 24*time.Hour, logger)

	return &testEnv{mux: mux, jobs: jobs, cache: cache, adapter: adapter, backend: backend, auth: authCfg}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestSearchHandler(t *testing.T) {
	env := newTestEnv(t)
	env.adapter.Script("music", provider.MockResponse{Candidates: []models.EventRecord{
		{Title: "Jazz Night", Date: "2026-09-12", Time: "20:00"},
	}})

	rec := env.do(t, http.MethodPost, "/api/search", `{"city":"Wien","date":"2026-09-12","categories":["music"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.Reused {
		t.Errorf("unexpected response: %+v", resp)
	}

	// The alias resolves to the canonical city, so an identical request for
	// "vienna" reuses the same job.
	rec = env.do(t, http.MethodPost, "/api/search", `{"city":"vienna","date":"2026-09-12","categories":["music"]}`)
	var second SearchResponse
	json.NewDecoder(rec.Body).Decode(&second)
	if !second.Reused || second.JobID != resp.JobID {
		t.Errorf("alias request should reuse job %s: %+v", resp.JobID, second)
	}

	waitForJob(t, env, resp.JobID)
}

func TestSearchHandlerValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing city", `{"date":"2026-09-12","categories":["music"]}`},
		{"missing date", `{"city":"vienna","categories":["music"]}`},
		{"bad date", `{"city":"vienna","date":"12.09.2026","categories":["music"]}`},
		{"no categories", `{"city":"vienna","date":"2026-09-12","categories":[]}`},
		{"blank categories", `{"city":"vienna","date":"2026-09-12","categories":["  "]}`},
		{"not json", `city=vienna`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/search", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	if rec := env.do(t, http.MethodGet, "/api/search", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestGetJobHandler(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := &models.JobRecord{
		ID:         "job-1",
		City:       "vienna",
		Date:       "2026-09-12",
		Categories: []string{"music"},
		Status:     models.JobStatusDone,
		Events:     []models.EventRecord{{Title: "Jazz Night", Date: "2026-09-12"}},
		Progress:   models.Progress{CompletedCategories: 1, TotalCategories: 1},
		Diagnostics: []models.DiagnosticStep{
			{Message: "category completed", Category: "music"},
		},
	}
	if err := env.jobs.SetJob(ctx, job); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/jobs/job-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != models.JobStatusDone || len(resp.Events) != 1 {
		t.Errorf("unexpected snapshot: %+v", resp)
	}
	if len(resp.Diagnostics) != 0 {
		t.Error("diagnostics are opt-in")
	}

	rec = env.do(t, http.MethodGet, "/api/jobs/job-1?diagnostics=true", "")
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Diagnostics) != 1 {
		t.Errorf("diagnostics requested but missing: %+v", resp)
	}
}

func TestGetJobHandlerNotFound(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/jobs/ghost", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/jobs/", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status without id = %d, want 400", rec.Code)
	}
}

func TestGetEventsHandler(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A future day keeps the cached records valid at read time.
	date := time.Now().UTC().Add(48 * time.Hour).Format("2006-01-02")
	events := []models.EventRecord{
		{Title: "Jazz Night", Category: "music", City: "vienna", Date: date, Time: "20:00"},
	}
	if _, err := env.cache.Merge(ctx, "vienna", date, events, time.Now()); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/events?city=Wien&date="+date+"&categories=music,theatre", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp EventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Events["music"]) != 1 {
		t.Errorf("unexpected events: %+v", resp)
	}
	if len(resp.MissingCategories) != 1 || resp.MissingCategories[0] != "theatre" {
		t.Errorf("missing categories = %v, want [theatre]", resp.MissingCategories)
	}
}

func TestGetEventsHandlerValidation(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/events?date=2026-09-12", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing city: status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/events?city=vienna&date=tomorrow", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d, want 400", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestLoginAndAdminAccess(t *testing.T) {
	env := newTestEnv(t)

	// Wrong password is rejected.
	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"password":"test-password"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, want 200", rec.Code)
	}
	var login LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if login.Token == "" {
		t.Fatal("expected a token")
	}

	// Admin endpoints reject anonymous requests.
	if rec := env.do(t, http.MethodGet, "/api/admin/stats", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous stats: status = %d, want 401", rec.Code)
	}

	// And accept the issued token.
	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authorized stats: status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var stats StatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
}

func TestAdminCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.jobs.SetJob(ctx, &models.JobRecord{ID: "old", UpdatedAt: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	token, err := auth.GenerateToken("admin", env.auth.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/cleanup", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp CleanupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobsRemoved != 1 {
		t.Errorf("jobs removed = %d, want 1", resp.JobsRemoved)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func waitForJob(t *testing.T, env *testEnv, jobID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := env.jobs.GetJob(context.Background(), jobID)
		if job != nil && (job.Status == models.JobStatusDone || job.Status == models.JobStatusError) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
}
