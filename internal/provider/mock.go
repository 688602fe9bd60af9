package provider

import (
	"context"
	"sync"
	"time"

	"github.com/eventradar/eventradar/internal/models"
)

// MockResponse scripts one Fetch outcome for a category.
type MockResponse struct {
	Candidates []models.EventRecord
	Err        error
	Delay      time.Duration
}

// MockAdapter is a scriptable provider for tests and local development.
// Responses are keyed by category and consumed in order, so flaky behavior
// (fail once, then succeed) can be simulated per category.
type MockAdapter struct {
	mu        sync.Mutex
	responses map[string][]MockResponse
	calls     map[string]int
}

// NewMockAdapter creates an empty mock provider.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses: make(map[string][]MockResponse),
		calls:     make(map[string]int),
	}
}

// Script appends responses for a category, returned one per Fetch call. The
// last response repeats once the script is exhausted.
func (m *MockAdapter) Script(category string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[category] = append(m.responses[category], responses...)
}

// Calls returns how many times a category has been fetched.
func (m *MockAdapter) Calls(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[category]
}

// Name identifies the provider.
func (m *MockAdapter) Name() string {
	return "mock"
}

// Fetch replays the scripted response for the request's category.
func (m *MockAdapter) Fetch(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	script := m.responses[req.Category]
	idx := m.calls[req.Category]
	m.calls[req.Category]++
	if idx >= len(script) {
		idx = len(script) - 1
	}
	m.mu.Unlock()

	if idx < 0 {
		return &Result{QuerySummary: "mock: nothing scripted"}, nil
	}

	resp := script[idx]
	if resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &ProviderError{Provider: m.Name(), Err: ctx.Err(), Retryable: false}
		case <-time.After(resp.Delay):
		}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}

	valid, _ := ValidCandidates(resp.Candidates, req, m.Name())
	return &Result{
		QuerySummary: "mock response",
		Candidates:   valid,
	}, nil
}

var _ Adapter = (*MockAdapter)(nil)
