package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/eventradar/eventradar/internal/models"
)

func TestValidCandidates(t *testing.T) {
	req := Request{City: "vienna", Date: "2026-09-12", Category: "music"}

	candidates := []models.EventRecord{
		{Title: "Jazz Night"},                  // usable, fields inherited
		{Title: "  "},                          // blank title, dropped
		{Description: "no title at all"},       // dropped
		{Title: "Opera Gala", City: "Vienna"},  // keeps its own city
		{Title: "Late Show", Date: "2026-09-13"}, // keeps its own date
	}

	valid, dropped := ValidCandidates(candidates, req, "openai")

	if len(valid) != 3 {
		t.Fatalf("valid = %d, want 3", len(valid))
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	first := valid[0]
	if first.City != "vienna" || first.Date != "2026-09-12" || first.Category != "music" || first.Source != "openai" {
		t.Errorf("request defaults not inherited: %+v", first)
	}
	if valid[1].City != "Vienna" {
		t.Error("explicit city must not be overwritten")
	}
	if valid[2].Date != "2026-09-13" {
		t.Error("explicit date must not be overwritten")
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := &ProviderError{Provider: "openai", Err: errors.New("timeout"), Retryable: true}
	terminal := &ProviderError{Provider: "openai", Err: errors.New("bad prompt"), Retryable: false}

	if !IsRetryable(retryable) {
		t.Error("retryable provider error not recognized")
	}
	if IsRetryable(terminal) {
		t.Error("non-retryable provider error misclassified")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}

	// Wrapped errors still classify.
	wrapped := errors.Join(errors.New("outer"), retryable)
	if !IsRetryable(wrapped) {
		t.Error("wrapped retryable error not recognized")
	}
}

func TestIsConfiguration(t *testing.T) {
	if !IsConfiguration(&ConfigurationError{Provider: "openai", Reason: "no api key"}) {
		t.Error("configuration error not recognized")
	}
	if IsConfiguration(errors.New("plain")) {
		t.Error("plain error misclassified as configuration error")
	}
}

func TestMultiCombinesCandidates(t *testing.T) {
	a := NewMockAdapter()
	a.Script("music", MockResponse{Candidates: []models.EventRecord{{Title: "Jazz Night"}}})
	b := NewMockAdapter()
	b.Script("music", MockResponse{Candidates: []models.EventRecord{{Title: "Opera Gala"}}})

	multi := NewMulti(a, b)
	res, err := multi.Fetch(context.Background(), Request{City: "vienna", Date: "2026-09-12", Category: "music"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(res.Candidates))
	}
}

func TestMultiToleratesPartialFailure(t *testing.T) {
	failing := NewMockAdapter()
	failing.Script("music", MockResponse{Err: &ProviderError{Provider: "mock", Err: errors.New("down"), Retryable: true}})
	working := NewMockAdapter()
	working.Script("music", MockResponse{Candidates: []models.EventRecord{{Title: "Jazz Night"}}})

	multi := NewMulti(failing, working)
	res, err := multi.Fetch(context.Background(), Request{City: "vienna", Date: "2026-09-12", Category: "music"})
	if err != nil {
		t.Fatalf("one working adapter should suffice: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(res.Candidates))
	}
}

func TestMultiFailsWhenAllFail(t *testing.T) {
	failing := NewMockAdapter()
	failing.Script("music", MockResponse{Err: &ProviderError{Provider: "mock", Err: errors.New("down"), Retryable: true}})

	multi := NewMulti(failing)
	_, err := multi.Fetch(context.Background(), Request{Category: "music"})
	if err == nil {
		t.Fatal("expected error when every adapter fails")
	}
	if !IsRetryable(err) {
		t.Error("retryability of the last failure must propagate")
	}
}

func TestMockAdapterScriptOrder(t *testing.T) {
	mock := NewMockAdapter()
	mock.Script("music",
		MockResponse{Err: &ProviderError{Provider: "mock", Err: errors.New("flaky"), Retryable: true}},
		MockResponse{Candidates: []models.EventRecord{{Title: "Jazz Night"}}},
	)

	req := Request{City: "vienna", Date: "2026-09-12", Category: "music"}

	if _, err := mock.Fetch(context.Background(), req); err == nil {
		t.Fatal("first call should replay the scripted error")
	}
	res, err := mock.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(res.Candidates))
	}

	// Exhausted scripts repeat their last response.
	res, err = mock.Fetch(context.Background(), req)
	if err != nil || len(res.Candidates) != 1 {
		t.Errorf("script should repeat its last entry: res=%+v err=%v", res, err)
	}

	if mock.Calls("music") != 3 {
		t.Errorf("calls = %d, want 3", mock.Calls("music"))
	}
}
