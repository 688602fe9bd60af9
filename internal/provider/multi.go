package provider

import (
	"context"
	"fmt"
	"strings"
)

// Multi fans one request out to several adapters and concatenates their
// candidates. A single adapter failing is tolerated as long as at least one
// succeeds; the orchestrator's deduplication makes the combined set safe.
type Multi struct {
	adapters []Adapter
}

// NewMulti combines adapters into one. The order determines concatenation
// order, which matters only for which duplicate "wins" downstream.
func NewMulti(adapters ...Adapter) *Multi {
	return &Multi{adapters: adapters}
}

// Name lists the combined provider names.
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.adapters))
	for _, a := range m.adapters {
		names = append(names, a.Name())
	}
	return strings.Join(names, "+")
}

// Fetch queries every adapter in order. It fails only when all of them do,
// propagating the last error (retryable when any failure was).
func (m *Multi) Fetch(ctx context.Context, req Request) (*Result, error) {
	if len(m.adapters) == 0 {
		return nil, &ConfigurationError{Provider: "multi", Reason: "no adapters configured"}
	}

	combined := &Result{}
	var summaries []string
	var lastErr error
	succeeded := 0

	for _, adapter := range m.adapters {
		res, err := adapter.Fetch(ctx, req)
		if err != nil {
			lastErr = err
			summaries = append(summaries, fmt.Sprintf("%s: %v", adapter.Name(), err))
			continue
		}
		succeeded++
		combined.Candidates = append(combined.Candidates, res.Candidates...)
		if res.QuerySummary != "" {
			summaries = append(summaries, res.QuerySummary)
		}
	}

	if succeeded == 0 {
		return nil, lastErr
	}

	combined.QuerySummary = strings.Join(summaries, "; ")
	return combined, nil
}

var _ Adapter = (*Multi)(nil)
