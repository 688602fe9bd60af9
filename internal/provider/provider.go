// Package provider defines the adapter contract the orchestrator consumes
// and the provider implementations behind it: an AI query provider and an
// RSS feed provider. Prompt construction and parsing details stay inside
// each adapter; the orchestrator only sees candidates and errors.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventradar/eventradar/internal/models"
)

// Request identifies one fetch: events for a single city, date and category.
type Request struct {
	City     string
	Date     string // YYYY-MM-DD
	Category string
}

// Result is the raw outcome of one provider call: a summary of what was
// asked and answered (kept for the job's diagnostic trail) plus parsed
// candidate records.
type Result struct {
	QuerySummary string
	Candidates   []models.EventRecord
}

// Adapter is the contract every event provider implements.
type Adapter interface {
	// Name identifies the provider and tags its records' provenance.
	Name() string

	// Fetch retrieves candidate events for the request. Network and parse
	// failures surface as *ProviderError so callers can decide on retry.
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// ProviderError wraps a failure from a provider call. Retryable failures
// (network errors, non-success responses) are retried at category
// granularity; they never abort a whole job.
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// ConfigurationError indicates a provider cannot be used at all (missing or
// invalid credentials). It is fatal at job level.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s misconfigured: %s", e.Provider, e.Reason)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ValidCandidates filters out candidate records missing all usable fields.
// A dropped candidate is never fatal; the count of dropped records is
// returned for diagnostics.
func ValidCandidates(candidates []models.EventRecord, req Request, source string) ([]models.EventRecord, int) {
	valid := make([]models.EventRecord, 0, len(candidates))
	dropped := 0

	for _, c := range candidates {
		if c.City == "" {
			c.City = req.City
		}
		if c.Date == "" {
			c.Date = req.Date
		}
		if c.Category == "" {
			c.Category = req.Category
		}
		if c.Source == "" {
			c.Source = source
		}
		c.Title = strings.TrimSpace(c.Title)

		if !c.HasUsableFields() {
			dropped++
			continue
		}
		valid = append(valid, c)
	}

	return valid, dropped
}
