package models

import (
	"sort"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a fetch job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending" // created, not yet picked up
	JobStatusRunning JobStatus = "running" // categories being processed
	JobStatusDone    JobStatus = "done"    // all categories reached a terminal state
	JobStatusError   JobStatus = "error"   // job could not be attempted at all
)

// CategoryState represents the per-category processing state within a job.
type CategoryState string

const (
	CategoryNotStarted CategoryState = "not-started"
	CategoryInProgress CategoryState = "in-progress"
	CategoryCompleted  CategoryState = "completed"
	CategoryFailed     CategoryState = "failed"
	CategoryTimedOut   CategoryState = "timed-out"
)

// Terminal reports whether the state will not change again.
func (s CategoryState) Terminal() bool {
	switch s {
	case CategoryCompleted, CategoryFailed, CategoryTimedOut:
		return true
	}
	return false
}

// Progress tracks how many categories of a job have reached a terminal state.
type Progress struct {
	CompletedCategories int `json:"completed_categories"`
	TotalCategories     int `json:"total_categories"`
}

// CategoryProgress holds the per-category sub-state of a job.
type CategoryProgress struct {
	State      CategoryState `json:"state"`
	Attempts   int           `json:"attempts"`
	EventCount int           `json:"event_count"`
	Error      string        `json:"error,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// DiagnosticStep is one entry in a job's append-only audit trail.
type DiagnosticStep struct {
	At            time.Time `json:"at"`
	Category      string    `json:"category,omitempty"`
	Message       string    `json:"message"`
	QuerySummary  string    `json:"query_summary,omitempty"`
	ParsedCount   int       `json:"parsed_count,omitempty"`
	UniqueCount   int       `json:"unique_count,omitempty"`
	EnrichedCount int       `json:"enriched_count,omitempty"`
}

// JobRecord is the durable record of one progressive fetch job.
type JobRecord struct {
	ID             string                      `json:"id"`
	City           string                      `json:"city"`
	Date           string                      `json:"date"`
	Categories     []string                    `json:"categories"`
	Status         JobStatus                   `json:"status"`
	Events         []EventRecord               `json:"events"`
	Progress       Progress                    `json:"progress"`
	CategoryStates map[string]CategoryProgress `json:"category_states,omitempty"`
	Diagnostics    []DiagnosticStep            `json:"diagnostics,omitempty"`
	Error          string                      `json:"error,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// JobPatch is a partial update to a job record. Nil fields are left untouched
// on the stored record; category states are merged key-wise.
type JobPatch struct {
	Status         *JobStatus
	Events         []EventRecord
	Progress       *Progress
	CategoryStates map[string]CategoryProgress
	Error          *string
}

// Apply merges the patch into the job, leaving unspecified fields intact.
func (j *JobRecord) Apply(patch JobPatch, now time.Time) {
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.Events != nil {
		j.Events = patch.Events
	}
	if patch.Progress != nil {
		j.Progress = *patch.Progress
	}
	if len(patch.CategoryStates) > 0 {
		if j.CategoryStates == nil {
			j.CategoryStates = make(map[string]CategoryProgress, len(patch.CategoryStates))
		}
		for cat, cp := range patch.CategoryStates {
			j.CategoryStates[cat] = cp
		}
	}
	if patch.Error != nil {
		j.Error = *patch.Error
	}
	j.UpdatedAt = now
}

// Fingerprint derives the request identity used for duplicate-request
// suppression: two requests with the same city, date and category set (in
// any order) produce the same fingerprint.
func Fingerprint(city, date string, categories []string) string {
	sorted := make([]string, 0, len(categories))
	for _, c := range categories {
		sorted = append(sorted, strings.ToLower(strings.TrimSpace(c)))
	}
	sort.Strings(sorted)

	day := strings.TrimSpace(date)
	if len(day) > 10 {
		day = day[:10]
	}

	return strings.ToLower(strings.TrimSpace(city)) + "|" + day + "|" + strings.Join(sorted, ",")
}
