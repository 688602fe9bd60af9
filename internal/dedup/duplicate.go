package dedup

import (
	"strings"
	"time"

	"github.com/eventradar/eventradar/internal/models"
)

// Config holds the duplicate-decision heuristics. The defaults come from the
// original tuning and are deliberately preserved rather than re-derived;
// treat them as knobs, not truths.
type Config struct {
	// TimeWindow is the maximum gap between effective start times for two
	// records to still describe the same event.
	TimeWindow time.Duration

	// TitleThreshold is the minimum normalized title similarity (exclusive)
	// required for a duplicate decision.
	TitleThreshold float64
}

// DefaultConfig returns the preserved heuristic defaults.
func DefaultConfig() Config {
	return Config{
		TimeWindow:     1 * time.Hour,
		TitleThreshold: 0.85,
	}
}

// AreDuplicates decides whether two records describe the same real-world
// event. All three conditions are required: matching city, start times
// within the window (or matching calendar days when a time is unparseable),
// and title similarity above the threshold. The decision is symmetric.
func AreDuplicates(a, b models.EventRecord, cfg Config) bool {
	if !strings.EqualFold(strings.TrimSpace(a.City), strings.TrimSpace(b.City)) {
		return false
	}

	if !withinTimeWindow(a, b, cfg.TimeWindow) {
		return false
	}

	sim := Similarity(NormalizeForIdentity(a.Title), NormalizeForIdentity(b.Title))
	return sim > cfg.TitleThreshold
}

// withinTimeWindow checks the temporal condition of the duplicate decision.
// When either side's time is unparseable, the calendar days must match.
func withinTimeWindow(a, b models.EventRecord, window time.Duration) bool {
	at, aok := a.StartTime()
	bt, bok := b.StartTime()

	if !aok || !bok {
		day := a.CalendarDay()
		return day != "" && day == b.CalendarDay()
	}

	gap := at.Sub(bt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= window
}

// Dedupe returns the subset of newEvents that is not a duplicate of anything
// in existingEvents. Existing records always win; nothing is replaced on
// this path.
func Dedupe(newEvents, existingEvents []models.EventRecord, cfg Config) []models.EventRecord {
	unique := make([]models.EventRecord, 0, len(newEvents))

	for _, candidate := range newEvents {
		if findDuplicate(candidate, existingEvents, cfg) < 0 {
			unique = append(unique, candidate)
		}
	}

	return unique
}

// findDuplicate returns the index of the first duplicate of candidate in
// existing, or -1.
func findDuplicate(candidate models.EventRecord, existing []models.EventRecord, cfg Config) int {
	for i := range existing {
		if AreDuplicates(candidate, existing[i], cfg) {
			return i
		}
	}
	return -1
}
