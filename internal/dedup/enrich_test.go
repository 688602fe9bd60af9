package dedup

import (
	"testing"
	"time"

	"github.com/eventradar/eventradar/internal/models"
)

func TestEnrichDuplicateFillsEmptyFields(t *testing.T) {
	existing := models.EventRecord{
		Title: "Jazz Night",
		City:  "Vienna",
		Date:  "2026-09-12",
		Time:  "20:00",
	}
	candidate := existing
	candidate.Venue = "Blue Note Club"
	candidate.Price = "25 EUR"
	candidate.BookingLink = "https://example.com/tickets"

	merged, changed := EnrichDuplicate(existing, candidate)

	if merged.Venue != "Blue Note Club" || merged.Price != "25 EUR" || merged.BookingLink != "https://example.com/tickets" {
		t.Errorf("empty fields not filled: %+v", merged)
	}
	if len(changed) != 3 {
		t.Errorf("expected 3 changed fields, got %v", changed)
	}
}

func TestEnrichDuplicateNeverOverwritesPopulated(t *testing.T) {
	existing := models.EventRecord{
		Title: "Jazz Night",
		Venue: "Blue Note Club",
		Price: "25 EUR",
	}
	candidate := existing
	candidate.Venue = "Some Other Hall"
	candidate.Price = "30 EUR"

	merged, changed := EnrichDuplicate(existing, candidate)

	if merged.Venue != "Blue Note Club" || merged.Price != "25 EUR" {
		t.Errorf("populated fields must not change: %+v", merged)
	}
	if len(changed) != 0 {
		t.Errorf("expected no changes, got %v", changed)
	}
}

func TestEnrichDuplicateDescriptionOnlyGrows(t *testing.T) {
	existing := models.EventRecord{Title: "Jazz Night", Description: "A night of jazz."}

	candidate := existing
	candidate.Description = "Short"
	merged, changed := EnrichDuplicate(existing, candidate)
	if merged.Description != "A night of jazz." || len(changed) != 0 {
		t.Errorf("shorter description must not replace: %q %v", merged.Description, changed)
	}

	candidate.Description = "A full night of live jazz with three bands."
	merged, changed = EnrichDuplicate(existing, candidate)
	if merged.Description != candidate.Description {
		t.Errorf("longer description should replace, got %q", merged.Description)
	}
	if len(changed) != 1 || changed[0] != "description" {
		t.Errorf("expected single description change, got %v", changed)
	}
}

func TestEnrichDuplicatePointerFields(t *testing.T) {
	lat, lon := 48.2082, 16.3738
	until := time.Date(2026, 9, 12, 22, 0, 0, 0, time.UTC)

	existing := models.EventRecord{Title: "Jazz Night"}
	candidate := models.EventRecord{
		Title:      "Jazz Night",
		Latitude:   &lat,
		Longitude:  &lon,
		CacheUntil: &until,
	}

	merged, changed := EnrichDuplicate(existing, candidate)
	if merged.Latitude == nil || *merged.Latitude != lat {
		t.Error("latitude not filled")
	}
	if merged.Longitude == nil || *merged.Longitude != lon {
		t.Error("longitude not filled")
	}
	if merged.CacheUntil == nil || !merged.CacheUntil.Equal(until) {
		t.Error("cache_until not filled")
	}
	if len(changed) != 3 {
		t.Errorf("expected 3 changed fields, got %v", changed)
	}
}

func TestDedupeWithEnrichment(t *testing.T) {
	cfg := DefaultConfig()
	existing := []models.EventRecord{
		{Title: "Jazz Night", City: "Vienna", Date: "2026-09-12", Time: "20:00"},
	}
	incoming := []models.EventRecord{
		// Duplicate carrying a venue the stored record is missing.
		{Title: "Jazz Night", City: "Vienna", Date: "2026-09-12", Time: "20:15", Venue: "Blue Note Club"},
		// Duplicate with nothing new.
		{Title: "Jazz Night", City: "Vienna", Date: "2026-09-12", Time: "20:00"},
		// Genuinely new event.
		{Title: "Opera Gala", City: "Vienna", Date: "2026-09-12", Time: "19:00"},
	}

	result := DedupeWithEnrichment(incoming, existing, cfg)

	if len(result.Unique) != 1 || result.Unique[0].Title != "Opera Gala" {
		t.Errorf("unexpected uniques: %+v", result.Unique)
	}
	if len(result.Enrichments) != 1 {
		t.Fatalf("expected 1 enrichment, got %d", len(result.Enrichments))
	}
	if result.Enrichments[0].ExistingIndex != 0 || result.Enrichments[0].Merged.Venue != "Blue Note Club" {
		t.Errorf("unexpected enrichment: %+v", result.Enrichments[0])
	}
	if result.DuplicateCount != 1 {
		t.Errorf("expected 1 silent duplicate, got %d", result.DuplicateCount)
	}
	if len(result.Merged) != 2 {
		t.Errorf("merged set should hold 2 records, got %d", len(result.Merged))
	}
	if result.Merged[0].Venue != "Blue Note Club" {
		t.Error("enrichment not reflected in merged set")
	}
}

func TestDedupeWithEnrichmentCollapsesIntraBatchDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	incoming := []models.EventRecord{
		{Title: "Opera Gala", City: "Vienna", Date: "2026-09-12", Time: "19:00"},
		{Title: "Opera Gala", City: "Vienna", Date: "2026-09-12", Time: "19:00", Venue: "Staatsoper"},
	}

	result := DedupeWithEnrichment(incoming, nil, cfg)

	if len(result.Unique) != 1 {
		t.Fatalf("self-duplicates within a batch must collapse, got %d uniques", len(result.Unique))
	}
	if len(result.Merged) != 1 || result.Merged[0].Venue != "Staatsoper" {
		t.Errorf("second copy should enrich the first: %+v", result.Merged)
	}
}

func TestDedupeWithEnrichmentComposesEnrichments(t *testing.T) {
	cfg := DefaultConfig()
	existing := []models.EventRecord{
		{Title: "Jazz Night", City: "Vienna", Date: "2026-09-12", Time: "20:00"},
	}
	incoming := []models.EventRecord{
		{Title: "Jazz Night", City: "Vienna", Date: "2026-09-12", Time: "20:00", Venue: "Blue Note Club"},
		{Title: "Jazz Night", City: "Vienna", Date: "2026-09-12", Time: "20:00", Price: "25 EUR"},
	}

	result := DedupeWithEnrichment(incoming, existing, cfg)

	if len(result.Enrichments) != 2 {
		t.Fatalf("expected 2 enrichments, got %d", len(result.Enrichments))
	}
	final := result.Merged[0]
	if final.Venue != "Blue Note Club" || final.Price != "25 EUR" {
		t.Errorf("enrichments should compose, got %+v", final)
	}
}
