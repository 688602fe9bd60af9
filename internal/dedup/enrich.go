package dedup

import (
	"github.com/eventradar/eventradar/internal/models"
)

// Enrichment describes a confirmed duplicate that carries data the stored
// record is missing. ExistingIndex refers into the existing slice handed to
// DedupeWithEnrichment.
type Enrichment struct {
	ExistingIndex int
	Merged        models.EventRecord
	ChangedFields []string
}

// MergeResult partitions a batch of new events against an existing set so a
// persistence layer can apply only the minimal set of writes. Merged is the
// resulting accumulated set (existing plus uniques, with enrichments
// applied), for callers that replace wholesale.
type MergeResult struct {
	Unique         []models.EventRecord
	Enrichments    []Enrichment
	DuplicateCount int // duplicates with no enrichment opportunity
	Merged         []models.EventRecord
}

// EnrichDuplicate merges a confirmed duplicate candidate into a copy of the
// existing record: the description is replaced only when the candidate's is
// strictly longer, empty optional fields are filled from the candidate, and
// populated fields are never touched. The returned field list is empty when
// nothing changed, which callers must treat as a no-op.
func EnrichDuplicate(existing, candidate models.EventRecord) (models.EventRecord, []string) {
	merged := existing
	var changed []string

	if len(candidate.Description) > len(existing.Description) {
		merged.Description = candidate.Description
		changed = append(changed, "description")
	}

	fillString := func(name string, dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = append(changed, name)
		}
	}

	fillString("time", &merged.Time, candidate.Time)
	fillString("end_time", &merged.EndTime, candidate.EndTime)
	fillString("venue", &merged.Venue, candidate.Venue)
	fillString("address", &merged.Address, candidate.Address)
	fillString("price", &merged.Price, candidate.Price)
	fillString("price_detail", &merged.PriceDetail, candidate.PriceDetail)
	fillString("booking_link", &merged.BookingLink, candidate.BookingLink)
	fillString("website_link", &merged.WebsiteLink, candidate.WebsiteLink)

	if merged.Latitude == nil && candidate.Latitude != nil {
		merged.Latitude = candidate.Latitude
		changed = append(changed, "latitude")
	}
	if merged.Longitude == nil && candidate.Longitude != nil {
		merged.Longitude = candidate.Longitude
		changed = append(changed, "longitude")
	}
	if merged.CacheUntil == nil && candidate.CacheUntil != nil {
		merged.CacheUntil = candidate.CacheUntil
		changed = append(changed, "cache_until")
	}

	return merged, changed
}

// DedupeWithEnrichment partitions newEvents into unique events, enrichment
// candidates (a duplicate was found and at least one field changed), and a
// count of duplicates with nothing new to contribute. Pairwise comparison,
// O(|new|·|existing|).
func DedupeWithEnrichment(newEvents, existingEvents []models.EventRecord, cfg Config) MergeResult {
	result := MergeResult{}

	// Enrichments are applied against a working copy so that two candidates
	// enriching the same record compose rather than clobber. Uniques join
	// the working set too, which collapses self-duplicates within one batch.
	working := make([]models.EventRecord, len(existingEvents))
	copy(working, existingEvents)

	for _, candidate := range newEvents {
		idx := findDuplicate(candidate, working, cfg)
		if idx < 0 {
			result.Unique = append(result.Unique, candidate)
			working = append(working, candidate)
			continue
		}

		merged, changed := EnrichDuplicate(working[idx], candidate)
		if len(changed) == 0 {
			result.DuplicateCount++
			continue
		}

		working[idx] = merged
		result.Enrichments = append(result.Enrichments, Enrichment{
			ExistingIndex: idx,
			Merged:        merged,
			ChangedFields: changed,
		})
	}

	result.Merged = working
	return result
}
