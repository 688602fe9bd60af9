package dedup

import (
	"strings"

	"github.com/eventradar/eventradar/internal/models"
)

// minVenueLength is the shortest normalized venue that still disambiguates
// two same-titled events on the same day. Below it, the start time stands in
// for the venue.
const minVenueLength = 3

// ComputeIdentity builds the stable identity key for an event:
// normalized title, calendar day and normalized venue. The key is invariant
// to provider-specific fields (category, price, casing), which is what lets
// records from independent providers be recognized as the same event.
func ComputeIdentity(ev models.EventRecord) string {
	title := NormalizeForIdentity(ev.Title)
	day := ev.CalendarDay()

	venue := NormalizeForIdentity(ev.Venue)
	if len(venue) < minVenueLength {
		// Empty or near-empty venues would merge distinct events sharing a
		// title and day; the start time keeps them apart.
		venue = strings.TrimSpace(ev.Time)
	}

	return title + "|" + day + "|" + venue
}
