package daycache

import (
	"time"

	"github.com/eventradar/eventradar/internal/models"
)

// assumedDuration is how long an event without an end time is presumed to
// run past its start.
const assumedDuration = 3 * time.Hour

// ResolveExpiry determines the instant after which an event is stale,
// applying the first matching rule: an explicit CacheUntil timestamp, the
// parsed end time, start time plus the assumed duration, or 23:59 of the
// event's calendar day when no time is present at all. The boolean is false
// when no rule applies (no date on the record).
func ResolveExpiry(ev models.EventRecord) (time.Time, bool) {
	if ev.CacheUntil != nil {
		return *ev.CacheUntil, true
	}

	if end, ok := ev.EndsAt(); ok {
		return end, true
	}

	if start, ok := ev.StartTime(); ok {
		return start.Add(assumedDuration), true
	}

	if day, ok := parseDay(ev.CalendarDay()); ok {
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

// IsValidNow reports whether an event is still current at the given instant.
// A record with no resolvable expiry (missing date) is treated as always
// valid. That fallback is inherited behavior: it caches such records
// unboundedly, which may be a latent bug rather than intent.
func IsValidNow(ev models.EventRecord, now time.Time) bool {
	expiry, ok := ResolveExpiry(ev)
	if !ok {
		return true
	}
	return !now.After(expiry)
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
