package models

import (
	"strings"
	"time"
)

// EventRecord represents a single city event as reported by one provider.
// Records become immutable once written into a day bucket; later duplicates
// only enrich empty fields, they never delete data.
type EventRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	City        string     `json:"city"`
	Date        string     `json:"date"`               // calendar day, YYYY-MM-DD
	Time        string     `json:"time,omitempty"`     // local start time, HH:MM
	EndTime     string     `json:"end_time,omitempty"` // local end time, HH:MM
	Venue       string     `json:"venue,omitempty"`
	Address     string     `json:"address,omitempty"`
	Price       string     `json:"price,omitempty"`
	PriceDetail string     `json:"price_detail,omitempty"`
	Description string     `json:"description,omitempty"`
	BookingLink string     `json:"booking_link,omitempty"`
	WebsiteLink string     `json:"website_link,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	CacheUntil  *time.Time `json:"cache_until,omitempty"` // explicit expiry override
	Source      string     `json:"source"`                // provenance: which provider produced it
	CreatedAt   time.Time  `json:"created_at"`
}

// CalendarDay returns the record's date truncated to YYYY-MM-DD.
func (e *EventRecord) CalendarDay() string {
	d := strings.TrimSpace(e.Date)
	if len(d) > 10 {
		d = d[:10]
	}
	return d
}

// StartTime resolves the event's effective start instant from its date and
// time fields. The second return value is false when either field is missing
// or unparseable.
func (e *EventRecord) StartTime() (time.Time, bool) {
	day, ok := parseDay(e.CalendarDay())
	if !ok {
		return time.Time{}, false
	}

	hour, min, ok := parseClock(e.Time)
	if !ok {
		return time.Time{}, false
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC), true
}

// EndsAt resolves the event's end instant from its date and end time fields.
func (e *EventRecord) EndsAt() (time.Time, bool) {
	day, ok := parseDay(e.CalendarDay())
	if !ok {
		return time.Time{}, false
	}

	hour, min, ok := parseClock(e.EndTime)
	if !ok {
		return time.Time{}, false
	}

	end := time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC)

	// An end time earlier than the start time rolls over past midnight.
	if start, ok := e.StartTime(); ok && end.Before(start) {
		end = end.Add(24 * time.Hour)
	}

	return end, true
}

// HasUsableFields reports whether the record carries enough data to be worth
// keeping. Candidates failing this check are dropped during parsing.
func (e *EventRecord) HasUsableFields() bool {
	return strings.TrimSpace(e.Title) != "" && e.CalendarDay() != ""
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

// parseClock accepts HH:MM and HH:MM:SS clock strings.
func parseClock(s string) (hour, min int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false
	}

	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}

	return 0, 0, false
}
