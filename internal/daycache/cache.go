// Package daycache implements the city+day scoped event cache. Its
// expiration is derived from the semantic lifetime of the events it holds:
// an event ending at 22:00 must not be served from cache at 23:00, while the
// floor and ceiling still bound worst-case refetch frequency and staleness.
package daycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/eventradar/eventradar/internal/dedup"
	"github.com/eventradar/eventradar/internal/models"
	"github.com/eventradar/eventradar/internal/storage"
)

// schemaVersion namespaces cache keys so a layout change never reads stale
// shapes.
const schemaVersion = "v2"

// Config bounds the adaptive TTL computation.
type Config struct {
	FloorTTL   time.Duration // minimum TTL regardless of event expiry
	CeilingTTL time.Duration // maximum TTL for a day-bucket aggregate
	DefaultTTL time.Duration // fallback when no expiry is resolvable
}

// DefaultConfig returns the standard TTL bounds.
func DefaultConfig() Config {
	return Config{
		FloorTTL:   60 * time.Second,
		CeilingTTL: 24 * time.Hour,
		DefaultTTL: 5 * time.Minute,
	}
}

// DayBucket aggregates all known events for one city on one calendar day:
// a map of identity key to canonical record plus a category index.
type DayBucket struct {
	City        string                        `json:"city"`
	Date        string                        `json:"date"`
	Events      map[string]models.EventRecord `json:"events"`
	Categories  map[string][]string           `json:"categories"` // category -> identity keys
	LastUpdated time.Time                     `json:"last_updated"`
	TTLSeconds  int64                         `json:"ttl_seconds"`
}

// NewDayBucket creates an empty bucket for a city and day.
func NewDayBucket(city, date string) *DayBucket {
	return &DayBucket{
		City:       strings.ToLower(strings.TrimSpace(city)),
		Date:       truncateDate(date),
		Events:     make(map[string]models.EventRecord),
		Categories: make(map[string][]string),
	}
}

// Put upserts a record under its identity key and indexes it under its
// category. A bucket never holds two records with the same identity key.
func (b *DayBucket) Put(identityKey string, record models.EventRecord) {
	_, existed := b.Events[identityKey]
	b.Events[identityKey] = record

	if existed {
		return
	}

	cat := normalizeCategory(record.Category)
	for _, key := range b.Categories[cat] {
		if key == identityKey {
			return
		}
	}
	b.Categories[cat] = append(b.Categories[cat], identityKey)
}

// EventsFor returns the cached records for one category, in a stable order.
func (b *DayBucket) EventsFor(category string) []models.EventRecord {
	keys := b.Categories[normalizeCategory(category)]
	if len(keys) == 0 {
		return nil
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	events := make([]models.EventRecord, 0, len(sorted))
	for _, key := range sorted {
		if ev, ok := b.Events[key]; ok {
			events = append(events, ev)
		}
	}
	return events
}

// DayKey builds the storage key for a city and date. City casing and
// whitespace, and any time-of-day suffix on the date, do not change the key.
func DayKey(city, date string) string {
	return fmt.Sprintf("daybucket:%s:%s:%s", schemaVersion, strings.ToLower(strings.TrimSpace(city)), truncateDate(date))
}

// ComputeTTL derives the cache lifetime from the earliest resolvable event
// expiry, clamped to [floor, ceiling]. An empty set or one with no
// resolvable expiries falls back to the short default.
func ComputeTTL(events []models.EventRecord, now time.Time, cfg Config) time.Duration {
	var earliest time.Time
	found := false

	for i := range events {
		expiry, ok := ResolveExpiry(events[i])
		if !ok {
			continue
		}
		if !found || expiry.Before(earliest) {
			earliest = expiry
			found = true
		}
	}

	if !found {
		return cfg.DefaultTTL
	}

	ttl := earliest.Sub(now).Truncate(time.Second)
	if ttl < cfg.FloorTTL {
		return cfg.FloorTTL
	}
	if ttl > cfg.CeilingTTL {
		return cfg.CeilingTTL
	}
	return ttl
}

// Cache persists day buckets through the shared storage backend.
type Cache struct {
	backend storage.Backend
	cfg     Config
	dedup   dedup.Config
	logger  *slog.Logger
}

// New creates a day-bucket cache over the given backend.
func New(backend storage.Backend, cfg Config, dedupCfg dedup.Config, logger *slog.Logger) *Cache {
	return &Cache{
		backend: backend,
		cfg:     cfg,
		dedup:   dedupCfg,
		logger:  logger,
	}
}

// Get loads the bucket for a city and day, or nil when none is cached.
func (c *Cache) Get(ctx context.Context, city, date string) (*DayBucket, error) {
	raw, ok, err := c.backend.Get(ctx, DayKey(city, date))
	if err != nil {
		return nil, fmt.Errorf("load day bucket: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var bucket DayBucket
	if err := json.Unmarshal(raw, &bucket); err != nil {
		return nil, fmt.Errorf("decode day bucket: %w", err)
	}
	return &bucket, nil
}

// CachedDay is the read model for a cached city/day lookup: the events found
// per requested category, and the categories with no cached entry at all.
// The missing list is exactly what an orchestrator must (re)fetch.
type CachedDay struct {
	Events            map[string][]models.EventRecord `json:"events"`
	MissingCategories []string                        `json:"missing_categories"`
}

// GetByCategories returns cached events for each requested category and the
// list of categories absent from the bucket. Individual records that have
// already ended are filtered out even when the bucket as a whole is still
// live; a category left with nothing current counts as missing.
func (c *Cache) GetByCategories(ctx context.Context, city, date string, categories []string) (*CachedDay, error) {
	bucket, err := c.Get(ctx, city, date)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &CachedDay{Events: make(map[string][]models.EventRecord, len(categories))}

	for _, category := range categories {
		var events []models.EventRecord
		if bucket != nil {
			for _, ev := range bucket.EventsFor(category) {
				if IsValidNow(ev, now) {
					events = append(events, ev)
				}
			}
		}
		if len(events) == 0 {
			result.MissingCategories = append(result.MissingCategories, category)
			continue
		}
		result.Events[category] = events
	}

	return result, nil
}

// Merge upserts events into the bucket for their city/day, recomputes the
// adaptive TTL from the full event set, and persists the bucket under it.
func (c *Cache) Merge(ctx context.Context, city, date string, events []models.EventRecord, now time.Time) (*DayBucket, error) {
	bucket, err := c.Get(ctx, city, date)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		bucket = NewDayBucket(city, date)
	}

	for _, ev := range events {
		key := dedup.ComputeIdentity(ev)
		if existing, ok := bucket.Events[key]; ok {
			// Stored records are immutable; duplicates may only fill gaps.
			merged, changed := dedup.EnrichDuplicate(existing, ev)
			if len(changed) == 0 {
				continue
			}
			bucket.Events[key] = merged
			continue
		}
		bucket.Put(key, ev)
	}

	all := make([]models.EventRecord, 0, len(bucket.Events))
	for _, ev := range bucket.Events {
		all = append(all, ev)
	}

	ttl := ComputeTTL(all, now, c.cfg)
	bucket.LastUpdated = now
	bucket.TTLSeconds = int64(ttl / time.Second)

	raw, err := json.Marshal(bucket)
	if err != nil {
		return nil, fmt.Errorf("encode day bucket: %w", err)
	}

	if err := c.backend.Set(ctx, DayKey(city, date), raw, ttl); err != nil {
		return nil, fmt.Errorf("store day bucket: %w", err)
	}

	c.logger.Debug("day bucket updated",
		"city", bucket.City,
		"date", bucket.Date,
		"events", len(bucket.Events),
		"ttl", ttl,
	)

	return bucket, nil
}

func truncateDate(date string) string {
	d := strings.TrimSpace(date)
	if len(d) > 10 {
		d = d[:10]
	}
	return d
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
