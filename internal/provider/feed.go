package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventradar/eventradar/internal/cityconfig"
	"github.com/eventradar/eventradar/internal/models"
)

// FeedAdapter pulls event listings from RSS 2.0 and Atom feeds registered as
// source hints for a city/category pair.
type FeedAdapter struct {
	hints   cityconfig.Provider
	client  *http.Client
	logger  *slog.Logger
	maxSize int64
}

// NewFeedAdapter creates the feed provider.
func NewFeedAdapter(hints cityconfig.Provider, logger *slog.Logger) *FeedAdapter {
	return &FeedAdapter{
		hints:   hints,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		maxSize: 4 << 20, // refuse to read unbounded feeds
	}
}

// Name identifies the provider.
func (a *FeedAdapter) Name() string {
	return "feed"
}

// Fetch polls every hinted feed for the request's city and category. A
// request with no hinted feeds succeeds with zero candidates; individual
// feed failures fail the call only when no feed could be read at all.
func (a *FeedAdapter) Fetch(ctx context.Context, req Request) (*Result, error) {
	urls := a.hints.FeedHints(req.City, req.Category)
	if len(urls) == 0 {
		return &Result{
			QuerySummary: fmt.Sprintf("feed: no sources hinted for %s/%s", req.City, req.Category),
		}, nil
	}

	var candidates []models.EventRecord
	var lastErr error
	fetched := 0

	for _, url := range urls {
		items, err := a.fetchFeed(ctx, url)
		if err != nil {
			a.logger.Warn("feed fetch failed", "url", url, "error", err)
			lastErr = err
			continue
		}
		fetched++
		candidates = append(candidates, a.itemsToEvents(items, req)...)
	}

	if fetched == 0 && lastErr != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: lastErr, Retryable: true}
	}

	valid, dropped := ValidCandidates(candidates, req, a.Name())
	summary := fmt.Sprintf("feed: %d candidates from %d/%d sources for %s/%s/%s",
		len(valid), fetched, len(urls), req.City, req.Date, req.Category)
	if dropped > 0 {
		summary += fmt.Sprintf(" (%d dropped)", dropped)
	}

	return &Result{QuerySummary: summary, Candidates: valid}, nil
}

// rssDocument covers the RSS 2.0 feed structure.
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
}

type feedItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category"`
}

// atomDocument covers the Atom feed structure.
type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Summary   string `xml:"summary"`
	Link      struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

func (a *FeedAdapter) fetchFeed(ctx context.Context, url string) ([]feedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "eventradar/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxSize))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	return parseFeed(body)
}

// parseFeed decodes RSS 2.0, falling back to Atom.
func parseFeed(body []byte) ([]feedItem, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return rss.Channel.Items, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		items := make([]feedItem, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			items = append(items, feedItem{
				Title:       entry.Title,
				Link:        entry.Link.Href,
				Description: entry.Summary,
				PubDate:     published,
			})
		}
		return items, nil
	}

	return nil, fmt.Errorf("unrecognized feed format")
}

// itemsToEvents maps feed items onto candidate records. Items carrying a
// parseable date for a different day are skipped; items with no usable date
// inherit the requested day.
func (a *FeedAdapter) itemsToEvents(items []feedItem, req Request) []models.EventRecord {
	events := make([]models.EventRecord, 0, len(items))

	for _, item := range items {
		date := req.Date
		startTime := ""

		if ts, ok := parsePubDate(item.PubDate); ok {
			day := ts.UTC().Format("2006-01-02")
			if day != req.Date {
				continue
			}
			date = day
			startTime = ts.UTC().Format("15:04")
		}

		events = append(events, models.EventRecord{
			Title:       item.Title,
			Category:    req.Category,
			City:        req.City,
			Date:        date,
			Time:        startTime,
			Description: item.Description,
			WebsiteLink: item.Link,
			CreatedAt:   time.Now(),
		})
	}

	return events
}

func parsePubDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		"Mon, 2 Jan 2006 15:04:05 -0700",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var _ Adapter = (*FeedAdapter)(nil)
