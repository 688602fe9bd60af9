// Package cityconfig resolves city aliases and supplies per-category source
// hints to providers. The data is read-only from the core's point of view.
package cityconfig

import (
	"strings"
)

// Provider is the read-only configuration contract the core consumes.
type Provider interface {
	// ResolveCity maps an alias ("wien", "Vienna ") to the canonical city
	// name. Unknown cities resolve to their lowercased, trimmed form.
	ResolveCity(name string) string

	// FeedHints returns feed URLs worth polling for a city and category.
	FeedHints(city, category string) []string
}

// StaticProvider serves a fixed alias table plus hint overrides.
type StaticProvider struct {
	aliases map[string]string
	hints   map[string][]string // "city|category" -> urls
}

// NewStaticProvider creates a provider with the built-in alias table.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		aliases: map[string]string{
			"wien":      "vienna",
			"vienne":    "vienna",
			"muenchen":  "munich",
			"münchen":   "munich",
			"koeln":     "cologne",
			"köln":      "cologne",
			"praha":     "prague",
			"prag":      "prague",
			"warszawa":  "warsaw",
			"roma":      "rome",
			"milano":    "milan",
			"lisboa":    "lisbon",
			"zuerich":   "zurich",
			"zürich":    "zurich",
			"kobenhavn": "copenhagen",
			"københavn": "copenhagen",
		},
		hints: make(map[string][]string),
	}
}

// AddFeedHint registers a feed URL for a city/category pair. Intended for
// wiring at startup; the core never calls it.
func (p *StaticProvider) AddFeedHint(city, category, url string) {
	key := hintKey(city, category)
	p.hints[key] = append(p.hints[key], url)
}

// ResolveCity maps an alias to its canonical name.
func (p *StaticProvider) ResolveCity(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := p.aliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// FeedHints returns feed URLs for a city and category, falling back to
// city-wide hints registered under an empty category.
func (p *StaticProvider) FeedHints(city, category string) []string {
	canonical := p.ResolveCity(city)

	urls := p.hints[hintKey(canonical, category)]
	if cityWide := p.hints[hintKey(canonical, "")]; len(cityWide) > 0 {
		urls = append(urls, cityWide...)
	}
	return urls
}

func hintKey(city, category string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(category))
}

var _ Provider = (*StaticProvider)(nil)
