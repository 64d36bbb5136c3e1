// Package fallback supplies canned enrichment for books when text generation
// produces nothing. Content is data, loaded from a YAML file, never code.
package fallback

import (
	"strings"

	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/normalize"
)

// Provider looks up prepared enrichment for a book.
type Provider interface {
	Lookup(title, author string) (*domain.Enrichment, bool)
}

// None is a Provider with no content.
type None struct{}

// Lookup always misses.
func (None) Lookup(string, string) (*domain.Enrichment, bool) { return nil, false }

// Entry is one record of fallback content. An empty Author matches any author.
type Entry struct {
	Title      string          `yaml:"title"`
	Author     string          `yaml:"author"`
	Enrichment EnrichmentEntry `yaml:"enrichment"`
}

// EnrichmentEntry mirrors domain.Enrichment with YAML names.
type EnrichmentEntry struct {
	Themes               []string `yaml:"themes"`
	Mood                 string   `yaml:"mood"`
	NarrativeStyle       string   `yaml:"narrativeStyle"`
	Pacing               string   `yaml:"pacing"`
	TargetAudience       string   `yaml:"targetAudience"`
	Complexity           string   `yaml:"complexity"`
	SimilarBooks         []string `yaml:"similarBooks"`
	CulturalSignificance string   `yaml:"culturalSignificance"`
	Analysis             string   `yaml:"analysis"`
}

func (e EnrichmentEntry) toDomain() *domain.Enrichment {
	themes := append([]string{}, e.Themes...)
	similar := append([]string{}, e.SimilarBooks...)
	return &domain.Enrichment{
		Themes:               themes,
		Mood:                 e.Mood,
		NarrativeStyle:       e.NarrativeStyle,
		Pacing:               e.Pacing,
		TargetAudience:       e.TargetAudience,
		Complexity:           e.Complexity,
		SimilarBooks:         similar,
		CulturalSignificance: e.CulturalSignificance,
		Analysis:             strings.TrimSpace(e.Analysis),
		Source:               domain.SourceFallback,
		SchemaVersion:        domain.EnrichmentSchemaVersion,
	}
}

// Static is an in-memory Provider.
type Static struct {
	byTitle map[string][]Entry
}

// NewStatic indexes entries by title. Entries without a title or analysis are skipped.
func NewStatic(entries []Entry) *Static {
	s := &Static{byTitle: make(map[string][]Entry, len(entries))}
	for _, e := range entries {
		key := normalize.Slug(e.Title)
		if key == "" || strings.TrimSpace(e.Enrichment.Analysis) == "" {
			continue
		}
		s.byTitle[key] = append(s.byTitle[key], e)
	}
	return s
}

// Lookup matches on title slug, preferring an entry whose author also matches.
func (s *Static) Lookup(title, author string) (*domain.Enrichment, bool) {
	candidates := s.byTitle[normalize.Slug(title)]
	if len(candidates) == 0 {
		return nil, false
	}

	want := normalize.Slug(author)
	var anyAuthor *Entry
	for i := range candidates {
		c := &candidates[i]
		got := normalize.Slug(c.Author)
		switch {
		case got != "" && got == want:
			return c.Enrichment.toDomain(), true
		case got == "" && anyAuthor == nil:
			anyAuthor = c
		}
	}
	if anyAuthor != nil {
		return anyAuthor.Enrichment.toDomain(), true
	}
	return nil, false
}

// Len returns the number of indexed entries.
func (s *Static) Len() int {
	n := 0
	for _, entries := range s.byTitle {
		n += len(entries)
	}
	return n
}
