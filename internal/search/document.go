// Package search provides full-text search over a reader's collection using
// Bleve. Books are denormalized into one document each so a single query can
// match titles, authors, genres and themes.
package search

import (
	"strconv"

	"github.com/listenupapp/shelfwise/internal/domain"
)

// Document is the indexed form of a book.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Description string   `json:"description,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Themes      []string `json:"themes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status"`
	Language    string   `json:"language,omitempty"`
	PublishYear int      `json:"publish_year,omitempty"`
	AddedAt     int64    `json:"added_at"` // Unix millis
}

// FromBook builds the search document for a book.
func FromBook(b *domain.Book) *Document {
	genres := make([]string, 0, len(b.Genres)+len(b.Subgenres))
	genres = append(genres, b.Genres...)
	genres = append(genres, b.Subgenres...)

	themes := make([]string, 0, len(b.Themes))
	for _, t := range b.Themes {
		themes = append(themes, t.Name)
	}
	if b.AIEnrichment != nil && !b.AIEnrichment.Pending {
		themes = append(themes, b.AIEnrichment.Themes...)
	}

	return &Document{
		ID:          b.ID,
		Title:       b.Title,
		Subtitle:    b.Subtitle,
		Authors:     b.AuthorNames(),
		Description: b.Description,
		Publisher:   b.Publisher,
		Genres:      genres,
		Themes:      themes,
		Tags:        b.Tags,
		Status:      string(b.ReadingStatus),
		Language:    b.Language,
		PublishYear: publishYear(b.PublishedDate),
		AddedAt:     b.DateAdded.UnixMilli(),
	}
}

// publishYear reads the leading year of a catalog date ("2004", "2004-05-01").
func publishYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// ToMap converts the document to a map keyed by the mapping's field names.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":       d.ID,
		"title":    d.Title,
		"status":   d.Status,
		"added_at": d.AddedAt,
	}
	if d.Subtitle != "" {
		m["subtitle"] = d.Subtitle
	}
	if len(d.Authors) > 0 {
		m["authors"] = d.Authors
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if len(d.Genres) > 0 {
		m["genres"] = d.Genres
	}
	if len(d.Themes) > 0 {
		m["themes"] = d.Themes
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if d.PublishYear > 0 {
		m["publish_year"] = d.PublishYear
	}
	return m
}
