// Package domain contains the entities persisted by shelfwise: books in a
// reader's collection, their metadata completion status and the enrichment
// envelope produced by text generation.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlaceholderISBNPrefix marks an ISBN generated because the catalog had none.
// Placeholder ISBNs never join against the shared enrichment cache.
const PlaceholderISBNPrefix = "placeholder-"

// ReadingStatus is where a reader is with a book.
type ReadingStatus string

// Reading statuses.
const (
	StatusToRead    ReadingStatus = "to-read"
	StatusReading   ReadingStatus = "reading"
	StatusCompleted ReadingStatus = "completed"
	StatusAbandoned ReadingStatus = "abandoned"
	StatusReference ReadingStatus = "reference"
)

// ReadingStatuses lists every status in display order.
var ReadingStatuses = []ReadingStatus{StatusToRead, StatusReading, StatusCompleted, StatusAbandoned, StatusReference}

// Valid reports whether s is a known status.
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusToRead, StatusReading, StatusCompleted, StatusAbandoned, StatusReference:
		return true
	}
	return false
}

// MaxRating is the highest user rating; 0 means unrated.
const MaxRating = 5

// Book is one item in a reader's collection.
type Book struct {
	ID   string `json:"id"`
	ISBN string `json:"isbn"`

	// Bibliographic.
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Authors       []Author `json:"authors"`
	Publisher     string   `json:"publisher"`
	PublishedDate string   `json:"publishedDate"`
	PageCount     int      `json:"pageCount"`
	Language      string   `json:"language"`
	Description   string   `json:"description"`
	CoverURL      string   `json:"coverUrl"`

	// Classification, filled progressively.
	Genres      []string           `json:"genres"`
	Subgenres   []string           `json:"subgenres"`
	Subjects    []string           `json:"subjects"`
	ContentTags []string           `json:"contentTags"`
	Audience    string             `json:"audience"`
	Fiction     *bool              `json:"fiction"`
	Narrative   NarrativeStructure `json:"narrative"`

	// Analysis, filled progressively.
	Themes     []Theme          `json:"themes"`
	Characters []Character      `json:"characters"`
	Locations  []Location       `json:"locations"`
	Complexity ComplexityScores `json:"complexity"`
	Cultural   CulturalContext  `json:"cultural"`

	// Reading experience.
	Mood            []string `json:"mood"`
	Pacing          string   `json:"pacing"`
	ReadingTime     string   `json:"readingTime"`
	ContentWarnings []string `json:"contentWarnings"`

	// Owned by the reader.
	ReadingStatus   ReadingStatus    `json:"readingStatus"`
	UserRating      int              `json:"userRating"`
	Favorite        bool             `json:"favorite"`
	Reread          bool             `json:"reread"`
	RereadCount     int              `json:"rereadCount"`
	Notes           string           `json:"notes"`
	Tags            []string         `json:"tags"`
	ReadingSessions []ReadingSession `json:"readingSessions"`
	Annotations     []Annotation     `json:"annotations"`

	AIEnrichment *Enrichment `json:"aiEnrichment,omitempty"`

	DateAdded    time.Time `json:"dateAdded"`
	LastModified time.Time `json:"lastModified"`
}

// Author is a contributor with a generated identifier.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NarrativeStructure describes how a story is told.
type NarrativeStructure struct {
	PointOfView string `json:"pointOfView"`
	Tense       string `json:"tense"`
	Timeline    string `json:"timeline"`
	Format      string `json:"format"`
}

// IsZero reports whether nothing has been filled in.
func (n NarrativeStructure) IsZero() bool {
	return n == NarrativeStructure{}
}

// Theme is a theme with a 1-5 relevance score.
type Theme struct {
	Name      string `json:"name"`
	Relevance int    `json:"relevance"`
	Note      string `json:"note,omitempty"`
}

// Character is a person (or creature) in the book.
type Character struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Archetype    string   `json:"archetype,omitempty"`
	Demographics string   `json:"demographics,omitempty"`
	Traits       []string `json:"traits,omitempty"`
	Arc          string   `json:"arc,omitempty"`
}

// Location is a setting; Importance is 1-5.
type Location struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Real       bool   `json:"real"`
	Importance int    `json:"importance"`
}

// ComplexityScores are 1-5 each; 0 means not yet scored.
type ComplexityScores struct {
	Readability int `json:"readability"`
	Vocabulary  int `json:"vocabulary"`
	Conceptual  int `json:"conceptual"`
	Structural  int `json:"structural"`
}

// IsZero reports whether no score has been set.
func (c ComplexityScores) IsZero() bool {
	return c == ComplexityScores{}
}

// Label summarises the average score as low, moderate or high.
func (c ComplexityScores) Label() string {
	var sum, n int
	for _, v := range []int{c.Readability, c.Vocabulary, c.Conceptual, c.Structural} {
		if v > 0 {
			sum += v
			n++
		}
	}
	switch {
	case n == 0:
		return ""
	case float64(sum)/float64(n) < 2.5:
		return "low"
	case float64(sum)/float64(n) < 3.75:
		return "moderate"
	default:
		return "high"
	}
}

// CulturalContext captures representation in the text.
type CulturalContext struct {
	Representation    []string `json:"representation"`
	DiversityElements []string `json:"diversityElements"`
	SensitivityNote   string   `json:"sensitivityNote,omitempty"`
}

// IsZero reports whether nothing has been filled in.
func (c CulturalContext) IsZero() bool {
	return len(c.Representation) == 0 && len(c.DiversityElements) == 0 && c.SensitivityNote == ""
}

// ReadingSession is one sitting with the book.
type ReadingSession struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	StartPage int        `json:"startPage"`
	EndPage   int        `json:"endPage"`
	Note      string     `json:"note,omitempty"`
}

// PagesRead returns the number of pages covered, never negative.
func (s ReadingSession) PagesRead() int {
	return max(0, s.EndPage-s.StartPage)
}

// Annotation is a note pinned to a page.
type Annotation struct {
	ID        string    `json:"id"`
	Page      int       `json:"page"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// MinimalBook is the subset of a book derivable from a catalog record.
type MinimalBook struct {
	ID            string   `json:"id"`
	ISBN          string   `json:"isbn"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []Author `json:"authors"`
	Publisher     string   `json:"publisher"`
	PublishedDate string   `json:"publishedDate"`
	PageCount     int      `json:"pageCount"`
	Language      string   `json:"language"`
	Description   string   `json:"description"`
	CoverURL      string   `json:"coverUrl"`
	Categories    []string `json:"categories,omitempty"`
}

// NewBook expands a minimal record into a fully defaulted Book: every
// progressive list is empty (not nil), status is to-read and rating is 0.
func NewBook(m MinimalBook, now time.Time) *Book {
	authors := make([]Author, len(m.Authors))
	copy(authors, m.Authors)

	return &Book{
		ID:              m.ID,
		ISBN:            m.ISBN,
		Title:           m.Title,
		Subtitle:        m.Subtitle,
		Authors:         authors,
		Publisher:       m.Publisher,
		PublishedDate:   m.PublishedDate,
		PageCount:       m.PageCount,
		Language:        m.Language,
		Description:     m.Description,
		CoverURL:        m.CoverURL,
		Genres:          []string{},
		Subgenres:       []string{},
		Subjects:        []string{},
		ContentTags:     []string{},
		Themes:          []Theme{},
		Characters:      []Character{},
		Locations:       []Location{},
		Cultural:        CulturalContext{Representation: []string{}, DiversityElements: []string{}},
		Mood:            []string{},
		ContentWarnings: []string{},
		ReadingStatus:   StatusToRead,
		Tags:            []string{},
		ReadingSessions: []ReadingSession{},
		Annotations:     []Annotation{},
		DateAdded:       now,
		LastModified:    now,
	}
}

// Clone returns a deep copy of b.
func (b *Book) Clone() *Book {
	data, err := json.Marshal(b)
	if err != nil {
		panic(fmt.Sprintf("clone book %s: %v", b.ID, err))
	}
	var out Book
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone book %s: %v", b.ID, err))
	}
	return &out
}

// ResetUserFields clears everything a reader owns so a book copied from the
// shared cache starts fresh in a new collection.
func (b *Book) ResetUserFields(now time.Time) {
	b.ReadingStatus = StatusToRead
	b.UserRating = 0
	b.Favorite = false
	b.Reread = false
	b.RereadCount = 0
	b.Notes = ""
	b.Tags = []string{}
	b.ReadingSessions = []ReadingSession{}
	b.Annotations = []Annotation{}
	b.DateAdded = now
	b.LastModified = now
}

// HasPlaceholderISBN reports whether the ISBN was generated locally.
func (b *Book) HasPlaceholderISBN() bool {
	return b.ISBN == "" || strings.HasPrefix(b.ISBN, PlaceholderISBNPrefix)
}

// AuthorNames returns author names in order.
func (b *Book) AuthorNames() []string {
	names := make([]string, len(b.Authors))
	for i, a := range b.Authors {
		names[i] = a.Name
	}
	return names
}

// HasEnrichment reports whether a completed (non-pending) enrichment is attached.
func (b *Book) HasEnrichment() bool {
	return b.AIEnrichment != nil && !b.AIEnrichment.Pending
}
