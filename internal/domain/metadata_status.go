package domain

import (
	"math"
	"time"
)

// Section is one of the eight logical groups of book metadata tracked for completion.
type Section string

// Sections.
const (
	SectionBasicInfo             Section = "basicInfo"
	SectionPublicationDetails    Section = "publicationDetails"
	SectionContentClassification Section = "contentClassification"
	SectionNarrativeElements     Section = "narrativeElements"
	SectionContentAnalysis       Section = "contentAnalysis"
	SectionReadingExperience     Section = "readingExperience"
	SectionCulturalContext       Section = "culturalContext"
	SectionComplexityAnalysis    Section = "complexityAnalysis"
)

// SectionCount is the denominator of the completion percentage.
const SectionCount = 8

// SuggestionOrder is the priority in which incomplete sections are suggested.
// Basic info is complete from creation, so it only appears last.
var SuggestionOrder = []Section{
	SectionPublicationDetails,
	SectionContentClassification,
	SectionNarrativeElements,
	SectionContentAnalysis,
	SectionReadingExperience,
	SectionCulturalContext,
	SectionComplexityAnalysis,
	SectionBasicInfo,
}

var sectionLabels = map[Section]string{
	SectionBasicInfo:             "Basic information",
	SectionPublicationDetails:    "Publication details",
	SectionContentClassification: "Content classification",
	SectionNarrativeElements:     "Narrative elements",
	SectionContentAnalysis:       "Content analysis",
	SectionReadingExperience:     "Reading experience",
	SectionCulturalContext:       "Cultural context",
	SectionComplexityAnalysis:    "Complexity analysis",
}

// Label is the human-readable section name.
func (s Section) Label() string {
	return sectionLabels[s]
}

// fieldSections maps writable field names to the section they complete.
var fieldSections = map[string]Section{
	"title":       SectionBasicInfo,
	"subtitle":    SectionBasicInfo,
	"authors":     SectionBasicInfo,
	"description": SectionBasicInfo,
	"coverUrl":    SectionBasicInfo,

	"publisher":     SectionPublicationDetails,
	"publishedDate": SectionPublicationDetails,
	"pageCount":     SectionPublicationDetails,
	"language":      SectionPublicationDetails,
	"isbn":          SectionPublicationDetails,

	"genres":      SectionContentClassification,
	"subgenres":   SectionContentClassification,
	"subjects":    SectionContentClassification,
	"contentTags": SectionContentClassification,
	"audience":    SectionContentClassification,
	"fiction":     SectionContentClassification,

	"narrative":   SectionNarrativeElements,
	"pointOfView": SectionNarrativeElements,
	"tense":       SectionNarrativeElements,
	"timeline":    SectionNarrativeElements,
	"format":      SectionNarrativeElements,

	"themes":     SectionContentAnalysis,
	"characters": SectionContentAnalysis,
	"locations":  SectionContentAnalysis,

	"mood":            SectionReadingExperience,
	"pacing":          SectionReadingExperience,
	"readingTime":     SectionReadingExperience,
	"contentWarnings": SectionReadingExperience,

	"cultural":          SectionCulturalContext,
	"representation":    SectionCulturalContext,
	"diversityElements": SectionCulturalContext,

	"complexity": SectionComplexityAnalysis,
}

// SectionForField returns the section a field belongs to. ok is false for
// fields that do not count toward completion (notes, tags, rating...).
func SectionForField(field string) (Section, bool) {
	s, ok := fieldSections[field]
	return s, ok
}

// MetadataStatus records which sections of a book have been filled at least once.
// Flags only ever move from false to true.
type MetadataStatus struct {
	BookID                        string    `json:"bookId"`
	BasicInfoComplete             bool      `json:"basicInfoComplete"`
	PublicationDetailsComplete    bool      `json:"publicationDetailsComplete"`
	ContentClassificationComplete bool      `json:"contentClassificationComplete"`
	NarrativeElementsComplete     bool      `json:"narrativeElementsComplete"`
	ContentAnalysisComplete       bool      `json:"contentAnalysisComplete"`
	ReadingExperienceComplete     bool      `json:"readingExperienceComplete"`
	CulturalContextComplete       bool      `json:"culturalContextComplete"`
	ComplexityAnalysisComplete    bool      `json:"complexityAnalysisComplete"`
	LastUpdated                   time.Time `json:"lastUpdated"`
}

// NewMetadataStatus returns the status of a freshly created book: basic info
// complete, everything else outstanding.
func NewMetadataStatus(bookID string, now time.Time) MetadataStatus {
	return MetadataStatus{BookID: bookID, BasicInfoComplete: true, LastUpdated: now}
}

func (m *MetadataStatus) flag(s Section) *bool {
	switch s {
	case SectionBasicInfo:
		return &m.BasicInfoComplete
	case SectionPublicationDetails:
		return &m.PublicationDetailsComplete
	case SectionContentClassification:
		return &m.ContentClassificationComplete
	case SectionNarrativeElements:
		return &m.NarrativeElementsComplete
	case SectionContentAnalysis:
		return &m.ContentAnalysisComplete
	case SectionReadingExperience:
		return &m.ReadingExperienceComplete
	case SectionCulturalContext:
		return &m.CulturalContextComplete
	case SectionComplexityAnalysis:
		return &m.ComplexityAnalysisComplete
	}
	return nil
}

// IsComplete reports whether section s has been filled.
func (m MetadataStatus) IsComplete(s Section) bool {
	if f := m.flag(s); f != nil {
		return *f
	}
	return false
}

// Mark sets section s complete and reports whether that changed anything.
func (m *MetadataStatus) Mark(s Section, now time.Time) bool {
	f := m.flag(s)
	if f == nil || *f {
		return false
	}
	*f = true
	m.LastUpdated = now
	return true
}

// CompleteCount returns how many of the eight sections are complete.
func (m MetadataStatus) CompleteCount() int {
	n := 0
	for _, s := range SuggestionOrder {
		if m.IsComplete(s) {
			n++
		}
	}
	return n
}

// Percentage returns completion as round(complete / 8 * 100).
func (m MetadataStatus) Percentage() int {
	return int(math.Round(float64(m.CompleteCount()) / SectionCount * 100))
}

// Incomplete returns the outstanding sections in suggestion order.
func (m MetadataStatus) Incomplete() []Section {
	var out []Section
	for _, s := range SuggestionOrder {
		if !m.IsComplete(s) {
			out = append(out, s)
		}
	}
	return out
}

// FilledSections lists the progressively filled sections that currently hold
// data on b. Basic info and publication details are not inferred from content.
func FilledSections(b *Book) []Section {
	var out []Section
	if len(b.Genres) > 0 || len(b.Subgenres) > 0 || len(b.Subjects) > 0 || b.Audience != "" || b.Fiction != nil {
		out = append(out, SectionContentClassification)
	}
	if !b.Narrative.IsZero() {
		out = append(out, SectionNarrativeElements)
	}
	if len(b.Themes) > 0 || len(b.Characters) > 0 || len(b.Locations) > 0 {
		out = append(out, SectionContentAnalysis)
	}
	if len(b.Mood) > 0 || b.Pacing != "" || b.ReadingTime != "" || len(b.ContentWarnings) > 0 {
		out = append(out, SectionReadingExperience)
	}
	if !b.Cultural.IsZero() {
		out = append(out, SectionCulturalContext)
	}
	if !b.Complexity.IsZero() {
		out = append(out, SectionComplexityAnalysis)
	}
	return out
}
