package domain

import "time"

// EnrichmentSchemaVersion tags the shape of Enrichment written by this build.
const EnrichmentSchemaVersion = 2

// Enrichment sources.
const (
	SourceHolistic = "holistic"
	SourceFields   = "fields"
	SourceFallback = "fallback"
	SourcePending  = "pending"
)

// PendingAnalysisNote is attached when enrichment has given up on a book.
const PendingAnalysisNote = "AI analysis pending: enrichment could not be completed for this book. It will be retried the next time the book is enriched."

// Enrichment is the AI-derived summary attached to a book.
type Enrichment struct {
	Themes               []string  `json:"themes"`
	Mood                 string    `json:"mood,omitempty"`
	NarrativeStyle       string    `json:"narrativeStyle,omitempty"`
	Pacing               string    `json:"pacing,omitempty"`
	TargetAudience       string    `json:"targetAudience,omitempty"`
	Complexity           string    `json:"complexity,omitempty"`
	SimilarBooks         []string  `json:"similarBooks"`
	CulturalSignificance string    `json:"culturalSignificance,omitempty"`
	Analysis             string    `json:"analysis"`
	Source               string    `json:"source"`
	GeneratedAt          time.Time `json:"generatedAt"`
	SchemaVersion        int       `json:"schemaVersion"`
	Pending              bool      `json:"pending,omitempty"`
}

// NewPendingEnrichment is the terminal placeholder used once retries run out.
func NewPendingEnrichment(now time.Time) *Enrichment {
	return &Enrichment{
		Themes:        []string{},
		SimilarBooks:  []string{},
		Analysis:      PendingAnalysisNote,
		Source:        SourcePending,
		GeneratedAt:   now,
		SchemaVersion: EnrichmentSchemaVersion,
		Pending:       true,
	}
}
