package enrichment

import (
	"fmt"
	"strings"

	"github.com/listenupapp/shelfwise/internal/domain"
)

// Enrichable fields, in the order they are requested when missing.
const (
	FieldThemes            = "themes"
	FieldGenres            = "genres"
	FieldCharacters        = "characters"
	FieldLocations         = "locations"
	FieldComplexity        = "complexity"
	FieldNarrative         = "narrative"
	FieldCultural          = "cultural"
	FieldReadingExperience = "readingExperience"
)

// FieldOrder is the priority in which missing fields are requested.
var FieldOrder = []string{
	FieldThemes,
	FieldGenres,
	FieldCharacters,
	FieldLocations,
	FieldComplexity,
	FieldNarrative,
	FieldCultural,
	FieldReadingExperience,
}

// AnalysisPrompt asks for a holistic read of the book in one round trip.
const AnalysisPrompt = `Analyse the book described below as a whole.

Cover its central themes, overall mood, narrative style, pacing, intended audience,
reading complexity, a few comparable books, and its cultural significance. Then write
a short analytical summary (three to five sentences) that a reader deciding whether
to pick the book up would find useful. If you do not recognise the book, base the
analysis on the description only and do not invent plot details.

Respond ONLY with JSON: {"themes": ["..."], "mood": "...", "narrativeStyle": "...", "pacing": "slow|moderate|fast", "targetAudience": "...", "complexity": "low|moderate|high", "similarBooks": ["Title by Author"], "culturalSignificance": "...", "analysis": "..."}`

// AnalysisResponse is the holistic analysis payload.
type AnalysisResponse struct {
	Themes               []string `json:"themes"`
	Mood                 string   `json:"mood"`
	NarrativeStyle       string   `json:"narrativeStyle"`
	Pacing               string   `json:"pacing"`
	TargetAudience       string   `json:"targetAudience"`
	Complexity           string   `json:"complexity"`
	SimilarBooks         []string `json:"similarBooks"`
	CulturalSignificance string   `json:"culturalSignificance"`
	Analysis             string   `json:"analysis"`
}

// ThemesPrompt requests scored themes.
const ThemesPrompt = `List the major themes of the book described below, most relevant first (at most 6).
Score each theme's relevance from 1 (minor) to 5 (central) and add a one-sentence note on how the book treats it.

Respond ONLY with a JSON array: [{"name": "...", "relevance": 1-5, "userNotes": "..."}]`

// ThemeItem is one entry of the themes payload.
type ThemeItem struct {
	Name      string `json:"name"`
	Relevance int    `json:"relevance"`
	Notes     string `json:"userNotes"`
}

// GenresPrompt requests classification.
const GenresPrompt = `Classify the book described below.

Give its primary genres (1-3), more specific subgenres (0-4), subject headings (0-5),
whether it is fiction, and the intended audience.

Respond ONLY with JSON: {"genres": ["..."], "subgenres": ["..."], "subjects": ["..."], "fiction": true/false, "audience": "children|middle grade|young adult|adult|academic"}`

// GenresResponse is the classification payload.
type GenresResponse struct {
	Genres    []string `json:"genres"`
	Subgenres []string `json:"subgenres"`
	Subjects  []string `json:"subjects"`
	Fiction   *bool    `json:"fiction"`
	Audience  string   `json:"audience"`
}

// CharactersPrompt requests the main cast.
const CharactersPrompt = `List the main characters of the book described below (at most 8). For non-fiction, list the key people discussed.
Only include characters you are confident appear in the book.

Respond ONLY with a JSON array: [{"name": "...", "role": "protagonist|antagonist|supporting|narrator|subject", "archetype": "...", "demographics": "...", "traits": ["..."], "arc": "..."}]`

// LocationsPrompt requests settings.
const LocationsPrompt = `List the important settings of the book described below (at most 6).
Mark whether each place is real, and score its importance to the story from 1 to 5.

Respond ONLY with a JSON array: [{"name": "...", "type": "city|country|building|region|world|other", "real": true/false, "importance": 1-5}]`

// ComplexityPrompt requests difficulty scores.
const ComplexityPrompt = `Rate the reading complexity of the book described below on four axes, each from 1 (very easy) to 5 (very demanding):
readability of the prose, vocabulary, conceptual density, and structural complexity.

Respond ONLY with JSON: {"readability": 1-5, "vocabulary": 1-5, "conceptual": 1-5, "structural": 1-5}`

// NarrativePrompt requests narrative structure.
const NarrativePrompt = `Describe how the book described below is told.

Respond ONLY with JSON: {"pointOfView": "first person|second person|third person limited|third person omniscient|multiple", "tense": "past|present|mixed", "timeline": "linear|non-linear|parallel|frame", "format": "prose|epistolary|verse|vignettes|mixed"}`

// CulturalPrompt requests representation details.
const CulturalPrompt = `Describe the cultural context of the book described below: which groups and identities are represented,
which diversity elements are present, and, only if warranted, a brief sensitivity note.

Respond ONLY with JSON: {"representation": ["..."], "diversityElements": ["..."], "sensitivityNote": "..."}`

// ReadingExperiencePrompt requests mood and pacing.
const ReadingExperiencePrompt = `Describe what reading the book described below feels like.

Give 1-4 mood words, the pacing, a rough reading time for an average adult reader, and any content warnings.

Respond ONLY with JSON: {"mood": ["..."], "pacing": "slow|moderate|fast", "readingTime": "e.g. 6-8 hours", "contentWarnings": ["..."]}`

// ReadingExperienceResponse is the reading experience payload.
type ReadingExperienceResponse struct {
	Mood            []string `json:"mood"`
	Pacing          string   `json:"pacing"`
	ReadingTime     string   `json:"readingTime"`
	ContentWarnings []string `json:"contentWarnings"`
}

var fieldPrompts = map[string]string{
	FieldThemes:            ThemesPrompt,
	FieldGenres:            GenresPrompt,
	FieldCharacters:        CharactersPrompt,
	FieldLocations:         LocationsPrompt,
	FieldComplexity:        ComplexityPrompt,
	FieldNarrative:         NarrativePrompt,
	FieldCultural:          CulturalPrompt,
	FieldReadingExperience: ReadingExperiencePrompt,
}

const maxDescriptionRunes = 1500

// BuildFieldPrompt returns the prompt for one enrichable field. ok is false
// for unknown fields.
func BuildFieldPrompt(field string, b *domain.Book) (string, bool) {
	instructions, ok := fieldPrompts[field]
	if !ok {
		return "", false
	}
	return instructions + "\n\n" + describeBook(b), true
}

// BuildAnalysisPrompt returns the holistic analysis prompt for b.
func BuildAnalysisPrompt(b *domain.Book) string {
	return AnalysisPrompt + "\n\n" + describeBook(b)
}

// describeBook renders the bibliographic facts the model is given.
func describeBook(b *domain.Book) string {
	var sb strings.Builder
	sb.WriteString("BOOK\n")
	fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	if b.Subtitle != "" {
		fmt.Fprintf(&sb, "Subtitle: %s\n", b.Subtitle)
	}
	if names := b.AuthorNames(); len(names) > 0 {
		fmt.Fprintf(&sb, "Author: %s\n", strings.Join(names, ", "))
	}
	if b.PublishedDate != "" {
		fmt.Fprintf(&sb, "Published: %s\n", b.PublishedDate)
	}
	if b.Publisher != "" {
		fmt.Fprintf(&sb, "Publisher: %s\n", b.Publisher)
	}
	if !b.HasPlaceholderISBN() {
		fmt.Fprintf(&sb, "ISBN: %s\n", b.ISBN)
	}
	if len(b.Genres) > 0 {
		fmt.Fprintf(&sb, "Genres: %s\n", strings.Join(b.Genres, ", "))
	}
	if desc := truncateRunes(b.Description, maxDescriptionRunes); desc != "" {
		fmt.Fprintf(&sb, "Description: %s\n", desc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}
