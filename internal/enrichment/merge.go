package enrichment

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/textgen"
)

// missing reports whether field has no data on b yet.
func missing(field string, b *domain.Book) bool {
	switch field {
	case FieldThemes:
		return len(b.Themes) == 0
	case FieldGenres:
		return len(b.Genres) == 0
	case FieldCharacters:
		return len(b.Characters) == 0
	case FieldLocations:
		return len(b.Locations) == 0
	case FieldComplexity:
		return b.Complexity.IsZero()
	case FieldNarrative:
		return b.Narrative.IsZero()
	case FieldCultural:
		return b.Cultural.IsZero()
	case FieldReadingExperience:
		return len(b.Mood) == 0 && b.Pacing == ""
	}
	return false
}

// missingFields returns up to limit missing fields in FieldOrder.
func missingFields(b *domain.Book, limit int) []string {
	var out []string
	for _, f := range FieldOrder {
		if len(out) == limit {
			break
		}
		if missing(f, b) {
			out = append(out, f)
		}
	}
	return out
}

// mergeField decodes a field response and writes it into b. It reports
// whether anything was filled; a payload that decodes but is empty fills
// nothing and is not an error.
func mergeField(field, text string, b *domain.Book) (bool, error) {
	switch field {
	case FieldThemes:
		items, err := decodeList[ThemeItem](text, "themes")
		if err != nil {
			return false, err
		}
		themes := make([]domain.Theme, 0, len(items))
		for _, it := range items {
			if name := strings.TrimSpace(it.Name); name != "" {
				themes = append(themes, domain.Theme{Name: name, Relevance: clampScore(it.Relevance), Note: strings.TrimSpace(it.Notes)})
			}
		}
		if len(themes) == 0 {
			return false, nil
		}
		slices.SortStableFunc(themes, func(a, b domain.Theme) int { return cmp.Compare(b.Relevance, a.Relevance) })
		b.Themes = themes
		return true, nil

	case FieldGenres:
		resp, err := textgen.Decode[GenresResponse](text)
		if err != nil {
			return false, err
		}
		genres := cleanList(resp.Genres)
		if len(genres) == 0 {
			return false, nil
		}
		b.Genres = genres
		b.Subgenres = cleanList(resp.Subgenres)
		b.Subjects = cleanList(resp.Subjects)
		if resp.Fiction != nil {
			b.Fiction = resp.Fiction
		}
		if a := strings.TrimSpace(resp.Audience); a != "" {
			b.Audience = a
		}
		return true, nil

	case FieldCharacters:
		items, err := decodeList[domain.Character](text, "characters")
		if err != nil {
			return false, err
		}
		chars := make([]domain.Character, 0, len(items))
		for _, c := range items {
			c.Name = strings.TrimSpace(c.Name)
			if c.Name == "" {
				continue
			}
			c.Traits = cleanList(c.Traits)
			chars = append(chars, c)
		}
		if len(chars) == 0 {
			return false, nil
		}
		b.Characters = chars
		return true, nil

	case FieldLocations:
		items, err := decodeList[domain.Location](text, "locations")
		if err != nil {
			return false, err
		}
		locs := make([]domain.Location, 0, len(items))
		for _, l := range items {
			l.Name = strings.TrimSpace(l.Name)
			if l.Name == "" {
				continue
			}
			l.Importance = clampScore(l.Importance)
			locs = append(locs, l)
		}
		if len(locs) == 0 {
			return false, nil
		}
		b.Locations = locs
		return true, nil

	case FieldComplexity:
		resp, err := textgen.Decode[domain.ComplexityScores](text)
		if err != nil {
			return false, err
		}
		scores := domain.ComplexityScores{
			Readability: clampOptionalScore(resp.Readability),
			Vocabulary:  clampOptionalScore(resp.Vocabulary),
			Conceptual:  clampOptionalScore(resp.Conceptual),
			Structural:  clampOptionalScore(resp.Structural),
		}
		if scores.IsZero() {
			return false, nil
		}
		b.Complexity = scores
		return true, nil

	case FieldNarrative:
		resp, err := textgen.Decode[domain.NarrativeStructure](text)
		if err != nil {
			return false, err
		}
		resp = domain.NarrativeStructure{
			PointOfView: strings.TrimSpace(resp.PointOfView),
			Tense:       strings.TrimSpace(resp.Tense),
			Timeline:    strings.TrimSpace(resp.Timeline),
			Format:      strings.TrimSpace(resp.Format),
		}
		if resp.IsZero() {
			return false, nil
		}
		b.Narrative = resp
		return true, nil

	case FieldCultural:
		resp, err := textgen.Decode[domain.CulturalContext](text)
		if err != nil {
			return false, err
		}
		resp.Representation = cleanList(resp.Representation)
		resp.DiversityElements = cleanList(resp.DiversityElements)
		resp.SensitivityNote = strings.TrimSpace(resp.SensitivityNote)
		if resp.IsZero() {
			return false, nil
		}
		b.Cultural = resp
		return true, nil

	case FieldReadingExperience:
		resp, err := textgen.Decode[ReadingExperienceResponse](text)
		if err != nil {
			return false, err
		}
		mood := cleanList(resp.Mood)
		pacing := strings.TrimSpace(resp.Pacing)
		if len(mood) == 0 && pacing == "" {
			return false, nil
		}
		b.Mood = mood
		b.Pacing = pacing
		b.ReadingTime = strings.TrimSpace(resp.ReadingTime)
		b.ContentWarnings = cleanList(resp.ContentWarnings)
		return true, nil
	}

	return false, fmt.Errorf("no merge rule for field %q", field)
}

// decodeList accepts either a bare JSON array or an object wrapping the array
// under key, since models do both.
func decodeList[T any](text, key string) ([]T, error) {
	if items, err := textgen.Decode[[]T](text); err == nil {
		return items, nil
	}
	wrapped, err := textgen.Decode[map[string]json.RawMessage](text)
	if err != nil {
		return nil, err
	}
	raw, ok := wrapped[key]
	if !ok {
		return nil, errors.Parsef("response has no %q list", key)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(err, errors.CodeParse, "%q is not a list", key)
	}
	return items, nil
}

// placeholderMarkers flag holistic analyses that carry no real content.
var placeholderMarkers = []string{
	"analysis pending",
	"placeholder",
	"lorem ipsum",
	"no information available",
	"unable to analy",
	"i cannot provide",
	"i'm sorry",
}

const minAnalysisRunes = 40

// usableAnalysis reports whether a holistic response has real content.
func usableAnalysis(r AnalysisResponse) bool {
	text := strings.TrimSpace(r.Analysis)
	if utf8.RuneCountInString(text) < minAnalysisRunes {
		return false
	}
	lower := strings.ToLower(text)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// applyAnalysis attaches a holistic response to b, also filling the book's
// own theme, mood, pacing and audience fields where they are still empty.
func applyAnalysis(r AnalysisResponse, b *domain.Book, now time.Time) {
	themes := cleanList(r.Themes)
	b.AIEnrichment = &domain.Enrichment{
		Themes:               themes,
		Mood:                 strings.TrimSpace(r.Mood),
		NarrativeStyle:       strings.TrimSpace(r.NarrativeStyle),
		Pacing:               strings.TrimSpace(r.Pacing),
		TargetAudience:       strings.TrimSpace(r.TargetAudience),
		Complexity:           strings.TrimSpace(r.Complexity),
		SimilarBooks:         cleanList(r.SimilarBooks),
		CulturalSignificance: strings.TrimSpace(r.CulturalSignificance),
		Analysis:             strings.TrimSpace(r.Analysis),
		Source:               domain.SourceHolistic,
		GeneratedAt:          now,
		SchemaVersion:        domain.EnrichmentSchemaVersion,
	}
	fillFromEnvelope(b)
}

// fillFromEnvelope copies envelope values into empty book fields.
func fillFromEnvelope(b *domain.Book) {
	env := b.AIEnrichment
	if env == nil {
		return
	}
	if len(b.Themes) == 0 && len(env.Themes) > 0 {
		b.Themes = make([]domain.Theme, len(env.Themes))
		for i, name := range env.Themes {
			b.Themes[i] = domain.Theme{Name: name, Relevance: 3}
		}
	}
	if len(b.Mood) == 0 && env.Mood != "" {
		b.Mood = []string{env.Mood}
	}
	if b.Pacing == "" {
		b.Pacing = env.Pacing
	}
	if b.Audience == "" {
		b.Audience = env.TargetAudience
	}
}

// synthesizeEnvelope builds the enrichment envelope from whatever per-field
// data b holds.
func synthesizeEnvelope(b *domain.Book, now time.Time) *domain.Enrichment {
	themes := make([]string, 0, len(b.Themes))
	for _, t := range b.Themes {
		themes = append(themes, t.Name)
	}

	var style string
	if b.Narrative.PointOfView != "" {
		style = b.Narrative.PointOfView
		if b.Narrative.Tense != "" {
			style += ", " + b.Narrative.Tense + " tense"
		}
	}

	return &domain.Enrichment{
		Themes:         themes,
		Mood:           strings.Join(b.Mood, ", "),
		NarrativeStyle: style,
		Pacing:         b.Pacing,
		TargetAudience: b.Audience,
		Complexity:     b.Complexity.Label(),
		SimilarBooks:   []string{},
		Analysis:       synthesizeAnalysis(b),
		Source:         domain.SourceFields,
		GeneratedAt:    now,
		SchemaVersion:  domain.EnrichmentSchemaVersion,
	}
}

// synthesizeAnalysis writes a short summary from the fields that are filled.
func synthesizeAnalysis(b *domain.Book) string {
	var sentences []string

	if len(b.Genres) > 0 {
		kind := "work"
		if b.Fiction != nil && *b.Fiction {
			kind = "novel"
		}
		sentences = append(sentences, fmt.Sprintf("%s is a %s of %s", b.Title, kind, joinList(lowerAll(b.Genres))))
	}
	if len(b.Themes) > 0 {
		names := make([]string, 0, 3)
		for _, t := range b.Themes[:min(3, len(b.Themes))] {
			names = append(names, strings.ToLower(t.Name))
		}
		sentences = append(sentences, "It explores "+joinList(names))
	}
	if len(b.Characters) > 0 {
		names := make([]string, 0, 3)
		for _, c := range b.Characters[:min(3, len(b.Characters))] {
			names = append(names, c.Name)
		}
		sentences = append(sentences, "Central figures include "+joinList(names))
	}
	if len(b.Locations) > 0 {
		names := make([]string, 0, 3)
		for _, l := range b.Locations[:min(3, len(b.Locations))] {
			names = append(names, l.Name)
		}
		sentences = append(sentences, "The story is set in "+joinList(names))
	}
	if b.Narrative.PointOfView != "" {
		sentences = append(sentences, "It is told in the "+b.Narrative.PointOfView)
	}
	if len(b.Mood) > 0 {
		s := "The mood is " + joinList(lowerAll(b.Mood))
		if b.Pacing != "" {
			s += " with " + strings.ToLower(b.Pacing) + " pacing"
		}
		sentences = append(sentences, s)
	}
	if label := b.Complexity.Label(); label != "" {
		sentences = append(sentences, "Overall reading complexity is "+label)
	}
	if len(b.Cultural.Representation) > 0 {
		sentences = append(sentences, "It represents "+joinList(b.Cultural.Representation))
	}

	if len(sentences) == 0 {
		return ""
	}
	return strings.Join(sentences, ". ") + "."
}

// fillMissing copies enrichment data from src into the empty fields of dst,
// leaving everything dst already has (and all user fields) alone.
func fillMissing(dst, src *domain.Book) {
	if len(dst.Genres) == 0 {
		dst.Genres = slices.Clone(src.Genres)
		dst.Subgenres = slices.Clone(src.Subgenres)
		dst.Subjects = slices.Clone(src.Subjects)
	}
	if dst.Fiction == nil && src.Fiction != nil {
		v := *src.Fiction
		dst.Fiction = &v
	}
	if dst.Audience == "" {
		dst.Audience = src.Audience
	}
	if dst.Narrative.IsZero() {
		dst.Narrative = src.Narrative
	}
	if len(dst.Themes) == 0 {
		dst.Themes = slices.Clone(src.Themes)
	}
	if len(dst.Characters) == 0 {
		dst.Characters = slices.Clone(src.Characters)
	}
	if len(dst.Locations) == 0 {
		dst.Locations = slices.Clone(src.Locations)
	}
	if dst.Complexity.IsZero() {
		dst.Complexity = src.Complexity
	}
	if dst.Cultural.IsZero() {
		dst.Cultural = src.Cultural
	}
	if len(dst.Mood) == 0 && dst.Pacing == "" {
		dst.Mood = slices.Clone(src.Mood)
		dst.Pacing = src.Pacing
		dst.ReadingTime = src.ReadingTime
		dst.ContentWarnings = slices.Clone(src.ContentWarnings)
	}
	if !dst.HasEnrichment() && src.AIEnrichment != nil {
		dst.AIEnrichment = cloneEnvelope(src.AIEnrichment)
	}
}

// mergeEnrichment copies the result of a pass from src into the stored record
// dst. Fields dst already holds are kept; a real envelope from src replaces an
// older one.
func mergeEnrichment(dst, src *domain.Book) {
	fillMissing(dst, src)
	if src.HasEnrichment() {
		dst.AIEnrichment = cloneEnvelope(src.AIEnrichment)
	}
}

func cloneEnvelope(e *domain.Enrichment) *domain.Enrichment {
	env := *e
	env.Themes = slices.Clone(env.Themes)
	env.SimilarBooks = slices.Clone(env.SimilarBooks)
	return &env
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// joinList renders "a", "a and b", "a, b and c".
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// clampScore forces a 1-5 score; out-of-range or missing values become 1 or 5.
func clampScore(v int) int {
	return max(1, min(5, v))
}

// clampOptionalScore is clampScore but keeps 0 as "not scored".
func clampOptionalScore(v int) int {
	if v <= 0 {
		return 0
	}
	return min(5, v)
}
