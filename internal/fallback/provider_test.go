package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/shelfwise/internal/domain"
)

func TestNone(t *testing.T) {
	_, ok := None{}.Lookup("Anything", "Anyone")
	assert.False(t, ok)
}

func TestStatic_Lookup(t *testing.T) {
	s := NewStatic([]Entry{
		{Title: "Middlemarch", Author: "George Eliot", Enrichment: EnrichmentEntry{Analysis: "Provincial life.", Themes: []string{"marriage"}}},
		{Title: "Middlemarch", Enrichment: EnrichmentEntry{Analysis: "Generic."}},
		{Title: "Untitled draft", Enrichment: EnrichmentEntry{}},
		{Enrichment: EnrichmentEntry{Analysis: "No title."}},
	})
	assert.Equal(t, 2, s.Len(), "entries without title or analysis are skipped")

	tests := []struct {
		name         string
		title        string
		author       string
		wantAnalysis string
		wantOK       bool
	}{
		{name: "exact", title: "Middlemarch", author: "George Eliot", wantAnalysis: "Provincial life.", wantOK: true},
		{name: "case and punctuation insensitive", title: "  MIDDLEMARCH!", author: "george eliot", wantAnalysis: "Provincial life.", wantOK: true},
		{name: "other author falls back to any-author entry", title: "Middlemarch", author: "Someone Else", wantAnalysis: "Generic.", wantOK: true},
		{name: "unknown title", title: "Dune", author: "Frank Herbert"},
		{name: "skipped entry", title: "Untitled draft"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Lookup(tt.title, tt.author)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantAnalysis, got.Analysis)
			assert.Equal(t, domain.SourceFallback, got.Source)
			assert.Equal(t, domain.EnrichmentSchemaVersion, got.SchemaVersion)
			assert.NotNil(t, got.Themes)
			assert.NotNil(t, got.SimilarBooks)
		})
	}
}

func TestStatic_LookupReturnsCopies(t *testing.T) {
	s := NewStatic([]Entry{{Title: "Emma", Enrichment: EnrichmentEntry{Analysis: "Matchmaking.", Themes: []string{"class"}}}})

	first, ok := s.Lookup("Emma", "")
	require.True(t, ok)
	first.Themes[0] = "mutated"

	second, ok := s.Lookup("Emma", "")
	require.True(t, ok)
	assert.Equal(t, []string{"class"}, second.Themes)
}
