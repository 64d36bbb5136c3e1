package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for book documents.
//
// Titles and authors carry term vectors for highlighting. Status, tags and
// language use the keyword analyzer so filters match exactly.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	text := func(name string, store, vectors bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		fm.Store = store
		fm.IncludeTermVectors = vectors
		docMapping.AddFieldMappingsAt(name, fm)
	}
	exact := func(name string, store bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = store
		docMapping.AddFieldMappingsAt(name, fm)
	}
	numeric := func(name string) {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(name, fm)
	}

	text("title", true, true)
	text("subtitle", true, false)
	text("authors", true, true)
	text("description", false, false) // too large to store
	text("genres", true, false)
	text("themes", true, false)

	// Publisher names should not be stemmed.
	publisher := bleve.NewTextFieldMapping()
	publisher.Analyzer = simple.Name
	publisher.Store = true
	docMapping.AddFieldMappingsAt("publisher", publisher)

	exact("id", false)
	exact("status", true)
	exact("tags", true)
	exact("language", true)

	numeric("publish_year")
	numeric("added_at")

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
