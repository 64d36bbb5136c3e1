package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/shelfwise/internal/catalog"
	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/normalize"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/search",
		Summary:     "Search catalog",
		Description: "Searches the public book catalog and returns minimal book records",
		Tags:        []string{"Catalog"},
	}, s.handleSearchCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookupISBN",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/isbn/{isbn}",
		Summary:     "Look up ISBN",
		Description: "Fetches a single catalog record by ISBN-10 or ISBN-13",
		Tags:        []string{"Catalog"},
	}, s.handleLookupISBN)
}

// === DTOs ===

// SearchCatalogInput contains parameters for a catalog search.
type SearchCatalogInput struct {
	Query string `query:"q" minLength:"1" maxLength:"200" doc:"Free-text catalog query"`
	Max   int    `query:"max" default:"10" minimum:"1" maximum:"40" doc:"Maximum results"`
}

// CatalogResultsResponse contains catalog matches.
type CatalogResultsResponse struct {
	Query string               `json:"query" doc:"The query that was run"`
	Books []domain.MinimalBook `json:"books" doc:"Matching books"`
}

// CatalogResultsOutput wraps the search response for Huma.
type CatalogResultsOutput struct {
	Body CatalogResultsResponse
}

// LookupISBNInput contains the ISBN to look up.
type LookupISBNInput struct {
	ISBN string `path:"isbn" doc:"ISBN-10 or ISBN-13, hyphens allowed"`
}

// MinimalBookOutput wraps a single catalog record for Huma.
type MinimalBookOutput struct {
	Body domain.MinimalBook
}

// === Handlers ===

func (s *Server) handleSearchCatalog(ctx context.Context, input *SearchCatalogInput) (*CatalogResultsOutput, error) {
	volumes, err := s.services.Catalog.Search(ctx, input.Query, input.Max)
	if err != nil {
		return nil, err
	}

	books := make([]domain.MinimalBook, 0, len(volumes))
	for _, v := range volumes {
		books = append(books, catalog.ToMinimalBook(v))
	}

	return &CatalogResultsOutput{
		Body: CatalogResultsResponse{Query: input.Query, Books: books},
	}, nil
}

func (s *Server) handleLookupISBN(ctx context.Context, input *LookupISBNInput) (*MinimalBookOutput, error) {
	if err := s.validator.Var("isbn", input.ISBN, "required,isbn"); err != nil {
		return nil, err
	}

	volume, err := s.services.Catalog.FetchByIdentifier(ctx, normalize.ISBN(input.ISBN))
	if err != nil {
		return nil, err
	}
	return &MinimalBookOutput{Body: catalog.ToMinimalBook(*volume)}, nil
}
