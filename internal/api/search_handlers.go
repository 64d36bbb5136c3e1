package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search collection",
		Description: "Full-text search over titles, authors, genres, themes and descriptions in the collection",
		Tags:        []string{"Search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexLibrary",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the search index and rebuilds it from the collection",
		Tags:        []string{"Search"},
	}, s.handleReindex)
}

// === DTOs ===

// SearchInput contains search parameters.
type SearchInput struct {
	Query     string `query:"q" maxLength:"200" doc:"Free-text query; empty lists every book, newest first"`
	Status    string `query:"status" enum:"to-read,reading,completed,abandoned,reference" doc:"Only books with this reading status"`
	Tag       string `query:"tag" doc:"Only books with this tag"`
	Limit     int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum hits"`
	Offset    int    `query:"offset" default:"0" minimum:"0" doc:"Hits to skip"`
	Highlight bool   `query:"highlight" doc:"Include highlighted title and author fragments"`
}

// SearchOutput wraps search results for Huma.
type SearchOutput struct {
	Body *search.Result
}

// ReindexResponse reports a rebuild.
type ReindexResponse struct {
	Documents int `json:"documents" doc:"Books indexed"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if s.services.Search == nil {
		return nil, domainerrors.Internalf("search index not configured")
	}

	result, err := s.services.Search.Search(ctx, search.Params{
		Query:     input.Query,
		Status:    input.Status,
		Tag:       input.Tag,
		Limit:     input.Limit,
		Offset:    input.Offset,
		Highlight: input.Highlight,
	})
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	if s.services.Search == nil {
		return nil, domainerrors.Internalf("search index not configured")
	}

	books, err := s.services.Library.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.services.Search.Reindex(ctx, books)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Documents: n}}, nil
}
