package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/shelfwise/internal/domain"
	domainerrors "github.com/listenupapp/shelfwise/internal/errors"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "addBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Add book",
		Description:   "Adds a catalog book to the collection. Enrichment, when needed, runs in the background.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns every book in the collection, optionally filtered by reading status",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "listIncompleteBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/incomplete",
		Summary:     "List incomplete books",
		Description: "Returns books whose metadata completion is strictly below the threshold",
		Tags:        []string{"Books"},
	}, s.handleListIncompleteBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          "/api/v1/books/{id}",
		Summary:       "Delete book",
		Description:   "Removes a book and its completion status",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBookSection",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/sections/{field}",
		Summary:     "Update book field",
		Description: "Overwrites one named field and marks its metadata section complete",
		Tags:        []string{"Books"},
	}, s.handleUpdateSection)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookCompletion",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/completion",
		Summary:     "Get completion",
		Description: "Returns the metadata completion percentage, status and suggestions for a book",
		Tags:        []string{"Books"},
	}, s.handleGetCompletion)
}

// === DTOs ===

// AddBookRequest is the request body for adding a book.
type AddBookRequest struct {
	CatalogID string `json:"catalog_id" validate:"required,max=128" minLength:"1" doc:"Catalog volume ID"`
}

// AddBookInput wraps the add book request for Huma.
type AddBookInput struct {
	Body AddBookRequest
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body *domain.Book
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	Status string `query:"status" enum:"to-read,reading,completed,abandoned,reference" doc:"Only books with this reading status"`
}

// ListBooksResponse contains a list of books.
type ListBooksResponse struct {
	Books []*domain.Book `json:"books" doc:"Books in the collection"`
	Total int            `json:"total" doc:"Number of books returned"`
}

// ListBooksOutput wraps the list response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// ListIncompleteInput contains the completion threshold.
type ListIncompleteInput struct {
	Threshold int `query:"threshold" default:"80" minimum:"1" maximum:"100" doc:"Completion percentage threshold"`
}

// GetBookInput identifies a book.
type GetBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateSectionRequest carries the new field value.
type UpdateSectionRequest struct {
	Value any `json:"value" doc:"New value, shaped like the field"`
}

// UpdateSectionInput wraps the section update for Huma.
type UpdateSectionInput struct {
	ID    string `path:"id" doc:"Book ID"`
	Field string `path:"field" doc:"Field name, e.g. genres or pointOfView"`
	Body  UpdateSectionRequest
}

// CompletionResponse describes how complete a book's metadata is.
type CompletionResponse struct {
	BookID      string                `json:"book_id" doc:"Book ID"`
	Percentage  int                   `json:"percentage" doc:"Completed sections out of eight, as a percentage"`
	Suggestions []string              `json:"suggestions" doc:"Incomplete sections in suggested order"`
	Status      domain.MetadataStatus `json:"status" doc:"Per-section completion flags"`
	NeedsWork   bool                  `json:"needs_enrichment" doc:"Whether completion is below the enrichment threshold"`
}

// CompletionOutput wraps the completion response for Huma.
type CompletionOutput struct {
	Body CompletionResponse
}

// === Handlers ===

func (s *Server) handleAddBook(ctx context.Context, input *AddBookInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	book, err := s.services.Enrichment.AddBookToLibrary(ctx, input.Body.CatalogID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("book added", "book_id", book.ID, "isbn", book.ISBN)
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	books, err := s.services.Library.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if input.Status != "" {
		filtered := make([]*domain.Book, 0, len(books))
		for _, b := range books {
			if string(b.ReadingStatus) == input.Status {
				filtered = append(filtered, b)
			}
		}
		books = filtered
	}

	return &ListBooksOutput{Body: ListBooksResponse{Books: books, Total: len(books)}}, nil
}

func (s *Server) handleListIncompleteBooks(ctx context.Context, input *ListIncompleteInput) (*ListBooksOutput, error) {
	books, err := s.services.Library.BooksNeedingCompletion(ctx, input.Threshold)
	if err != nil {
		return nil, err
	}
	return &ListBooksOutput{Body: ListBooksResponse{Books: books, Total: len(books)}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Library.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *GetBookInput) (*struct{}, error) {
	deleted, err := s.services.Library.Delete(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, domainerrors.NotFoundf("book %s not found", input.ID)
	}
	s.logger.Info("book deleted", "book_id", input.ID)
	return nil, nil
}

func (s *Server) handleUpdateSection(ctx context.Context, input *UpdateSectionInput) (*BookOutput, error) {
	book, err := s.services.Library.UpdateSection(ctx, input.ID, input.Field, input.Body.Value)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleGetCompletion(ctx context.Context, input *GetBookInput) (*CompletionOutput, error) {
	book, err := s.services.Library.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	status, err := s.services.Library.MetadataStatus(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	pct, err := s.services.Library.CompletionPercentage(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.services.Library.CompletionSuggestions(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	needs, err := s.services.Enrichment.NeedsEnrichment(ctx, book)
	if err != nil {
		return nil, err
	}

	return &CompletionOutput{
		Body: CompletionResponse{
			BookID:      input.ID,
			Percentage:  pct,
			Suggestions: suggestions,
			Status:      status,
			NeedsWork:   needs,
		},
	}, nil
}
