package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/shelfwise/internal/domain"
)

func (s *Server) registerReadingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "setReadingStatus",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/status",
		Summary:     "Set reading status",
		Description: "Changes the reading status. Moving a completed book back to reading counts as a reread.",
		Tags:        []string{"Reading"},
	}, s.handleSetReadingStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "setRating",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/rating",
		Summary:     "Set rating",
		Description: "Sets the user rating, 0 for unrated",
		Tags:        []string{"Reading"},
	}, s.handleSetRating)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFavorite",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{id}/favorite",
		Summary:     "Toggle favorite",
		Description: "Flips the favorite flag",
		Tags:        []string{"Reading"},
	}, s.handleToggleFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addReadingSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/sessions",
		Summary:       "Add reading session",
		Description:   "Records a reading session; a to-read book becomes reading",
		Tags:          []string{"Reading"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddReadingSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addAnnotation",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/annotations",
		Summary:       "Add annotation",
		Description:   "Pins a note to a page",
		Tags:          []string{"Reading"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddAnnotation)
}

// === DTOs ===

// SetStatusRequest is the request body for changing reading status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,reading_status" doc:"to-read, reading, completed, abandoned or reference"`
}

// SetStatusInput wraps the status request for Huma.
type SetStatusInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body SetStatusRequest
}

// SetRatingRequest is the request body for rating a book.
type SetRatingRequest struct {
	Rating int `json:"rating" validate:"gte=0,lte=5" doc:"0 (unrated) to 5"`
}

// SetRatingInput wraps the rating request for Huma.
type SetRatingInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body SetRatingRequest
}

// AddSessionRequest is the request body for a reading session.
type AddSessionRequest struct {
	StartedAt *time.Time `json:"started_at,omitempty" doc:"Session start, defaults to now"`
	EndedAt   *time.Time `json:"ended_at,omitempty" doc:"Session end"`
	StartPage int        `json:"start_page" validate:"gte=0" doc:"First page read"`
	EndPage   int        `json:"end_page" validate:"gte=0" doc:"Last page read"`
	Note      string     `json:"note,omitempty" validate:"max=2000" doc:"Free-text note"`
}

// AddSessionInput wraps the session request for Huma.
type AddSessionInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body AddSessionRequest
}

// AddAnnotationRequest is the request body for an annotation.
type AddAnnotationRequest struct {
	Page int    `json:"page" validate:"gte=0" doc:"Page number"`
	Text string `json:"text" validate:"required,max=5000" doc:"Annotation text"`
}

// AddAnnotationInput wraps the annotation request for Huma.
type AddAnnotationInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body AddAnnotationRequest
}

// === Handlers ===

func (s *Server) handleSetReadingStatus(ctx context.Context, input *SetStatusInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	book, err := s.services.Library.SetReadingStatus(ctx, input.ID, domain.ReadingStatus(input.Body.Status))
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleSetRating(ctx context.Context, input *SetRatingInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	book, err := s.services.Library.SetRating(ctx, input.ID, input.Body.Rating)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleToggleFavorite(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Library.ToggleFavorite(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleAddReadingSession(ctx context.Context, input *AddSessionInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	session := domain.ReadingSession{
		EndedAt:   input.Body.EndedAt,
		StartPage: input.Body.StartPage,
		EndPage:   input.Body.EndPage,
		Note:      input.Body.Note,
	}
	if input.Body.StartedAt != nil {
		session.StartedAt = *input.Body.StartedAt
	}

	book, err := s.services.Library.AddReadingSession(ctx, input.ID, session)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleAddAnnotation(ctx context.Context, input *AddAnnotationInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	book, err := s.services.Library.AddAnnotation(ctx, input.ID, input.Body.Page, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}
