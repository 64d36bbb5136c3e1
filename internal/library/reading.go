package library

import (
	"context"
	"strings"
	"time"

	"github.com/listenupapp/shelfwise/internal/domain"
	domainerrors "github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/id"
)

// AddReadingSession appends a reading session. StartedAt defaults to now and
// an ID is assigned.
func (r *Repository) AddReadingSession(ctx context.Context, bookID string, s domain.ReadingSession) (*domain.Book, error) {
	if s.StartPage < 0 || s.EndPage < 0 {
		return nil, domainerrors.Validation("page numbers must not be negative")
	}
	if s.EndPage > 0 && s.EndPage < s.StartPage {
		return nil, domainerrors.Validation("end page is before start page")
	}

	return r.mutate(ctx, bookID, func(book *domain.Book, _ *domain.MetadataStatus, now time.Time) error {
		s.ID = id.UUID()
		if s.StartedAt.IsZero() {
			s.StartedAt = now
		}
		book.ReadingSessions = append(book.ReadingSessions, s)
		if book.ReadingStatus == domain.StatusToRead {
			book.ReadingStatus = domain.StatusReading
		}
		return nil
	})
}

// AddAnnotation pins a note to a page.
func (r *Repository) AddAnnotation(ctx context.Context, bookID string, page int, text string) (*domain.Book, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domainerrors.Validation("annotation text is required")
	}
	if page < 0 {
		return nil, domainerrors.Validation("page must not be negative")
	}

	return r.mutate(ctx, bookID, func(book *domain.Book, _ *domain.MetadataStatus, now time.Time) error {
		book.Annotations = append(book.Annotations, domain.Annotation{
			ID:        id.UUID(),
			Page:      page,
			Text:      text,
			CreatedAt: now,
		})
		return nil
	})
}

// SetReadingStatus changes the reading status. Starting a completed book
// again counts as a reread.
func (r *Repository) SetReadingStatus(ctx context.Context, bookID string, status domain.ReadingStatus) (*domain.Book, error) {
	if !status.Valid() {
		return nil, domainerrors.Validationf("unknown reading status %q", status)
	}

	return r.mutate(ctx, bookID, func(book *domain.Book, _ *domain.MetadataStatus, _ time.Time) error {
		if book.ReadingStatus == domain.StatusCompleted && status == domain.StatusReading {
			book.Reread = true
			book.RereadCount++
		}
		book.ReadingStatus = status
		return nil
	})
}

// SetRating sets the user rating, 0 (unrated) through domain.MaxRating.
func (r *Repository) SetRating(ctx context.Context, bookID string, rating int) (*domain.Book, error) {
	if rating < 0 || rating > domain.MaxRating {
		return nil, domainerrors.Validationf("rating must be between 0 and %d", domain.MaxRating)
	}

	return r.mutate(ctx, bookID, func(book *domain.Book, _ *domain.MetadataStatus, _ time.Time) error {
		book.UserRating = rating
		return nil
	})
}

// ToggleFavorite flips the favourite flag.
func (r *Repository) ToggleFavorite(ctx context.Context, bookID string) (*domain.Book, error) {
	return r.mutate(ctx, bookID, func(book *domain.Book, _ *domain.MetadataStatus, _ time.Time) error {
		book.Favorite = !book.Favorite
		return nil
	})
}
