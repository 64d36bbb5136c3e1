// Package library is the book repository: CRUD over the reader's collection
// and per-book metadata completion tracking, persisted in a kv.Store.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/shelfwise/internal/domain"
	domainerrors "github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/kv"
)

// Persisted keys.
const (
	KeyBooks          = "books"
	KeyMetadataStatus = "metadata_status"
)

// DefaultCompletionThreshold is the completion percentage below which a book
// is considered to need more metadata.
const DefaultCompletionThreshold = 80

// Indexer is notified after books are saved or deleted so search stays in sync.
// Failures are logged, never returned to the caller.
type Indexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopIndexer is an Indexer that does nothing.
type NoopIndexer struct{}

// IndexBook is a no-op.
func (NoopIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook is a no-op.
func (NoopIndexer) DeleteBook(context.Context, string) error { return nil }

// Repository stores books and their metadata status. Every read-modify-write
// of the persisted lists happens under mu, so concurrent callers cannot lose
// each other's updates.
type Repository struct {
	mu      sync.Mutex
	store   kv.Store
	logger  *slog.Logger
	indexer Indexer
	now     func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIndexer sets the search indexer.
func WithIndexer(idx Indexer) Option {
	return func(r *Repository) {
		if idx != nil {
			r.indexer = idx
		}
	}
}

// NewRepository creates a repository over store.
func NewRepository(store kv.Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:   store,
		logger:  logger,
		indexer: NoopIndexer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetIndexer replaces the search indexer after construction.
func (r *Repository) SetIndexer(idx Indexer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx == nil {
		idx = NoopIndexer{}
	}
	r.indexer = idx
}

// Create builds a fully defaulted book from m and persists it together with
// a fresh metadata status (basic info complete, everything else outstanding).
func (r *Repository) Create(ctx context.Context, m domain.MinimalBook) (*domain.Book, error) {
	if m.ID == "" {
		return nil, domainerrors.Validation("book id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.loadBooks(ctx)
	if err != nil {
		return nil, err
	}
	if indexOf(books, m.ID) >= 0 {
		return nil, domainerrors.Conflictf("book %s is already in the collection", m.ID)
	}

	now := r.now()
	book := domain.NewBook(m, now)
	books = append(books, book)
	if err := r.saveBooks(ctx, books); err != nil {
		return nil, err
	}
	if err := r.ensureStatus(ctx, book.ID, now); err != nil {
		return nil, err
	}

	r.index(ctx, book)
	r.logger.Info("book created", "book_id", book.ID, "isbn", book.ISBN, "title", book.Title)
	return book.Clone(), nil
}

// Save upserts book by ID and stamps LastModified. A metadata status is
// created if the book is new, and any sections given are marked complete.
func (r *Repository) Save(ctx context.Context, book *domain.Book, sections ...domain.Section) (*domain.Book, error) {
	if book == nil || book.ID == "" {
		return nil, domainerrors.Validation("book id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.loadBooks(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	saved := book.Clone()
	saved.LastModified = now
	if saved.DateAdded.IsZero() {
		saved.DateAdded = now
	}

	if i := indexOf(books, saved.ID); i >= 0 {
		books[i] = saved
	} else {
		books = append(books, saved)
	}
	if err := r.saveBooks(ctx, books); err != nil {
		return nil, err
	}
	if err := r.ensureStatus(ctx, saved.ID, now, sections...); err != nil {
		return nil, err
	}

	r.index(ctx, saved)
	return saved.Clone(), nil
}

// GetByID returns the book with id or a not-found error.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.loadBooks(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(books, id)
	if i < 0 {
		return nil, domainerrors.NotFoundf("book %s not found", id)
	}
	return books[i], nil
}

// GetAll returns every book in insertion order.
func (r *Repository) GetAll(ctx context.Context) ([]*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadBooks(ctx)
}

// Delete removes a book and its metadata status. It reports whether the book existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.loadBooks(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(books, id)
	if i < 0 {
		return false, nil
	}
	if err := r.saveBooks(ctx, slices.Delete(books, i, i+1)); err != nil {
		return false, err
	}

	statuses, err := r.loadStatuses(ctx)
	if err != nil {
		return false, err
	}
	statuses = slices.DeleteFunc(statuses, func(s domain.MetadataStatus) bool { return s.BookID == id })
	if err := kv.SetJSON(ctx, r.store, KeyMetadataStatus, statuses); err != nil {
		return false, fmt.Errorf("save metadata status: %w", err)
	}

	if err := r.indexer.DeleteBook(ctx, id); err != nil {
		r.logger.Warn("failed to remove book from search index", "book_id", id, "error", err)
	}
	r.logger.Info("book deleted", "book_id", id)
	return true, nil
}

// UpdateSection overwrites exactly one named field with value, bumps
// LastModified and marks the field's section complete. value is converted to
// the field's type through JSON, so a []string, a json.RawMessage or a
// decoded map all work.
func (r *Repository) UpdateSection(ctx context.Context, id, field string, value any) (*domain.Book, error) {
	raw, err := toRaw(value)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "value for %s is not encodable", field)
	}

	return r.mutate(ctx, id, func(book *domain.Book, status *domain.MetadataStatus, now time.Time) error {
		if err := book.SetField(field, raw); err != nil {
			if errors.Is(err, domain.ErrUnknownField) {
				return domainerrors.Validationf("unknown field %q", field)
			}
			return domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid value for %s", field)
		}
		if section, ok := domain.SectionForField(field); ok {
			status.Mark(section, now)
		}
		return nil
	})
}

// MergeEnrichment applies fn to the stored copy of book id and marks every
// section the result fills as complete. fn sees the current record, so edits
// made since the caller read the book survive. A book deleted in the meantime
// yields a not-found error and nothing is written.
func (r *Repository) MergeEnrichment(ctx context.Context, id string, fn func(*domain.Book)) (*domain.Book, error) {
	return r.mutate(ctx, id, func(book *domain.Book, status *domain.MetadataStatus, now time.Time) error {
		fn(book)
		for _, s := range domain.FilledSections(book) {
			status.Mark(s, now)
		}
		return nil
	})
}

// MetadataStatus returns the completion status for id or a not-found error.
func (r *Repository) MetadataStatus(ctx context.Context, id string) (domain.MetadataStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses, err := r.loadStatuses(ctx)
	if err != nil {
		return domain.MetadataStatus{}, err
	}
	for _, s := range statuses {
		if s.BookID == id {
			return s, nil
		}
	}
	return domain.MetadataStatus{}, domainerrors.NotFoundf("metadata status for %s not found", id)
}

// CompletionPercentage returns round(complete sections / 8 * 100), or 0 when
// the book has no status.
func (r *Repository) CompletionPercentage(ctx context.Context, id string) (int, error) {
	status, err := r.MetadataStatus(ctx, id)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return status.Percentage(), nil
}

// CompletionSuggestions lists the labels of incomplete sections in priority
// order. A book without a status has no suggestions.
func (r *Repository) CompletionSuggestions(ctx context.Context, id string) ([]string, error) {
	status, err := r.MetadataStatus(ctx, id)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	incomplete := status.Incomplete()
	out := make([]string, len(incomplete))
	for i, s := range incomplete {
		out[i] = s.Label()
	}
	return out, nil
}

// BooksNeedingCompletion returns books whose completion is strictly below
// threshold. A non-positive threshold means DefaultCompletionThreshold.
func (r *Repository) BooksNeedingCompletion(ctx context.Context, threshold int) ([]*domain.Book, error) {
	if threshold <= 0 {
		threshold = DefaultCompletionThreshold
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.loadBooks(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := r.loadStatuses(ctx)
	if err != nil {
		return nil, err
	}

	pct := make(map[string]int, len(statuses))
	for _, s := range statuses {
		pct[s.BookID] = s.Percentage()
	}

	out := []*domain.Book{}
	for _, b := range books {
		if pct[b.ID] < threshold {
			out = append(out, b)
		}
	}
	return out, nil
}

// mutate loads book id and its status, applies fn and persists both.
func (r *Repository) mutate(ctx context.Context, id string, fn func(*domain.Book, *domain.MetadataStatus, time.Time) error) (*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.loadBooks(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(books, id)
	if i < 0 {
		return nil, domainerrors.NotFoundf("book %s not found", id)
	}

	statuses, err := r.loadStatuses(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	si := slices.IndexFunc(statuses, func(s domain.MetadataStatus) bool { return s.BookID == id })
	if si < 0 {
		statuses = append(statuses, domain.NewMetadataStatus(id, now))
		si = len(statuses) - 1
	}

	book := books[i]
	status := statuses[si]
	if err := fn(book, &status, now); err != nil {
		return nil, err
	}
	book.LastModified = now
	statuses[si] = status

	if err := r.saveBooks(ctx, books); err != nil {
		return nil, err
	}
	if err := kv.SetJSON(ctx, r.store, KeyMetadataStatus, statuses); err != nil {
		return nil, fmt.Errorf("save metadata status: %w", err)
	}

	r.index(ctx, book)
	return book.Clone(), nil
}

// ensureStatus creates a status for bookID if none exists and marks sections
// complete. Caller holds mu.
func (r *Repository) ensureStatus(ctx context.Context, bookID string, now time.Time, sections ...domain.Section) error {
	statuses, err := r.loadStatuses(ctx)
	if err != nil {
		return err
	}

	changed := false
	i := slices.IndexFunc(statuses, func(s domain.MetadataStatus) bool { return s.BookID == bookID })
	if i < 0 {
		statuses = append(statuses, domain.NewMetadataStatus(bookID, now))
		i = len(statuses) - 1
		changed = true
	}
	for _, s := range sections {
		if statuses[i].Mark(s, now) {
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if err := kv.SetJSON(ctx, r.store, KeyMetadataStatus, statuses); err != nil {
		return fmt.Errorf("save metadata status: %w", err)
	}
	return nil
}

func (r *Repository) index(ctx context.Context, book *domain.Book) {
	if err := r.indexer.IndexBook(ctx, book); err != nil {
		r.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}

func (r *Repository) loadBooks(ctx context.Context) ([]*domain.Book, error) {
	books, _, err := kv.GetJSON[[]*domain.Book](ctx, r.store, KeyBooks)
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}
	if books == nil {
		books = []*domain.Book{}
	}
	return books, nil
}

func (r *Repository) saveBooks(ctx context.Context, books []*domain.Book) error {
	if err := kv.SetJSON(ctx, r.store, KeyBooks, books); err != nil {
		return fmt.Errorf("save books: %w", err)
	}
	return nil
}

func (r *Repository) loadStatuses(ctx context.Context) ([]domain.MetadataStatus, error) {
	statuses, _, err := kv.GetJSON[[]domain.MetadataStatus](ctx, r.store, KeyMetadataStatus)
	if err != nil {
		return nil, fmt.Errorf("load metadata status: %w", err)
	}
	return statuses, nil
}

func indexOf(books []*domain.Book, id string) int {
	return slices.IndexFunc(books, func(b *domain.Book) bool { return b.ID == id })
}

func toRaw(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	}
	return json.Marshal(value)
}
