package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/shelfwise/internal/domain"
)

// Index wraps a Bleve index with book-specific operations.
//
// All public methods are safe for concurrent use. Reindex takes the write
// lock while it swaps the underlying index.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage; empty keeps the index in memory
	Logger   *slog.Logger // Uses a discard logger if nil
}

// mappingVersion is incremented whenever the index mapping changes so that
// an on-disk index built with an older mapping is rebuilt on startup.
const mappingVersion = "1"

const (
	indexDirName    = "search.bleve"
	versionFileName = "search.version"
	batchSize       = 500
	reindexWorkers  = 4
)

// New creates or opens a search index. An existing on-disk index is reused
// unless it is unreadable or was built with a different mapping version, in
// which case it is removed and recreated empty.
func New(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: index, logger: logger}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, indexDirName)
	versionPath := filepath.Join(opts.DataPath, versionFileName)

	var index bleve.Index
	if _, statErr := os.Stat(indexPath); statErr == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
		case string(existing) != mappingVersion:
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
		default:
			opened, err := bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
			} else {
				index = opened
			}
		}
	}

	if index == nil {
		created, err := createOnDisk(indexPath, versionPath, logger)
		if err != nil {
			return nil, err
		}
		index = created
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

func createOnDisk(indexPath, versionPath string, logger *slog.Logger) (bleve.Index, error) {
	if err := os.RemoveAll(indexPath); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	index, err := bleve.New(indexPath, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
		logger.Warn("failed to write search version file", "error", err)
	}
	logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	return index, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces the document for a book.
func (s *Index) IndexBook(_ context.Context, book *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Index(book.ID, FromBook(book).ToMap()); err != nil {
		return fmt.Errorf("index book %s: %w", book.ID, err)
	}
	return nil
}

// DeleteBook removes a book's document. Deleting an unknown id is not an error.
func (s *Index) DeleteBook(_ context.Context, bookID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Delete(bookID); err != nil {
		return fmt.Errorf("delete book %s: %w", bookID, err)
	}
	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Reindex drops every document and indexes books from scratch. Batches are
// committed concurrently. It returns the number of documents indexed.
func (s *Index) Reindex(ctx context.Context, books []*domain.Book) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reset(); err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexWorkers)

	for start := 0; start < len(books); start += batchSize {
		chunk := books[start:min(start+batchSize, len(books))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch := s.index.NewBatch()
			for _, b := range chunk {
				if err := batch.Index(b.ID, FromBook(b).ToMap()); err != nil {
					return fmt.Errorf("batch index %s: %w", b.ID, err)
				}
			}
			if err := s.index.Batch(batch); err != nil {
				return fmt.Errorf("commit batch at %d: %w", start, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.logger.Info("search index rebuilt", "documents", len(books))
	return len(books), nil
}

// reset replaces the index with an empty one. Callers hold the write lock.
func (s *Index) reset() error {
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if s.path == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return fmt.Errorf("create in-memory index: %w", err)
		}
		s.index = index
		return nil
	}

	versionPath := filepath.Join(filepath.Dir(s.path), versionFileName)
	index, err := createOnDisk(s.path, versionPath, s.logger)
	if err != nil {
		return err
	}
	s.index = index
	return nil
}
