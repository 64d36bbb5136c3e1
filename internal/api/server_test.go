package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/shelfwise/internal/catalog"
	"github.com/listenupapp/shelfwise/internal/domain"
	domainerrors "github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/enrichment"
	"github.com/listenupapp/shelfwise/internal/kv"
	"github.com/listenupapp/shelfwise/internal/library"
	"github.com/listenupapp/shelfwise/internal/logger"
	"github.com/listenupapp/shelfwise/internal/search"
	"github.com/listenupapp/shelfwise/internal/stats"
)

const (
	duneISBN     = "9780441013593"
	gileadISBN   = "9780312424406"
	testAnalysis = `{"themes":["Ecology","Power"],"mood":"epic","narrativeStyle":"third person",
"pacing":"measured","targetAudience":"adult","complexity":"complex","similarBooks":["Hyperion by Dan Simmons"],
"culturalSignificance":"A landmark of the genre.","analysis":"A sweeping story of desert ecology, prophecy and the machinery of empire, seen through a young heir who becomes something larger than himself."}`
)

type fakeCatalog struct {
	mu      sync.Mutex
	volumes []catalog.RawVolume
}

func (f *fakeCatalog) Search(_ context.Context, query string, maxResults int) ([]catalog.RawVolume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []catalog.RawVolume
	for _, v := range f.volumes {
		if strings.Contains(strings.ToLower(v.VolumeInfo.Title), strings.ToLower(query)) {
			out = append(out, v)
		}
		if len(out) == maxResults {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) FetchByIdentifier(_ context.Context, id string) (*catalog.RawVolume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, v := range f.volumes {
		if v.ID == id {
			return &v, nil
		}
		for _, ident := range v.VolumeInfo.IndustryIdentifiers {
			if ident.Identifier == id {
				return &v, nil
			}
		}
	}
	return nil, domainerrors.NotFoundf("volume %s not found", id)
}

type stubTextGen struct{}

func (stubTextGen) Complete(context.Context, string) (string, error) {
	return testAnalysis, nil
}

func testVolume(id, title, isbn13 string, authors ...string) catalog.RawVolume {
	return catalog.RawVolume{
		ID: id,
		VolumeInfo: catalog.VolumeInfo{
			Title:         title,
			Authors:       authors,
			Publisher:     "Test House",
			PublishedDate: "1965-08-01",
			PageCount:     412,
			Language:      "en",
			IndustryIdentifiers: []catalog.IndustryIdentifier{
				{Type: catalog.TypeISBN13, Identifier: isbn13},
			},
		},
	}
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	repo    *library.Repository
	orch    *enrichment.Orchestrator
	index   *search.Index
	cleanup func()
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store := kv.NewMemory()
	index, err := search.New(search.Options{})
	require.NoError(t, err)

	repo := library.NewRepository(store, logger.Discard(), library.WithIndexer(index))
	cat := &fakeCatalog{volumes: []catalog.RawVolume{
		testVolume("dune-1", "Dune", duneISBN, "Frank Herbert"),
		testVolume("gilead-1", "Gilead", gileadISBN, "Marilynne Robinson"),
	}}

	cfg := enrichment.DefaultConfig()
	cfg.Enabled = false
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	orch := enrichment.New(cfg, store, repo, cat, stubTextGen{}, logger.Discard(), enrichment.WithSleeper(noSleep))

	services := &Services{
		Catalog:    cat,
		Library:    repo,
		Enrichment: orch,
		Stats:      stats.NewService(repo, logger.Discard()),
		Search:     index,
	}
	s := NewServer(services, Options{Version: "test"}, logger.Discard())

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		repo:   repo,
		orch:   orch,
		index:  index,
		cleanup: func() {
			orch.Stop()
			_ = index.Close()
			_ = store.Close()
		},
	}
}

// addBook adds a catalog volume through the API and returns the stored book.
func (ts *testServer) addBook(t *testing.T, catalogID string) domain.Book {
	t.Helper()

	resp := ts.api.Post("/api/v1/books", map[string]any{"catalog_id": catalogID})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var book domain.Book
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &book))
	return book
}

func decodeError(t *testing.T, body []byte) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	return apiErr
}

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))

	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["store"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
	assert.Equal(t, "healthy", health.Components["enrichment"].Status)
}

func TestHealthCheck_ReportsQueueDepth(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
	assert.Equal(t, "1 book(s) queued", health.Components["enrichment"].Message)
}

func TestHealthCheck_DegradedWithoutSearch(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()
	ts.services.Search = nil

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Components["search"].Status)
}

func TestCatalogSearch(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/catalog/search?q=dune")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result CatalogResultsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, "dune", result.Query)
	require.Len(t, result.Books, 1)
	assert.Equal(t, "Dune", result.Books[0].Title)
	assert.Equal(t, duneISBN, result.Books[0].ISBN)
	assert.Equal(t, "Frank Herbert", result.Books[0].Authors[0].Name)
}

func TestCatalogSearch_RejectsBadParams(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/catalog/search?q=dune&max=500")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)
}

func TestLookupISBN(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	t.Run("hyphenated ISBN is normalized", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/catalog/isbn/978-0-441-01359-3")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var book domain.MinimalBook
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &book))
		assert.Equal(t, "dune-1", book.ID)
	})

	t.Run("invalid ISBN", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/catalog/isbn/12345")
		require.Equal(t, http.StatusBadRequest, resp.Code)

		apiErr := decodeError(t, resp.Body.Bytes())
		assert.Equal(t, "VALIDATION", apiErr.Code)
		assert.Contains(t, apiErr.Details, "isbn")
	})

	t.Run("unknown ISBN", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/catalog/isbn/9780306406157")
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body.Bytes()).Code)
	})
}

func TestAddBook(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	book := ts.addBook(t, "dune-1")

	assert.Equal(t, "dune-1", book.ID)
	assert.Equal(t, duneISBN, book.ISBN)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, domain.StatusToRead, book.ReadingStatus)

	queued, err := ts.orch.IsQueued(context.Background(), duneISBN)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestAddBook_Duplicate(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	resp := ts.api.Post("/api/v1/books", map[string]any{"catalog_id": "dune-1"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, resp.Body.Bytes()).Code)
}

func TestAddBook_MissingCatalogID(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/books", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	apiErr := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.NotEmpty(t, apiErr.Details)
}

func TestAddBook_UnknownCatalogID(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/books", map[string]any{"catalog_id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListBooks(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")
	ts.addBook(t, "gilead-1")

	resp := ts.api.Put("/api/v1/books/gilead-1/status", map[string]any{"status": "reading"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	t.Run("all", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/books")
		require.Equal(t, http.StatusOK, resp.Code)

		var list ListBooksResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
		assert.Equal(t, 2, list.Total)
	})

	t.Run("filtered by status", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/books?status=reading")
		require.Equal(t, http.StatusOK, resp.Code)

		var list ListBooksResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
		require.Equal(t, 1, list.Total)
		assert.Equal(t, "gilead-1", list.Books[0].ID)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/books?status=shelved")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestGetBook_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/books/nope")
	require.Equal(t, http.StatusNotFound, resp.Code)

	apiErr := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Contains(t, apiErr.Message, "nope")
}

func TestDeleteBook(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	resp := ts.api.Delete("/api/v1/books/dune-1")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/books/dune-1")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/books/dune-1")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateSectionAndCompletion(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	resp := ts.api.Get("/api/v1/books/dune-1/completion")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var before CompletionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &before))
	assert.True(t, before.Status.BasicInfoComplete)
	assert.True(t, before.NeedsWork)
	assert.NotEmpty(t, before.Suggestions)

	resp = ts.api.Put("/api/v1/books/dune-1/sections/genres", map[string]any{
		"value": []string{"Science Fiction", "Classic"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var book domain.Book
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &book))
	assert.Equal(t, []string{"Science Fiction", "Classic"}, book.Genres)

	resp = ts.api.Get("/api/v1/books/dune-1/completion")
	require.Equal(t, http.StatusOK, resp.Code)

	var after CompletionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &after))
	assert.Greater(t, after.Percentage, before.Percentage)
	assert.Len(t, after.Suggestions, len(before.Suggestions)-1)
}

func TestUpdateSection_Errors(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	t.Run("unknown field", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/dune-1/sections/wingspan", map[string]any{"value": 3})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)
	})

	t.Run("wrong value shape", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/dune-1/sections/pageCount", map[string]any{"value": "many"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("missing book", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/nope/sections/genres", map[string]any{"value": []string{"x"}})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestListIncompleteBooks(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	resp := ts.api.Get("/api/v1/books/incomplete")
	require.Equal(t, http.StatusOK, resp.Code)

	var list ListBooksResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	resp = ts.api.Get("/api/v1/books/incomplete?threshold=10")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Zero(t, list.Total)

	resp = ts.api.Get("/api/v1/books/incomplete?threshold=0")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "zero would silently mean the default")
}

func TestReadingOperations(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	decodeBook := func(t *testing.T, body []byte) domain.Book {
		t.Helper()
		var b domain.Book
		require.NoError(t, json.Unmarshal(body, &b))
		return b
	}

	t.Run("session moves to-read book to reading", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/books/dune-1/sessions", map[string]any{
			"started_at": "2026-03-01T20:00:00Z",
			"ended_at":   "2026-03-01T21:00:00Z",
			"start_page": 1,
			"end_page":   40,
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		book := decodeBook(t, resp.Body.Bytes())
		assert.Equal(t, domain.StatusReading, book.ReadingStatus)
		require.Len(t, book.ReadingSessions, 1)
		assert.Equal(t, 40, book.ReadingSessions[0].EndPage)
	})

	t.Run("annotation", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/books/dune-1/annotations", map[string]any{
			"page": 12,
			"text": "Fear is the mind-killer.",
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		book := decodeBook(t, resp.Body.Bytes())
		require.Len(t, book.Annotations, 1)
		assert.Equal(t, 12, book.Annotations[0].Page)
	})

	t.Run("annotation without text", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/books/dune-1/annotations", map[string]any{"page": 3, "text": ""})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, decodeError(t, resp.Body.Bytes()).Details, "text")
	})

	t.Run("rating", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/dune-1/rating", map[string]any{"rating": 5})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, 5, decodeBook(t, resp.Body.Bytes()).UserRating)
	})

	t.Run("rating out of range", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/dune-1/rating", map[string]any{"rating": 7})
		require.Equal(t, http.StatusBadRequest, resp.Code)

		apiErr := decodeError(t, resp.Body.Bytes())
		assert.Equal(t, "VALIDATION", apiErr.Code)
		assert.Equal(t, map[string]any{"rating": "must be less than or equal to 5"}, apiErr.Details)
	})

	t.Run("favorite toggles", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/books/dune-1/favorite")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.True(t, decodeBook(t, resp.Body.Bytes()).Favorite)

		resp = ts.api.Post("/api/v1/books/dune-1/favorite")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.False(t, decodeBook(t, resp.Body.Bytes()).Favorite)
	})

	t.Run("invalid status", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/dune-1/status", map[string]any{"status": "shelved"})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, decodeError(t, resp.Body.Bytes()).Details, "status")
	})

	t.Run("completed then reading counts a reread", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/books/dune-1/status", map[string]any{"status": "completed"})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		resp = ts.api.Put("/api/v1/books/dune-1/status", map[string]any{"status": "reading"})
		require.Equal(t, http.StatusOK, resp.Code)

		book := decodeBook(t, resp.Body.Bytes())
		assert.True(t, book.Reread)
		assert.Equal(t, 1, book.RereadCount)
	})
}

func TestEnrichmentFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")

	resp := ts.api.Post("/api/v1/books/dune-1/enrich")
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())

	var req EnrichmentRequestResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &req))
	assert.Equal(t, duneISBN, req.ISBN)
	assert.True(t, req.Queued)
	assert.False(t, req.Started, "background enrichment is disabled")

	resp = ts.api.Get("/api/v1/enrichment/queue")
	require.Equal(t, http.StatusOK, resp.Code)

	var queue QueueResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &queue))
	assert.Equal(t, []QueueEntry{{ISBN: duneISBN, Retries: 0}}, queue.Entries)

	resp = ts.api.Post("/api/v1/enrichment/process")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result enrichment.ProcessResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, enrichment.ProcessResult{Processed: 1, Enriched: 1}, result)

	resp = ts.api.Get("/api/v1/enrichment/queue")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &queue))
	assert.Zero(t, queue.Total)

	resp = ts.api.Get("/api/v1/books/dune-1")
	var book domain.Book
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &book))
	require.NotNil(t, book.AIEnrichment)
	assert.Equal(t, []string{"epic"}, book.Mood)

	resp = ts.api.Get("/api/v1/search?q=ecology")
	require.Equal(t, http.StatusOK, resp.Code)
	var found search.Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &found))
	require.NotEmpty(t, found.Hits, "enriched themes are searchable")
	assert.Equal(t, "dune-1", found.Hits[0].ID)
}

func TestRequestEnrichment_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Post("/api/v1/books/nope/enrich")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDashboard(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")
	ts.addBook(t, "gilead-1")

	resp := ts.api.Put("/api/v1/books/dune-1/rating", map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/stats")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var d stats.Dashboard
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &d))
	assert.Equal(t, 2, d.TotalBooks)
	assert.Equal(t, 824, d.TotalPages)
	assert.InDelta(t, 4.0, d.AverageRating, 0.001)
	assert.Contains(t, d.StatusCounts, stats.Point{Label: "to-read", Value: 2})
	assert.Equal(t, []stats.Point{{Label: "1960s", Value: 2}}, d.DecadeCounts)
}

func TestSearch(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")
	ts.addBook(t, "gilead-1")

	t.Run("by author", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/search?q=robinson")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var result search.Result
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
		require.Len(t, result.Hits, 1)
		assert.Equal(t, "gilead-1", result.Hits[0].ID)
	})

	t.Run("empty query lists everything", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/search")
		require.Equal(t, http.StatusOK, resp.Code)

		var result search.Result
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
		assert.EqualValues(t, 2, result.Total)
	})

	t.Run("limit out of range", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/search?q=dune&limit=1000")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("deleted books drop out", func(t *testing.T) {
		resp := ts.api.Delete("/api/v1/books/gilead-1")
		require.Equal(t, http.StatusNoContent, resp.Code)

		resp = ts.api.Get("/api/v1/search?q=robinson")
		var result search.Result
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
		assert.Empty(t, result.Hits)
	})
}

func TestReindex(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.addBook(t, "dune-1")
	ts.addBook(t, "gilead-1")

	resp := ts.api.Post("/api/v1/search/reindex")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out ReindexResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Documents)

	count, err := ts.index.DocumentCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestSearch_WithoutIndex(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()
	ts.services.Search = nil

	resp := ts.api.Get("/api/v1/search?q=dune")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "INTERNAL", decodeError(t, resp.Body.Bytes()).Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/nothing-here")
	require.Equal(t, http.StatusNotFound, resp.Code)

	apiErr := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/health", "Origin: https://shelf.example")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenAPIDocument(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	oapi := ts.API().OpenAPI()
	assert.Equal(t, "shelfwise API", oapi.Info.Title)
	assert.Equal(t, "test", oapi.Info.Version)
	for _, path := range []string{
		"/api/v1/books", "/api/v1/books/{id}", "/api/v1/books/{id}/enrich",
		"/api/v1/enrichment/queue", "/api/v1/stats", "/api/v1/search",
	} {
		assert.Contains(t, oapi.Paths, path)
	}
}
