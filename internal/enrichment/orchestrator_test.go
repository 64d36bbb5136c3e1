package enrichment

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/shelfwise/internal/catalog"
	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/fallback"
	"github.com/listenupapp/shelfwise/internal/kv"
	"github.com/listenupapp/shelfwise/internal/library"
	"github.com/listenupapp/shelfwise/internal/logger"
)

const (
	scenarioID   = "abc123"
	scenarioISBN = "9780000000001"
)

const goodAnalysis = `{"themes":["Loss","Memory"],"mood":"melancholic","narrativeStyle":"first person",
"pacing":"slow","targetAudience":"adult","complexity":"moderate","similarBooks":["Never Let Me Go by Kazuo Ishiguro"],
"culturalSignificance":"A quiet modern classic.","analysis":"A restrained meditation on grief and the unreliability of memory, told through a narrator who keeps circling the same afternoon."}`

type fakeCatalog struct {
	mu      sync.Mutex
	volumes map[string]catalog.RawVolume
	err     error
	calls   int
}

func (f *fakeCatalog) FetchByIdentifier(_ context.Context, id string) (*catalog.RawVolume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.volumes[id]
	if !ok {
		return nil, errors.NotFoundf("volume %s not found", id)
	}
	return &v, nil
}

type fakeTextGen struct {
	calls   atomic.Int32
	respond func(prompt string) (string, error)
}

func (f *fakeTextGen) Complete(_ context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	return f.respond(prompt)
}

func failingTextGen() *fakeTextGen {
	return &fakeTextGen{respond: func(string) (string, error) {
		return "", errors.Networkf("completion returned status %d", 503)
	}}
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func volume(id, isbn13 string) catalog.RawVolume {
	v := catalog.RawVolume{
		ID: id,
		VolumeInfo: catalog.VolumeInfo{
			Title:   "Test Book",
			Authors: []string{"A. Author"},
		},
	}
	if isbn13 != "" {
		v.VolumeInfo.IndustryIdentifiers = []catalog.IndustryIdentifier{{Type: catalog.TypeISBN13, Identifier: isbn13}}
	}
	return v
}

type harness struct {
	orch    *Orchestrator
	repo    *library.Repository
	store   kv.Store
	catalog *fakeCatalog
	textgen *fakeTextGen
	sleeper *recordingSleeper
}

func newHarness(t *testing.T, cfg Config, tg *fakeTextGen, opts ...Option) *harness {
	t.Helper()
	store := kv.NewMemory()
	repo := library.NewRepository(store, logger.Discard())
	cat := &fakeCatalog{volumes: map[string]catalog.RawVolume{
		"abc123": volume("abc123", scenarioISBN),
	}}
	sleeper := &recordingSleeper{}

	opts = append([]Option{WithSleeper(sleeper.Sleep)}, opts...)
	orch := New(cfg, store, repo, cat, tg, logger.Discard(), opts...)
	t.Cleanup(func() {
		orch.Stop()
		_ = store.Close()
	})

	return &harness{orch: orch, repo: repo, store: store, catalog: cat, textgen: tg, sleeper: sleeper}
}

func manualConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = false
	return cfg
}

func TestAddBookToLibrary_Scenario(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", book.ID)
	assert.Equal(t, scenarioISBN, book.ISBN)
	assert.Equal(t, domain.StatusToRead, book.ReadingStatus)
	assert.Zero(t, book.UserRating)

	status, err := h.repo.MetadataStatus(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, status.BasicInfoComplete)
	assert.Equal(t, 1, status.CompleteCount(), "only basic info is complete")

	pct, err := h.repo.CompletionPercentage(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, pct)

	queued, err := h.orch.IsQueued(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.True(t, queued)

	needs, err := h.orch.NeedsEnrichment(ctx, book)
	require.NoError(t, err)
	assert.True(t, needs)

	assert.Zero(t, h.textgen.calls.Load(), "background enrichment is disabled")
}

func TestAddBookToLibrary_SharedCacheDedupesEnrichment(t *testing.T) {
	tg := &fakeTextGen{respond: func(string) (string, error) { return goodAnalysis, nil }}
	h := newHarness(t, DefaultConfig(), tg)
	h.catalog.volumes["def456"] = volume("def456", scenarioISBN)
	ctx := context.Background()

	first, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, first.AIEnrichment, "the add returns before enrichment")
	h.orch.Wait()
	assert.Equal(t, int32(1), tg.calls.Load())

	enriched, err := h.repo.GetByID(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, enriched.HasEnrichment())
	assert.Equal(t, domain.SourceHolistic, enriched.AIEnrichment.Source)
	assert.Len(t, enriched.Themes, 2)

	cached, ok, err := h.orch.Cached(ctx, scenarioISBN)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc123", cached.ID)

	_, err = h.repo.SetRating(ctx, "abc123", 5)
	require.NoError(t, err)

	second, err := h.orch.AddBookToLibrary(ctx, "def456")
	require.NoError(t, err)
	h.orch.Wait()

	assert.Equal(t, int32(1), tg.calls.Load(), "second add is served from the shared cache")
	assert.Equal(t, "def456", second.ID)
	assert.True(t, second.HasEnrichment())
	assert.Equal(t, domain.StatusToRead, second.ReadingStatus)
	assert.Zero(t, second.UserRating, "user fields are reset on a cache hit")

	pct, err := h.repo.CompletionPercentage(ctx, "def456")
	require.NoError(t, err)
	assert.Greater(t, pct, 13, "cloned enrichment counts toward completion")

	queue, err := h.orch.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestAddBookToLibrary_PlaceholderISBNIsNotQueued(t *testing.T) {
	h := newHarness(t, DefaultConfig(), failingTextGen())
	h.catalog.volumes["noisbn"] = volume("noisbn", "")
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "noisbn")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(book.ISBN, domain.PlaceholderISBNPrefix))

	h.orch.Wait()
	queue, err := h.orch.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
	assert.Zero(t, h.textgen.calls.Load())
}

func TestAddBookToLibrary_Errors(t *testing.T) {
	t.Run("catalog failure propagates", func(t *testing.T) {
		h := newHarness(t, manualConfig(), failingTextGen())
		h.catalog.err = errors.Networkf("catalog returned status %d", 502)

		_, err := h.orch.AddBookToLibrary(context.Background(), "abc123")
		assert.ErrorIs(t, err, errors.ErrNetwork)

		all, err := h.repo.GetAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("unknown volume", func(t *testing.T) {
		h := newHarness(t, manualConfig(), failingTextGen())
		_, err := h.orch.AddBookToLibrary(context.Background(), "nope")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("already in collection", func(t *testing.T) {
		h := newHarness(t, manualConfig(), failingTextGen())
		_, err := h.orch.AddBookToLibrary(context.Background(), "abc123")
		require.NoError(t, err)
		_, err = h.orch.AddBookToLibrary(context.Background(), "abc123")
		assert.ErrorIs(t, err, errors.ErrConflict)
		assert.Equal(t, 1, h.catalog.calls)
	})

	t.Run("empty id", func(t *testing.T) {
		h := newHarness(t, manualConfig(), failingTextGen())
		_, err := h.orch.AddBookToLibrary(context.Background(), "  ")
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func assertTerminal(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()

	queued, err := h.orch.IsQueued(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.False(t, queued)

	count, err := h.orch.RetryCount(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, ok, err := h.store.Get(ctx, RetryKeyPrefix+scenarioISBN)
	require.NoError(t, err)
	assert.False(t, ok, "counter key is removed")

	book, err := h.repo.GetByID(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, book.AIEnrichment)
	assert.True(t, book.AIEnrichment.Pending)
	assert.Equal(t, domain.PendingAnalysisNote, book.AIEnrichment.Analysis)
	assert.False(t, book.HasEnrichment())
}

func TestRetryCeiling_ProcessQueue(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	// The first attempt and two retries fail; the third retry is still allowed.
	wantRetry := []int{1, 2, 3}
	for i, want := range wantRetry {
		res, err := h.orch.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Retried, "attempt %d", i+1)

		count, err := h.orch.RetryCount(ctx, scenarioISBN)
		require.NoError(t, err)
		assert.Equal(t, want, count)

		queued, err := h.orch.IsQueued(ctx, scenarioISBN)
		require.NoError(t, err)
		assert.True(t, queued, "stays queued below the ceiling")
	}

	// The fourth consecutive failure is terminal.
	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Retried)
	assert.Equal(t, int32(16), h.textgen.calls.Load(), "four attempts of one holistic and three field calls")

	res, err = h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed, "nothing left after the ceiling")

	assertTerminal(t, h)
}

func TestRetryCeiling_BackgroundRetries(t *testing.T) {
	tg := failingTextGen()
	h := newHarness(t, DefaultConfig(), tg)
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)
	h.orch.Wait()

	assertTerminal(t, h)

	// Four attempts, each one holistic call plus three field calls.
	assert.Equal(t, int32(16), tg.calls.Load())

	retryWaits := 0
	for _, d := range h.sleeper.Delays() {
		if d == DefaultConfig().RetryDelay {
			retryWaits++
		}
	}
	assert.Equal(t, 3, retryWaits, "fixed delay before each re-attempt")
}

func TestRetry_RecoversBeforeCeiling(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	tg := &fakeTextGen{respond: func(string) (string, error) {
		if fail.Load() {
			return "", errors.Networkf("completion returned status %d", 502)
		}
		return goodAnalysis, nil
	}}
	h := newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	fail.Store(false)
	res, err = h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enriched)

	count, err := h.orch.RetryCount(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.Zero(t, count, "success clears the counter")

	book, err := h.repo.GetByID(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, book.HasEnrichment())
}

func TestEnrich_FallsBackToFields(t *testing.T) {
	tg := &fakeTextGen{respond: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, AnalysisPrompt):
			return `{"analysis": "Analysis pending."}`, nil
		case strings.HasPrefix(prompt, ThemesPrompt):
			return "```json\n[{\"name\":\"Loss\",\"relevance\":5,\"userNotes\":\"x\"}]\n```", nil
		case strings.HasPrefix(prompt, GenresPrompt):
			return "I think it's probably literary fiction.", nil
		case strings.HasPrefix(prompt, CharactersPrompt):
			return `{"characters": [{"name": "Mara", "role": "protagonist", "traits": ["stubborn", " ", "stubborn"]}]}`, nil
		}
		t.Errorf("unexpected prompt: %.40s", prompt)
		return "", errors.Parsef("unexpected prompt")
	}}
	h := newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	enriched, err := h.orch.Enrich(ctx, book)
	require.NoError(t, err)

	assert.Equal(t, int32(4), tg.calls.Load(), "holistic plus three fields")
	assert.Equal(t, []domain.Theme{{Name: "Loss", Relevance: 5, Note: "x"}}, enriched.Themes)
	assert.Empty(t, enriched.Genres, "unparseable field is left empty")
	require.Len(t, enriched.Characters, 1)
	assert.Equal(t, []string{"stubborn"}, enriched.Characters[0].Traits)

	require.NotNil(t, enriched.AIEnrichment)
	assert.Equal(t, domain.SourceFields, enriched.AIEnrichment.Source)
	assert.Equal(t, []string{"Loss"}, enriched.AIEnrichment.Themes)
	assert.Contains(t, enriched.AIEnrichment.Analysis, "It explores loss")
	assert.Contains(t, enriched.AIEnrichment.Analysis, "Mara")

	second := time.Second
	assert.Equal(t, []time.Duration{second, second}, h.sleeper.Delays(), "one second between field requests")

	// The original is untouched.
	assert.Empty(t, book.Themes)
}

func TestEnrich_HolisticSkipsFields(t *testing.T) {
	tg := &fakeTextGen{respond: func(string) (string, error) { return "```json\n" + goodAnalysis + "\n```", nil }}
	h := newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	enriched, err := h.orch.Enrich(ctx, book)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tg.calls.Load())
	assert.Equal(t, []string{"melancholic"}, enriched.Mood)
	assert.Equal(t, "slow", enriched.Pacing)
	assert.Equal(t, "adult", enriched.Audience)
	assert.Equal(t, []string{"Never Let Me Go by Kazuo Ishiguro"}, enriched.AIEnrichment.SimilarBooks)
}

func TestEnrich_FallbackProvider(t *testing.T) {
	provider := fallback.NewStatic([]fallback.Entry{{
		Title:  "Test Book",
		Author: "A. Author",
		Enrichment: fallback.EnrichmentEntry{
			Themes:   []string{"duty"},
			Mood:     "austere",
			Analysis: "Prepared analysis.",
		},
	}})
	h := newHarness(t, manualConfig(), failingTextGen(), WithFallback(provider))
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	enriched, err := h.orch.Enrich(ctx, book)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, enriched.AIEnrichment.Source)
	assert.Equal(t, "Prepared analysis.", enriched.AIEnrichment.Analysis)
	assert.Equal(t, []string{"austere"}, enriched.Mood)
	assert.False(t, enriched.AIEnrichment.GeneratedAt.IsZero())
}

func TestEnrich_NothingProducedIsAnError(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	_, err = h.orch.Enrich(ctx, book)
	assert.ErrorIs(t, err, errors.ErrNetwork)
}

func TestEnrich_AuthErrorStopsFieldPass(t *testing.T) {
	tg := &fakeTextGen{respond: func(string) (string, error) { return "", errors.Auth("no key") }}
	h := newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	book, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)

	_, err = h.orch.Enrich(ctx, book)
	assert.ErrorIs(t, err, errors.ErrAuth)
	assert.Equal(t, int32(2), tg.calls.Load(), "holistic plus the first field only")
}

func TestEnqueue_IsAtomic(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	var added atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.orch.Enqueue(ctx, scenarioISBN)
			assert.NoError(t, err)
			if ok {
				added.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), added.Load())
	queue, err := h.orch.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{scenarioISBN}, queue)

	removed, err := h.orch.Dequeue(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = h.orch.Dequeue(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestProcessQueue_DropsOrphans(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	_, err := h.orch.Enqueue(ctx, "9780306406157")
	require.NoError(t, err)

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 1, Dropped: 1}, res)

	queue, err := h.orch.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
	assert.Zero(t, h.textgen.calls.Load())
}

func TestProcessQueue_BatchAndItemDelay(t *testing.T) {
	tg := &fakeTextGen{respond: func(string) (string, error) { return goodAnalysis, nil }}
	cfg := manualConfig()
	cfg.BatchSize = 2
	h := newHarness(t, cfg, tg)
	ctx := context.Background()

	for i, isbn := range []string{"9780306406157", "9780000000002", "9780000000003"} {
		id := "book" + string(rune('a'+i))
		h.catalog.volumes[id] = volume(id, isbn)
		_, err := h.orch.AddBookToLibrary(ctx, id)
		require.NoError(t, err)
	}

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Enriched)
	assert.Equal(t, []time.Duration{cfg.ItemDelay}, h.sleeper.Delays())

	queue, err := h.orch.Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"9780000000003"}, queue)
}

func TestProcessQueue_SkipsClaimedISBN(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, h.orch.claim(scenarioISBN))

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Processed)
}

func TestRequestEnrichment(t *testing.T) {
	tg := &fakeTextGen{respond: func(string) (string, error) { return goodAnalysis, nil }}
	h := newHarness(t, DefaultConfig(), tg)
	h.catalog.volumes["noisbn"] = volume("noisbn", "")
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, "noisbn")
	require.NoError(t, err)
	_, err = h.orch.RequestEnrichment(ctx, "noisbn")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = h.orch.RequestEnrichment(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSaveEnrichedBook_WithoutISBNIsNoop(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	book := domain.NewBook(domain.MinimalBook{ID: "x", Title: "No ISBN"}, time.Now())
	require.NoError(t, h.orch.SaveEnrichedBook(ctx, book))

	_, err := h.repo.GetByID(ctx, "x")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSaveEnrichedBook_SharesWithDuplicates(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	for _, id := range []string{"one", "two"} {
		_, err := h.repo.Create(ctx, domain.MinimalBook{ID: id, ISBN: scenarioISBN, Title: "Test Book"})
		require.NoError(t, err)
	}
	_, err := h.repo.UpdateSection(ctx, "two", "mood", []string{"hopeful"})
	require.NoError(t, err)

	one, err := h.repo.GetByID(ctx, "one")
	require.NoError(t, err)
	one.Mood = []string{"bleak"}
	one.Themes = []domain.Theme{{Name: "Loss", Relevance: 5}}
	one.AIEnrichment = synthesizeEnvelope(one, time.Now())
	require.NoError(t, h.orch.SaveEnrichedBook(ctx, one))

	two, err := h.repo.GetByID(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, []string{"hopeful"}, two.Mood, "existing data is kept")
	assert.Equal(t, one.Themes, two.Themes)
	assert.True(t, two.HasEnrichment())

	status, err := h.repo.MetadataStatus(ctx, "two")
	require.NoError(t, err)
	assert.True(t, status.ContentAnalysisComplete)
}

func TestStop(t *testing.T) {
	h := newHarness(t, DefaultConfig(), failingTextGen())

	h.orch.Start()
	h.orch.Stop()
	h.orch.Stop()

	assert.False(t, h.orch.goBackground(func(context.Context) {}), "no new work after Stop")
}

func TestProcessQueue_BookDeletedDuringEnrichment(t *testing.T) {
	var h *harness
	tg := &fakeTextGen{respond: func(string) (string, error) {
		deleted, err := h.repo.Delete(context.Background(), scenarioID)
		assert.NoError(t, err)
		assert.True(t, deleted)
		return goodAnalysis, nil
	}}
	h = newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, scenarioID)
	require.NoError(t, err)

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enriched)

	_, err = h.repo.GetByID(ctx, scenarioID)
	assert.ErrorIs(t, err, errors.ErrNotFound, "enrichment does not bring a deleted book back")
	_, err = h.repo.MetadataStatus(ctx, scenarioID)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	queued, err := h.orch.IsQueued(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.False(t, queued)

	_, ok, err := h.orch.Cached(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.True(t, ok, "the work is still shared by ISBN")
}

func TestRetryCeiling_BookDeletedBeforeFinalFailure(t *testing.T) {
	var h *harness
	var calls atomic.Int32
	tg := &fakeTextGen{respond: func(string) (string, error) {
		// The last call of the fourth attempt.
		if calls.Add(1) == 16 {
			_, err := h.repo.Delete(context.Background(), scenarioID)
			assert.NoError(t, err)
		}
		return "", errors.Networkf("completion returned status %d", 503)
	}}
	h = newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, scenarioID)
	require.NoError(t, err)

	for range 4 {
		_, err := h.orch.ProcessQueue(ctx)
		require.NoError(t, err)
	}

	_, err = h.repo.GetByID(ctx, scenarioID)
	assert.ErrorIs(t, err, errors.ErrNotFound, "the pending note does not recreate the book")
	queued, err := h.orch.IsQueued(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestProcessQueue_KeepsEditsMadeDuringEnrichment(t *testing.T) {
	var h *harness
	tg := &fakeTextGen{respond: func(string) (string, error) {
		ctx := context.Background()
		_, err := h.repo.SetRating(ctx, scenarioID, 5)
		assert.NoError(t, err)
		_, err = h.repo.UpdateSection(ctx, scenarioID, "mood", []string{"tense"})
		assert.NoError(t, err)
		return goodAnalysis, nil
	}}
	h = newHarness(t, manualConfig(), tg)
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, scenarioID)
	require.NoError(t, err)

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Enriched)

	book, err := h.repo.GetByID(ctx, scenarioID)
	require.NoError(t, err)
	assert.Equal(t, 5, book.UserRating, "rating set mid-pass survives")
	assert.Equal(t, []string{"tense"}, book.Mood, "user value wins over the generated one")
	assert.True(t, book.HasEnrichment())
	assert.Len(t, book.Themes, 2)
	assert.Equal(t, "slow", book.AIEnrichment.Pacing)
}

// completeBook fills six more sections so the book sits at 88%.
func completeBook(t *testing.T, h *harness, id string) {
	t.Helper()
	ctx := context.Background()
	updates := map[string]any{
		"publisher":      "Test House",
		"genres":         []string{"Fiction"},
		"pointOfView":    "first",
		"themes":         []domain.Theme{{Name: "Loss", Relevance: 4}},
		"mood":           []string{"bleak"},
		"representation": []string{"rural life"},
	}
	for field, value := range updates {
		_, err := h.repo.UpdateSection(ctx, id, field, value)
		require.NoError(t, err, field)
	}
	pct, err := h.repo.CompletionPercentage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 88, pct)
}

func TestProcessQueue_SkipsCompleteBooks(t *testing.T) {
	h := newHarness(t, manualConfig(), failingTextGen())
	ctx := context.Background()

	_, err := h.orch.AddBookToLibrary(ctx, scenarioID)
	require.NoError(t, err)
	require.NoError(t, h.store.Set(ctx, RetryKeyPrefix+scenarioISBN, "2"))
	completeBook(t, h, scenarioID)

	res, err := h.orch.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Processed: 1, Complete: 1}, res)
	assert.Zero(t, h.textgen.calls.Load(), "no text generation for a complete book")

	queued, err := h.orch.IsQueued(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.False(t, queued)
	count, err := h.orch.RetryCount(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRequestEnrichment_CompleteBookIsNotQueued(t *testing.T) {
	h := newHarness(t, DefaultConfig(), failingTextGen())
	ctx := context.Background()

	_, err := h.repo.Create(ctx, domain.MinimalBook{ID: scenarioID, ISBN: scenarioISBN, Title: "Test Book"})
	require.NoError(t, err)
	completeBook(t, h, scenarioID)

	started, err := h.orch.RequestEnrichment(ctx, scenarioID)
	require.NoError(t, err)
	assert.False(t, started)
	h.orch.Wait()

	queued, err := h.orch.IsQueued(ctx, scenarioISBN)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Zero(t, h.textgen.calls.Load())
}
