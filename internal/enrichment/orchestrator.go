// Package enrichment fills in descriptive book metadata with a text-generation
// service. It owns the enrichment queue, the shared cache of enriched books
// keyed by ISBN and the per-ISBN retry counters, all persisted in a kv.Store.
package enrichment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/listenupapp/shelfwise/internal/catalog"
	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/fallback"
	"github.com/listenupapp/shelfwise/internal/kv"
	"github.com/listenupapp/shelfwise/internal/logger"
	"github.com/listenupapp/shelfwise/internal/textgen"
)

// Catalog fetches raw catalog records.
type Catalog interface {
	FetchByIdentifier(ctx context.Context, isbnOrID string) (*catalog.RawVolume, error)
}

// TextGenerator completes a prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Books is the part of the book repository the orchestrator uses.
type Books interface {
	Create(ctx context.Context, m domain.MinimalBook) (*domain.Book, error)
	Save(ctx context.Context, book *domain.Book, sections ...domain.Section) (*domain.Book, error)
	MergeEnrichment(ctx context.Context, id string, fn func(*domain.Book)) (*domain.Book, error)
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	GetAll(ctx context.Context) ([]*domain.Book, error)
	CompletionPercentage(ctx context.Context, id string) (int, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config tunes the orchestrator.
type Config struct {
	// Enabled turns on background enrichment (on add, and the periodic queue
	// drain). ProcessQueue can always be called directly.
	Enabled             bool
	CompletionThreshold int
	MaxFieldsPerPass    int
	FieldDelay          time.Duration
	ItemDelay           time.Duration
	RetryDelay          time.Duration
	MaxRetries          int
	BatchSize           int
	ProcessInterval     time.Duration
}

// DefaultConfig returns the standard pacing: 3 fields per pass a second
// apart, 3 attempts per ISBN.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		CompletionThreshold: 80,
		MaxFieldsPerPass:    3,
		FieldDelay:          time.Second,
		ItemDelay:           2 * time.Second,
		RetryDelay:          30 * time.Second,
		MaxRetries:          3,
		BatchSize:           5,
		ProcessInterval:     5 * time.Minute,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.CompletionThreshold <= 0 {
		c.CompletionThreshold = d.CompletionThreshold
	}
	if c.MaxFieldsPerPass <= 0 {
		c.MaxFieldsPerPass = d.MaxFieldsPerPass
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the delay function, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithFallback sets the provider consulted when text generation yields nothing.
func WithFallback(p fallback.Provider) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.fallback = p
		}
	}
}

// Orchestrator coordinates adding books and enriching them.
//
// An ISBN moves from absent to queued when its book is added. A successful
// pass stores the book in the shared cache and dequeues it. A failed pass
// bumps a persisted retry counter and schedules another attempt after
// RetryDelay. A failure with MaxRetries retries already spent is final: the
// book gets a pending note and the ISBN is dequeued.
type Orchestrator struct {
	cfg      Config
	store    kv.Store
	books    Books
	catalog  Catalog
	textgen  TextGenerator
	fallback fallback.Provider
	logger   *slog.Logger
	sleep    Sleeper
	now      func() time.Time

	queueMu sync.Mutex
	cacheMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	lifeMu  sync.Mutex
	life    context.Context
	cancel  context.CancelFunc
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// New creates an orchestrator. Background work runs on a context owned by the
// orchestrator and ends when Stop is called.
func New(cfg Config, store kv.Store, books Books, cat Catalog, tg TextGenerator, log *slog.Logger, opts ...Option) *Orchestrator {
	cfg.setDefaults()
	life, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		books:    books,
		catalog:  cat,
		textgen:  tg,
		fallback: fallback.None{},
		logger:   log,
		sleep:    SleepContext,
		now:      time.Now,
		inflight: make(map[string]struct{}),
		life:     life,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// hasRealISBN reports whether isbn can join the shared cache.
func hasRealISBN(isbn string) bool {
	return isbn != "" && !strings.HasPrefix(isbn, domain.PlaceholderISBNPrefix)
}

// NeedsEnrichment reports whether book's completion is below the threshold.
func (o *Orchestrator) NeedsEnrichment(ctx context.Context, book *domain.Book) (bool, error) {
	pct, err := o.books.CompletionPercentage(ctx, book.ID)
	if err != nil {
		return false, err
	}
	return pct < o.cfg.CompletionThreshold, nil
}

// AddBookToLibrary fetches catalogID from the catalog and adds it to the
// collection. If the ISBN is already in the shared cache the cached book is
// cloned under catalogID with fresh user fields and no enrichment runs.
// Otherwise a default book is created and, when it has a real ISBN, queued
// for enrichment in the background. Catalog failures are returned; enrichment
// never delays or fails the add.
func (o *Orchestrator) AddBookToLibrary(ctx context.Context, catalogID string) (*domain.Book, error) {
	catalogID = strings.TrimSpace(catalogID)
	if catalogID == "" {
		return nil, errors.Validation("catalog id is required")
	}

	if _, err := o.books.GetByID(ctx, catalogID); err == nil {
		return nil, errors.Conflictf("book %s is already in the collection", catalogID)
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	raw, err := o.catalog.FetchByIdentifier(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	minimal := catalog.ToMinimalBook(*raw)
	minimal.ID = catalogID
	log := logger.WithBook(o.logger, catalogID, minimal.ISBN)

	if hasRealISBN(minimal.ISBN) {
		cached, ok, err := o.Cached(ctx, minimal.ISBN)
		if err != nil {
			log.Warn("shared cache lookup failed, treating as miss", "error", err)
		}
		if ok {
			book := cached.Clone()
			book.ID = catalogID
			book.ResetUserFields(o.now())
			saved, err := o.books.Save(ctx, book, domain.FilledSections(book)...)
			if err != nil {
				return nil, err
			}
			log.Info("book added from shared cache")
			return saved, nil
		}
	}

	book, err := o.books.Create(ctx, minimal)
	if err != nil {
		return nil, err
	}

	if hasRealISBN(book.ISBN) {
		o.queueAndTrigger(ctx, book.ISBN, log)
	}
	return book, nil
}

// RequestEnrichment queues a collection book for enrichment and starts a
// background pass. It reports whether a pass was started; false means one is
// already running for the book's ISBN or the book is complete enough that
// nothing was queued.
func (o *Orchestrator) RequestEnrichment(ctx context.Context, bookID string) (bool, error) {
	book, err := o.books.GetByID(ctx, bookID)
	if err != nil {
		return false, err
	}
	if !hasRealISBN(book.ISBN) {
		return false, errors.Validationf("book %s has no ISBN to enrich", bookID)
	}
	needs, err := o.NeedsEnrichment(ctx, book)
	if err != nil {
		return false, err
	}
	if !needs {
		logger.WithBook(o.logger, book.ID, book.ISBN).Info("book is already complete, enrichment not queued")
		return false, nil
	}
	return o.queueAndTrigger(ctx, book.ISBN, logger.WithBook(o.logger, book.ID, book.ISBN)), nil
}

// queueAndTrigger enqueues isbn and starts a background pass if nobody is
// working on it. Errors are logged; the periodic drain picks the ISBN up later.
func (o *Orchestrator) queueAndTrigger(ctx context.Context, isbn string, log *slog.Logger) bool {
	if _, err := o.Enqueue(ctx, isbn); err != nil {
		log.Warn("failed to queue book for enrichment", "error", err)
		return false
	}
	if !o.cfg.Enabled {
		log.Debug("background enrichment disabled, book left in queue")
		return false
	}
	if !o.claim(isbn) {
		return false
	}
	if !o.goBackground(func(ctx context.Context) { o.process(ctx, isbn) }) {
		o.release(isbn)
		return false
	}
	log.Info("enrichment started in background")
	return true
}

// Enrich produces an enriched copy of book. It tries one holistic analysis
// first and falls back to at most MaxFieldsPerPass per-field requests. Parse
// errors on a field leave that field empty. If neither path fills anything the
// fallback provider is consulted, and only when that misses too is an error
// returned.
func (o *Orchestrator) Enrich(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	out := book.Clone()
	log := logger.WithBook(o.logger, book.ID, book.ISBN)

	analysis, err := o.holistic(ctx, out)
	if err == nil {
		applyAnalysis(analysis, out, o.now())
		log.Info("holistic enrichment succeeded")
		return out, nil
	}
	log.Warn("holistic enrichment unusable, falling back to fields", "error", err)

	filled, lastErr := o.enrichFields(ctx, out, log)
	if filled > 0 {
		out.AIEnrichment = synthesizeEnvelope(out, o.now())
		log.Info("field enrichment succeeded", "fields", filled)
		return out, nil
	}

	if env, ok := o.fallback.Lookup(out.Title, firstAuthor(out)); ok {
		env.GeneratedAt = o.now()
		out.AIEnrichment = env
		fillFromEnvelope(out)
		log.Info("enrichment served by fallback provider")
		return out, nil
	}

	if lastErr == nil {
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, errors.CodeOf(lastErr), "enrichment produced nothing")
}

func (o *Orchestrator) holistic(ctx context.Context, book *domain.Book) (AnalysisResponse, error) {
	text, err := o.textgen.Complete(ctx, BuildAnalysisPrompt(book))
	if err != nil {
		return AnalysisResponse{}, err
	}
	resp, err := textgen.Decode[AnalysisResponse](text)
	if err != nil {
		return AnalysisResponse{}, err
	}
	if !usableAnalysis(resp) {
		return AnalysisResponse{}, errors.Parse("analysis is empty or a placeholder")
	}
	return resp, nil
}

// enrichFields requests missing fields one at a time with FieldDelay between
// requests. It returns how many fields were filled and the last hard error.
func (o *Orchestrator) enrichFields(ctx context.Context, book *domain.Book, log *slog.Logger) (int, error) {
	var (
		filled  int
		lastErr error
	)

	for i, field := range missingFields(book, o.cfg.MaxFieldsPerPass) {
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.FieldDelay); err != nil {
				return filled, err
			}
		}

		prompt, _ := BuildFieldPrompt(field, book)
		text, err := o.textgen.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			if errors.Is(err, errors.ErrAuth) {
				return filled, err
			}
			log.Warn("field request failed", "field", field, "error", err)
			continue
		}

		ok, err := mergeField(field, text, book)
		switch {
		case err != nil && errors.Is(err, errors.ErrParse):
			log.Warn("field response unparseable, leaving field empty", "field", field, "error", err)
		case err != nil:
			lastErr = err
		case ok:
			filled++
		}
	}
	return filled, lastErr
}

// SaveEnrichedBook stores book in the shared cache, merges its enrichment
// into the collection copy and dequeues its ISBN. The merge runs against the
// stored record, so user edits made during the pass are kept and a book
// deleted during the pass stays deleted. Other collection books with the same
// ISBN get the new data in their empty fields. A book without an ISBN is
// logged and skipped.
func (o *Orchestrator) SaveEnrichedBook(ctx context.Context, book *domain.Book) error {
	log := logger.WithBook(o.logger, book.ID, book.ISBN)
	if book.ISBN == "" {
		log.Error("cannot save enriched book without an ISBN")
		return nil
	}

	if hasRealISBN(book.ISBN) {
		if err := o.putCached(ctx, book); err != nil {
			return err
		}
	}

	_, err := o.books.MergeEnrichment(ctx, book.ID, func(current *domain.Book) {
		mergeEnrichment(current, book)
	})
	switch {
	case errors.Is(err, errors.ErrNotFound):
		log.Info("book was removed during enrichment, collection left unchanged")
	case err != nil:
		return err
	}

	all, err := o.books.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID == book.ID || other.ISBN != book.ISBN {
			continue
		}
		_, err := o.books.MergeEnrichment(ctx, other.ID, func(current *domain.Book) {
			fillMissing(current, book)
		})
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			log.Warn("failed to share enrichment with duplicate", "other_id", other.ID, "error", err)
		}
	}

	if _, err := o.Dequeue(ctx, book.ISBN); err != nil {
		return err
	}
	log.Info("enriched book saved")
	return nil
}

func firstAuthor(b *domain.Book) string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0].Name
}
