package enrichment

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/kv"
)

// Persisted keys.
const (
	KeyEnrichedBooks = "enriched_books"
	KeyQueue         = "enrichment_queue"
	RetryKeyPrefix   = "enrichment_retry:"
)

func retryKey(isbn string) string { return RetryKeyPrefix + isbn }

// IsQueued reports whether isbn is waiting for enrichment.
func (o *Orchestrator) IsQueued(ctx context.Context, isbn string) (bool, error) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()

	q, err := o.loadQueue(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(q, isbn), nil
}

// Enqueue adds isbn to the queue unless it is already there. The membership
// check and the append happen under one lock. It reports whether isbn was added.
func (o *Orchestrator) Enqueue(ctx context.Context, isbn string) (bool, error) {
	if isbn == "" {
		return false, nil
	}

	o.queueMu.Lock()
	defer o.queueMu.Unlock()

	q, err := o.loadQueue(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(q, isbn) {
		return false, nil
	}
	if err := kv.SetJSON(ctx, o.store, KeyQueue, append(q, isbn)); err != nil {
		return false, fmt.Errorf("save enrichment queue: %w", err)
	}
	return true, nil
}

// Dequeue removes isbn from the queue. It reports whether isbn was queued.
func (o *Orchestrator) Dequeue(ctx context.Context, isbn string) (bool, error) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()

	q, err := o.loadQueue(ctx)
	if err != nil {
		return false, err
	}
	i := slices.Index(q, isbn)
	if i < 0 {
		return false, nil
	}
	if err := kv.SetJSON(ctx, o.store, KeyQueue, slices.Delete(q, i, i+1)); err != nil {
		return false, fmt.Errorf("save enrichment queue: %w", err)
	}
	return true, nil
}

// Queue returns the queued ISBNs in arrival order.
func (o *Orchestrator) Queue(ctx context.Context) ([]string, error) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	return o.loadQueue(ctx)
}

func (o *Orchestrator) loadQueue(ctx context.Context) ([]string, error) {
	q, _, err := kv.GetJSON[[]string](ctx, o.store, KeyQueue)
	if err != nil {
		return nil, fmt.Errorf("load enrichment queue: %w", err)
	}
	if q == nil {
		q = []string{}
	}
	return q, nil
}

// RetryCount returns the persisted failure count for isbn.
func (o *Orchestrator) RetryCount(ctx context.Context, isbn string) (int, error) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	return o.loadRetry(ctx, isbn)
}

func (o *Orchestrator) loadRetry(ctx context.Context, isbn string) (int, error) {
	raw, ok, err := o.store.Get(ctx, retryKey(isbn))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// A corrupt counter restarts the budget rather than wedging the ISBN.
		return 0, nil
	}
	return n, nil
}

func (o *Orchestrator) incrementRetry(ctx context.Context, isbn string) (int, error) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()

	n, err := o.loadRetry(ctx, isbn)
	if err != nil {
		return 0, err
	}
	n++
	if err := o.store.Set(ctx, retryKey(isbn), strconv.Itoa(n)); err != nil {
		return 0, fmt.Errorf("save retry count: %w", err)
	}
	return n, nil
}

func (o *Orchestrator) clearRetry(ctx context.Context, isbn string) error {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	return o.store.Remove(ctx, retryKey(isbn))
}

// Cached returns the shared-cache entry for isbn.
func (o *Orchestrator) Cached(ctx context.Context, isbn string) (*domain.Book, bool, error) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	cache, err := o.loadCache(ctx)
	if err != nil {
		return nil, false, err
	}
	b, ok := cache[isbn]
	return b, ok, nil
}

func (o *Orchestrator) putCached(ctx context.Context, book *domain.Book) error {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	cache, err := o.loadCache(ctx)
	if err != nil {
		return err
	}
	cache[book.ISBN] = book.Clone()
	if err := kv.SetJSON(ctx, o.store, KeyEnrichedBooks, cache); err != nil {
		return fmt.Errorf("save enriched books: %w", err)
	}
	return nil
}

func (o *Orchestrator) loadCache(ctx context.Context) (map[string]*domain.Book, error) {
	cache, _, err := kv.GetJSON[map[string]*domain.Book](ctx, o.store, KeyEnrichedBooks)
	if err != nil {
		return nil, fmt.Errorf("load enriched books: %w", err)
	}
	if cache == nil {
		cache = map[string]*domain.Book{}
	}
	return cache, nil
}

// claim marks isbn as being worked on. It returns false if another goroutine
// already holds it.
func (o *Orchestrator) claim(isbn string) bool {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	if _, busy := o.inflight[isbn]; busy {
		return false
	}
	o.inflight[isbn] = struct{}{}
	return true
}

func (o *Orchestrator) release(isbn string) {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	delete(o.inflight, isbn)
}
