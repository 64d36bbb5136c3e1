package enrichment

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/errors"
	"github.com/listenupapp/shelfwise/internal/logger"
)

type outcome int

const (
	outcomeEnriched outcome = iota
	outcomeRetried
	outcomeFailed
	outcomeDropped
	outcomeComplete
)

// ProcessResult counts what one ProcessQueue call did.
type ProcessResult struct {
	Processed int `json:"processed"`
	Enriched  int `json:"enriched"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Skipped   int `json:"skipped"`
	Complete  int `json:"complete"`
}

func (r *ProcessResult) record(o outcome) {
	r.Processed++
	switch o {
	case outcomeEnriched:
		r.Enriched++
	case outcomeRetried:
		r.Retried++
	case outcomeFailed:
		r.Failed++
	case outcomeDropped:
		r.Dropped++
	case outcomeComplete:
		r.Complete++
	}
}

// ProcessQueue works through up to BatchSize queued ISBNs one at a time, with
// ItemDelay between them. ISBNs whose book is no longer in the collection are
// dropped from the queue. ISBNs already being worked on elsewhere are skipped.
func (o *Orchestrator) ProcessQueue(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult

	queue, err := o.Queue(ctx)
	if err != nil {
		return result, err
	}
	if len(queue) > o.cfg.BatchSize {
		queue = queue[:o.cfg.BatchSize]
	}

	for i, isbn := range queue {
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.ItemDelay); err != nil {
				return result, err
			}
		}
		if !o.claim(isbn) {
			result.Skipped++
			continue
		}
		result.record(o.process(ctx, isbn))
	}

	if result.Processed > 0 {
		o.logger.Info("enrichment queue processed",
			"processed", result.Processed,
			"enriched", result.Enriched,
			"retried", result.Retried,
			"failed", result.Failed,
			"dropped", result.Dropped,
		)
	}
	return result, nil
}

// process runs one attempt for isbn. The caller holds the claim on isbn;
// process either hands it to a scheduled retry or releases it.
func (o *Orchestrator) process(ctx context.Context, isbn string) outcome {
	out := o.attempt(ctx, isbn)
	if out == outcomeRetried && o.scheduleRetry(isbn) {
		return out
	}
	o.release(isbn)
	return out
}

// scheduleRetry re-attempts isbn after RetryDelay in the background. With
// background enrichment disabled the ISBN just waits for the next ProcessQueue.
func (o *Orchestrator) scheduleRetry(isbn string) bool {
	if !o.cfg.Enabled {
		return false
	}
	return o.goBackground(func(ctx context.Context) {
		if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
			// Shutting down; the ISBN stays queued and the counter persists.
			o.release(isbn)
			return
		}
		o.process(ctx, isbn)
	})
}

// attempt enriches the collection book carrying isbn once.
func (o *Orchestrator) attempt(ctx context.Context, isbn string) outcome {
	log := o.logger.With("isbn", isbn)

	book, err := o.findByISBN(ctx, isbn)
	if err != nil {
		log.Warn("failed to load collection for enrichment", "error", err)
		return o.handleFailure(ctx, nil, isbn, err)
	}
	if book == nil {
		if _, err := o.Dequeue(ctx, isbn); err != nil {
			log.Warn("failed to drop orphaned queue entry", "error", err)
		}
		if err := o.clearRetry(ctx, isbn); err != nil {
			log.Warn("failed to clear retry count", "error", err)
		}
		log.Debug("queued ISBN has no book in the collection, dropped")
		return outcomeDropped
	}
	log = logger.WithBook(o.logger, book.ID, isbn)

	// Another book with this ISBN may have been enriched since it was queued.
	if cached, ok, err := o.Cached(ctx, isbn); err == nil && ok && cached.HasEnrichment() {
		fillMissing(book, cached)
		if err := o.SaveEnrichedBook(ctx, book); err != nil {
			return o.handleFailure(ctx, book, isbn, err)
		}
		o.finish(ctx, isbn, log)
		return outcomeEnriched
	}

	needs, err := o.NeedsEnrichment(ctx, book)
	if err != nil {
		return o.handleFailure(ctx, book, isbn, err)
	}
	if !needs {
		if _, err := o.Dequeue(ctx, isbn); err != nil {
			log.Warn("failed to dequeue complete book", "error", err)
		}
		o.finish(ctx, isbn, log)
		log.Info("book no longer needs enrichment, dropped from queue")
		return outcomeComplete
	}

	enriched, err := o.Enrich(ctx, book)
	if err == nil {
		err = o.SaveEnrichedBook(ctx, enriched)
	}
	if err != nil {
		return o.handleFailure(ctx, book, isbn, err)
	}
	o.finish(ctx, isbn, log)
	return outcomeEnriched
}

func (o *Orchestrator) finish(ctx context.Context, isbn string, log *slog.Logger) {
	if err := o.clearRetry(ctx, isbn); err != nil {
		log.Warn("failed to clear retry count", "error", err)
	}
}

// handleFailure spends one retry on isbn. While fewer than MaxRetries have
// been spent the counter is bumped and the ISBN stays queued. A failure after
// the last retry is final: the counter is cleared, the book gets a pending
// note and the ISBN is dequeued.
func (o *Orchestrator) handleFailure(ctx context.Context, book *domain.Book, isbn string, cause error) outcome {
	log := o.logger.With("isbn", isbn)
	if book != nil {
		log = logger.WithBook(o.logger, book.ID, isbn)
	}

	spent, err := o.RetryCount(ctx, isbn)
	if err != nil {
		log.Error("failed to read retry count", "error", err, "cause", cause)
		return outcomeRetried
	}
	if spent < o.cfg.MaxRetries {
		retry, err := o.incrementRetry(ctx, isbn)
		if err != nil {
			log.Error("failed to record enrichment failure", "error", err, "cause", cause)
			return outcomeRetried
		}
		log.Warn("enrichment failed, will retry", "retry", retry, "max", o.cfg.MaxRetries, "retry_in", o.cfg.RetryDelay, "error", cause)
		return outcomeRetried
	}

	log.Error("enrichment failed permanently", "attempts", spent+1, "error", cause)
	if err := o.clearRetry(ctx, isbn); err != nil {
		log.Warn("failed to clear retry count", "error", err)
	}
	if book != nil {
		pending := domain.NewPendingEnrichment(o.now())
		_, err := o.books.MergeEnrichment(ctx, book.ID, func(current *domain.Book) {
			if !current.HasEnrichment() {
				current.AIEnrichment = pending
			}
		})
		switch {
		case errors.Is(err, errors.ErrNotFound):
			log.Info("book was removed during enrichment, no pending note saved")
		case err != nil:
			log.Error("failed to save pending enrichment note", "error", err)
		}
	}
	if _, err := o.Dequeue(ctx, isbn); err != nil {
		log.Error("failed to dequeue after final failure", "error", err)
	}
	return outcomeFailed
}

// findByISBN returns the first collection book with isbn, or nil.
func (o *Orchestrator) findByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	all, err := o.books.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.ISBN == isbn {
			return b, nil
		}
	}
	return nil, nil
}

// goBackground runs fn on the orchestrator's lifetime context. It returns
// false once Stop has been called.
func (o *Orchestrator) goBackground(fn func(ctx context.Context)) bool {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()
	if o.stopped {
		return false
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.life)
	}()
	return true
}

// Start launches the periodic queue drain. The first drain runs immediately
// so work queued before a restart resumes. It does nothing when background
// enrichment is disabled or already started.
func (o *Orchestrator) Start() {
	if !o.cfg.Enabled || o.cfg.ProcessInterval <= 0 {
		o.logger.Info("periodic enrichment disabled")
		return
	}

	o.lifeMu.Lock()
	if o.started {
		o.lifeMu.Unlock()
		return
	}
	o.started = true
	o.lifeMu.Unlock()

	o.goBackground(func(ctx context.Context) {
		ticker := time.NewTicker(o.cfg.ProcessInterval)
		defer ticker.Stop()

		for {
			if _, err := o.ProcessQueue(ctx); err != nil && ctx.Err() == nil {
				o.logger.Warn("enrichment queue drain failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	o.logger.Info("periodic enrichment started", "interval", o.cfg.ProcessInterval)
}

// Wait blocks until all background work, including scheduled retries, has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Stop cancels background work and waits for it to exit. Queued ISBNs and
// retry counters stay persisted. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.lifeMu.Lock()
	o.stopped = true
	o.lifeMu.Unlock()

	o.cancel()
	o.wg.Wait()
}
