package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/shelfwise/internal/enrichment"
)

func (s *Server) registerEnrichmentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "requestEnrichment",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/enrich",
		Summary:       "Request enrichment",
		Description:   "Queues a book for AI enrichment and starts a background pass",
		Tags:          []string{"Enrichment"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRequestEnrichment)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEnrichmentQueue",
		Method:      http.MethodGet,
		Path:        "/api/v1/enrichment/queue",
		Summary:     "Get enrichment queue",
		Description: "Returns queued ISBNs with their retry counts",
		Tags:        []string{"Enrichment"},
	}, s.handleGetQueue)

	huma.Register(s.api, huma.Operation{
		OperationID: "processEnrichmentQueue",
		Method:      http.MethodPost,
		Path:        "/api/v1/enrichment/process",
		Summary:     "Process enrichment queue",
		Description: "Works through one batch of the queue synchronously and reports the outcome",
		Tags:        []string{"Enrichment"},
	}, s.handleProcessQueue)
}

// === DTOs ===

// EnrichmentRequestResponse reports what a request for enrichment did.
type EnrichmentRequestResponse struct {
	BookID  string `json:"book_id" doc:"Book ID"`
	ISBN    string `json:"isbn" doc:"ISBN queued for enrichment"`
	Queued  bool   `json:"queued" doc:"Whether the ISBN is in the queue"`
	Started bool   `json:"started" doc:"Whether a background pass was started. A complete book is never queued."`
}

// EnrichmentRequestOutput wraps the enrichment request response for Huma.
type EnrichmentRequestOutput struct {
	Body EnrichmentRequestResponse
}

// QueueEntry is one queued ISBN.
type QueueEntry struct {
	ISBN    string `json:"isbn" doc:"Queued ISBN"`
	Retries int    `json:"retries" doc:"Failed attempts so far"`
}

// QueueResponse lists the enrichment queue.
type QueueResponse struct {
	Entries []QueueEntry `json:"entries" doc:"Queued ISBNs in order"`
	Total   int          `json:"total" doc:"Queue length"`
}

// QueueOutput wraps the queue response for Huma.
type QueueOutput struct {
	Body QueueResponse
}

// ProcessOutput wraps a queue pass result for Huma.
type ProcessOutput struct {
	Body enrichment.ProcessResult
}

// === Handlers ===

func (s *Server) handleRequestEnrichment(ctx context.Context, input *GetBookInput) (*EnrichmentRequestOutput, error) {
	started, err := s.services.Enrichment.RequestEnrichment(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	queued, err := s.services.Enrichment.IsQueued(ctx, book.ISBN)
	if err != nil {
		return nil, err
	}

	return &EnrichmentRequestOutput{
		Body: EnrichmentRequestResponse{
			BookID:  book.ID,
			ISBN:    book.ISBN,
			Queued:  queued,
			Started: started,
		},
	}, nil
}

func (s *Server) handleGetQueue(ctx context.Context, _ *struct{}) (*QueueOutput, error) {
	queue, err := s.services.Enrichment.Queue(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]QueueEntry, 0, len(queue))
	for _, isbn := range queue {
		retries, err := s.services.Enrichment.RetryCount(ctx, isbn)
		if err != nil {
			return nil, err
		}
		entries = append(entries, QueueEntry{ISBN: isbn, Retries: retries})
	}

	return &QueueOutput{Body: QueueResponse{Entries: entries, Total: len(entries)}}, nil
}

func (s *Server) handleProcessQueue(ctx context.Context, _ *struct{}) (*ProcessOutput, error) {
	result, err := s.services.Enrichment.ProcessQueue(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("enrichment queue processed",
		"processed", result.Processed,
		"enriched", result.Enriched,
		"retried", result.Retried,
		"failed", result.Failed,
		"dropped", result.Dropped,
		"complete", result.Complete,
	)
	return &ProcessOutput{Body: result}, nil
}
