package api

import (
	"context"

	"github.com/listenupapp/shelfwise/internal/catalog"
	"github.com/listenupapp/shelfwise/internal/enrichment"
	"github.com/listenupapp/shelfwise/internal/library"
	"github.com/listenupapp/shelfwise/internal/search"
	"github.com/listenupapp/shelfwise/internal/stats"
)

// CatalogClient is the part of the catalog client the API calls directly.
type CatalogClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]catalog.RawVolume, error)
	FetchByIdentifier(ctx context.Context, isbnOrID string) (*catalog.RawVolume, error)
}

// Services groups everything the handlers depend on.
type Services struct {
	Catalog    CatalogClient
	Library    *library.Repository
	Enrichment *enrichment.Orchestrator
	Stats      *stats.Service
	Search     *search.Index // optional; search and its health check degrade without it
}
