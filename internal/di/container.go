// Package di provides dependency injection configuration for shelfwise.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/shelfwise/internal/config"
	"github.com/listenupapp/shelfwise/internal/di/providers"
	"github.com/listenupapp/shelfwise/internal/library"
	"github.com/listenupapp/shelfwise/internal/logger"
	"github.com/listenupapp/shelfwise/internal/stats"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments handed to the config loader.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(args))
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideLibrary)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// External clients
	do.Provide(injector, providers.ProvideCatalogClient)
	do.Provide(injector, providers.ProvideTextGenClient)
	do.Provide(injector, providers.ProvideFallback)

	// Business services
	do.Provide(injector, providers.ProvideStatsService)

	// Workers
	do.Provide(injector, providers.ProvideOrchestrator)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the HTTP server is listening.
// The search index is wired into the library before the orchestrator starts
// so background enrichment results are indexed.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*library.Repository](injector)
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}

	if _, err := do.Invoke[*providers.CatalogClientHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.TextGenClientHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.FallbackHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*stats.Service](injector)

	// Workers
	_ = do.MustInvoke[*providers.OrchestratorHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
