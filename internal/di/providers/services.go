package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/shelfwise/internal/config"
	"github.com/listenupapp/shelfwise/internal/enrichment"
	"github.com/listenupapp/shelfwise/internal/library"
	"github.com/listenupapp/shelfwise/internal/logger"
	"github.com/listenupapp/shelfwise/internal/stats"
)

// ProvideLibrary provides the book repository.
func ProvideLibrary(i do.Injector) (*library.Repository, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return library.NewRepository(storeHandle.Store, log.Logger), nil
}

// ProvideStatsService provides the dashboard statistics service.
func ProvideStatsService(i do.Injector) (*stats.Service, error) {
	repo := do.MustInvoke[*library.Repository](i)
	log := do.MustInvoke[*logger.Logger](i)

	return stats.NewService(repo, log.Logger), nil
}

// OrchestratorHandle wraps the enrichment orchestrator with shutdown capability.
type OrchestratorHandle struct {
	*enrichment.Orchestrator
}

// Shutdown implements do.Shutdownable. Queued work stays persisted.
func (h *OrchestratorHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideOrchestrator provides the enrichment orchestrator and starts its
// periodic queue drain.
func ProvideOrchestrator(i do.Injector) (*OrchestratorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	repo := do.MustInvoke[*library.Repository](i)
	catalogHandle := do.MustInvoke[*CatalogClientHandle](i)
	textgenHandle := do.MustInvoke[*TextGenClientHandle](i)
	fallbackHandle := do.MustInvoke[*FallbackHandle](i)

	e := cfg.Enrichment
	orch := enrichment.New(enrichment.Config{
		Enabled:             e.Enabled,
		CompletionThreshold: e.CompletionThreshold,
		MaxFieldsPerPass:    e.MaxFieldsPerPass,
		FieldDelay:          e.FieldDelay.Duration,
		ItemDelay:           e.ItemDelay.Duration,
		RetryDelay:          e.RetryDelay.Duration,
		MaxRetries:          e.MaxRetries,
		BatchSize:           e.BatchSize,
		ProcessInterval:     e.ProcessInterval.Duration,
	},
		storeHandle.Store,
		repo,
		catalogHandle.Client,
		textgenHandle.Client,
		log.Logger,
		enrichment.WithFallback(fallbackHandle.Provider),
	)
	orch.Start()

	log.Info("Enrichment orchestrator initialized",
		"enabled", e.Enabled,
		"threshold", e.CompletionThreshold,
		"interval", e.ProcessInterval.Duration,
	)
	return &OrchestratorHandle{Orchestrator: orch}, nil
}
