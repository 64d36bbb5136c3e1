package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/shelfwise/internal/catalog"
	"github.com/listenupapp/shelfwise/internal/config"
	"github.com/listenupapp/shelfwise/internal/fallback"
	"github.com/listenupapp/shelfwise/internal/logger"
	"github.com/listenupapp/shelfwise/internal/textgen"
)

// CatalogClientHandle wraps the catalog client with shutdown capability.
type CatalogClientHandle struct {
	*catalog.Client
}

// Shutdown implements do.Shutdownable.
func (h *CatalogClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideCatalogClient provides the public book catalog client.
func ProvideCatalogClient(i do.Injector) (*CatalogClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := catalog.New(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		APIKey:     cfg.Catalog.APIKey,
		MaxResults: cfg.Catalog.MaxResults,
		Timeout:    cfg.Catalog.Timeout.Duration,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Catalog client initialized", "base_url", cfg.Catalog.BaseURL)
	return &CatalogClientHandle{Client: client}, nil
}

// TextGenClientHandle wraps the text generation client with shutdown capability.
type TextGenClientHandle struct {
	*textgen.Client
}

// Shutdown implements do.Shutdownable.
func (h *TextGenClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideTextGenClient provides the chat completions client.
func ProvideTextGenClient(i do.Injector) (*TextGenClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := textgen.New(textgen.Config{
		BaseURL:     cfg.TextGen.BaseURL,
		APIKey:      cfg.TextGen.APIKey,
		Model:       cfg.TextGen.Model,
		MaxTokens:   cfg.TextGen.MaxTokens,
		Temperature: cfg.TextGen.Temperature,
		Timeout:     cfg.TextGen.Timeout.Duration,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	if !client.Configured() {
		log.Warn("Text generation API key not set, enrichment will rely on fallback content")
	} else {
		log.Info("Text generation client initialized", "model", cfg.TextGen.Model)
	}
	return &TextGenClientHandle{Client: client}, nil
}

// FallbackHandle wraps the fallback enrichment provider. When a fallback
// file is configured it is watched for changes until shutdown.
type FallbackHandle struct {
	fallback.Provider
	file *fallback.FileProvider
}

// Shutdown implements do.Shutdownable.
func (h *FallbackHandle) Shutdown() error {
	if h.file == nil {
		return nil
	}
	return h.file.Close()
}

// ProvideFallback provides the fallback enrichment provider.
func ProvideFallback(i do.Injector) (*FallbackHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Enrichment.FallbackPath
	if path == "" {
		log.Info("No fallback enrichment content configured")
		return &FallbackHandle{Provider: fallback.None{}}, nil
	}

	file, err := fallback.NewFileProvider(path, log.Logger)
	if err != nil {
		return nil, err
	}
	if err := file.Watch(); err != nil {
		// Non-fatal: content loads once and just won't hot-reload.
		log.Warn("Fallback content watcher unavailable", "path", path, "error", err)
	}

	log.Info("Fallback enrichment content loaded", "path", path, "entries", file.Len())
	return &FallbackHandle{Provider: file, file: file}, nil
}
