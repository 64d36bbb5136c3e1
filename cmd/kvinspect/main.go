// Command kvinspect prints a summary of a shelfwise store: every key with its
// value size, the collection by reading status and completion, and the
// enrichment queue with retry counters. Stop the server first; Badger holds
// an exclusive lock on its directory.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/listenupapp/shelfwise/internal/config"
	"github.com/listenupapp/shelfwise/internal/di/providers"
	"github.com/listenupapp/shelfwise/internal/enrichment"
	"github.com/listenupapp/shelfwise/internal/kv"
	"github.com/listenupapp/shelfwise/internal/library"
	"github.com/listenupapp/shelfwise/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(logger.Config{Level: logger.ParseLevel("warn"), Environment: cfg.App.Environment})
	store, err := providers.OpenStore(cfg.Storage, lg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	fmt.Println("=== Store Inspection ===")
	fmt.Printf("Backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("Path: %s\n", cfg.Storage.DataPath)
	fmt.Println()

	keys, err := store.Keys(ctx, "")
	if err != nil {
		log.Fatalf("Error listing keys: %v", err)
	}
	for _, key := range keys {
		value, _, err := store.Get(ctx, key)
		if err != nil {
			log.Printf("Error reading %s: %v", key, err)
			continue
		}
		fmt.Printf("  %-40s %8d bytes\n", key, len(value))
	}
	fmt.Println()

	repo := library.NewRepository(store, lg.Logger)
	books, err := repo.GetAll(ctx)
	if err != nil {
		log.Fatalf("Error loading books: %v", err)
	}

	byStatus := map[string]int{}
	incomplete := 0
	for _, b := range books {
		byStatus[string(b.ReadingStatus)]++
		pct, err := repo.CompletionPercentage(ctx, b.ID)
		if err != nil {
			log.Printf("Error reading completion for %s: %v", b.ID, err)
			continue
		}
		if pct < library.DefaultCompletionThreshold {
			incomplete++
			// Show first few incomplete books
			if incomplete <= 5 {
				fmt.Printf("Incomplete: %s (%s) %d%%\n", b.Title, b.ID, pct)
			}
		}
	}
	if incomplete > 5 {
		fmt.Printf("  ... and %d more\n", incomplete-5)
	}
	fmt.Println()

	printQueue(ctx, store)

	fmt.Println("=== Summary ===")
	fmt.Printf("Total books: %d\n", len(books))
	statuses := make([]string, 0, len(byStatus))
	for s := range byStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Printf("  %-10s %d\n", s, byStatus[s])
	}
	fmt.Printf("Below %d%% completion: %d\n", library.DefaultCompletionThreshold, incomplete)
}

func printQueue(ctx context.Context, store kv.Store) {
	queue, _, err := kv.GetJSON[[]string](ctx, store, enrichment.KeyQueue)
	if err != nil {
		log.Printf("Error reading enrichment queue: %v", err)
		return
	}

	fmt.Printf("=== Enrichment Queue (%d) ===\n", len(queue))
	for _, isbn := range queue {
		retries, _, err := store.Get(ctx, enrichment.RetryKeyPrefix+isbn)
		if err != nil || retries == "" {
			retries = "0"
		}
		fmt.Printf("  %s retries=%s\n", isbn, strings.TrimSpace(retries))
	}
	fmt.Println()
}
