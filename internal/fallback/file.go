package fallback

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/listenupapp/shelfwise/internal/domain"
)

const defaultSettleDelay = 200 * time.Millisecond

// FileProvider serves entries from a YAML file and reloads them when the file
// changes. A missing file is an empty provider, not an error.
type FileProvider struct {
	path   string
	logger *slog.Logger
	settle time.Duration

	mu     sync.RWMutex
	static *Static

	watcher *fsnotify.Watcher
	timerMu sync.Mutex
	timer   *time.Timer
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewFileProvider loads path.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve fallback content path: %w", err)
	}
	p := &FileProvider{
		path:   abs,
		logger: logger,
		settle: defaultSettleDelay,
		static: NewStatic(nil),
		done:   make(chan struct{}),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Lookup implements Provider.
func (p *FileProvider) Lookup(title, author string) (*domain.Enrichment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.static.Lookup(title, author)
}

// Len returns the number of loaded entries.
func (p *FileProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.static.Len()
}

// Reload re-reads the file. On a parse error the previous entries are kept.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		p.swap(NewStatic(nil))
		p.logger.Debug("fallback content file not found", "path", p.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read fallback content: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse fallback content %s: %w", p.path, err)
	}

	static := NewStatic(entries)
	p.swap(static)
	p.logger.Info("fallback content loaded", "path", p.path, "entries", static.Len())
	return nil
}

func (p *FileProvider) swap(s *Static) {
	p.mu.Lock()
	p.static = s
	p.mu.Unlock()
}

// Watch starts reloading the file whenever it is written, created or removed.
// The parent directory is watched so editors that replace the file are seen.
func (p *FileProvider) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = w

	p.wg.Add(1)
	go p.processEvents()
	return nil
}

func (p *FileProvider) processEvents() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				p.scheduleReload()
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("fallback content watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of events from a single save.
func (p *FileProvider) scheduleReload() {
	p.timerMu.Lock()
	defer p.timerMu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.settle, func() {
		if err := p.Reload(); err != nil {
			p.logger.Warn("fallback content reload failed, keeping previous entries", "error", err)
		}
	})
}

// Close stops watching. It is safe to call more than once.
func (p *FileProvider) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.timerMu.Lock()
		if p.timer != nil {
			p.timer.Stop()
		}
		p.timerMu.Unlock()
		if p.watcher != nil {
			err = p.watcher.Close()
		}
		p.wg.Wait()
	})
	return err
}
