// Hot reload for declarative schemas.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/formgate/core/entity"
	"github.com/artpar/formgate/ports"
)

// Holder provides thread-safe access to a schema with hot reload. A
// reload re-applies the schema to the target entity, so rule changes
// land on live fields without dropping their listeners or state.
type Holder struct {
	mu       sync.RWMutex
	schema   *Schema
	target   *entity.Entity
	path     string
	logger   zerolog.Logger
	metrics  ports.Metrics
	watcher  *fsnotify.Watcher
	onChange []func(*Schema)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the schema at path, builds its entity, and returns a
// holder ready to watch for changes.
func NewHolder(path string, logger zerolog.Logger, metrics ports.Metrics) (*Holder, error) {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	s, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	target, err := s.Build(
		entity.WithLogger(logger),
		entity.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build entity: %w", err)
	}

	return &Holder{
		schema:  s,
		target:  target,
		path:    absPath,
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}, nil
}

// Schema returns the current schema (thread-safe).
func (h *Holder) Schema() *Schema {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.schema
}

// Entity returns the configured entity. The instance is stable across
// reloads.
func (h *Holder) Entity() *entity.Entity {
	return h.target
}

// Reload reloads the schema from disk and re-applies it to the
// entity. Returns an error (and keeps the old schema) if loading or
// applying fails.
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading schema")

	newSchema, err := Load(h.path)
	if err != nil {
		h.metrics.SchemaReloaded(false)
		h.logger.Error().Err(err).Msg("schema reload failed, keeping old schema")
		return fmt.Errorf("reload schema: %w", err)
	}

	if err := newSchema.Apply(h.target); err != nil {
		h.metrics.SchemaReloaded(false)
		h.logger.Error().Err(err).Msg("schema apply failed")
		return fmt.Errorf("apply schema: %w", err)
	}

	h.mu.Lock()
	oldSchema := h.schema
	h.schema = newSchema
	callbacks := append([]func(*Schema){}, h.onChange...)
	h.mu.Unlock()

	h.metrics.SchemaReloaded(true)
	h.logChanges(oldSchema, newSchema)

	for _, fn := range callbacks {
		fn(newSchema)
	}

	h.logger.Info().Msg("schema reloaded successfully")
	return nil
}

// OnChange registers a callback to be called after each successful
// reload.
func (h *Holder) OnChange(fn func(*Schema)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the schema file for changes. Changes
// trigger automatic reload.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching schema file for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading schema")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("schema file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) logChanges(old, new *Schema) {
	if len(old.Fields) != len(new.Fields) {
		h.logger.Info().
			Int("old", len(old.Fields)).
			Int("new", len(new.Fields)).
			Msg("field count changed")
	}
	if old.ValidateOn != new.ValidateOn {
		h.logger.Info().
			Str("old", old.ValidateOn).
			Str("new", new.ValidateOn).
			Msg("default trigger changed")
	}
}
