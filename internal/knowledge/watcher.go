package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/talentlink/assistant/internal/observability"
)

// Watcher reloads a Store when files in its directory change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	dir      string
	debounce time.Duration
	logger   *observability.Logger
	reloaded chan struct{}
}

// NewWatcher creates a watcher for dir. Call Run to start it.
func NewWatcher(store *Store, dir string, debounce time.Duration, logger *observability.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Watcher{
		watcher:  w,
		store:    store,
		dir:      dir,
		debounce: debounce,
		logger:   logger.With().Str("component", "knowledge-watcher").Str("dir", dir).Logger(),
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Reloaded receives a value after each reload that changed the store. Sends are
// dropped when nobody is listening.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Run processes file events until ctx is done. Bursts of events within the
// debounce window trigger a single reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isSupported(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Knowledge watcher error")
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	err := w.store.Reload(w.dir)
	switch {
	case errors.Is(err, ErrNoDocuments):
		w.logger.Warn().Msg("Knowledge directory is empty, grounding cleared")
	case err != nil:
		w.logger.Error().Err(err).Msg("Knowledge reload failed, keeping previous snapshot")
		return
	default:
		snap := w.store.Snapshot()
		w.logger.Info().
			Strs("sources", snap.Sources).
			Int("bytes", len(snap.Text)).
			Uint64("version", snap.Version).
			Msg("Knowledge reloaded")
	}

	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
