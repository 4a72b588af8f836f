// Package watch processes transcript files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/pkg/observability"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler is called once per settled transcript file. Errors are logged and
// do not stop the watcher.
type Handler func(ctx context.Context, file meeting.TranscriptFile) error

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration

	// ProcessExisting handles files already present when the watcher starts.
	ProcessExisting bool
}

// Watcher feeds created or rewritten transcript files under a directory tree
// to a Handler.
type Watcher struct {
	cfg     Config
	handler Handler
	metrics *observability.Metrics
	logger  logging.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	done   chan struct{}
}

// New creates a watcher. It does not touch the filesystem until Run.
func New(cfg Config, handler Handler, metrics *observability.Metrics, logger logging.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		metrics: metrics,
		logger:  logger.With(logging.F("component", "watcher"), logging.F("dir", cfg.Dir)),
		timers:  make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		done:    make(chan struct{}),
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation. A
// Watcher runs at most once.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)

	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir: %s is not a directory", w.cfg.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()
	defer w.stopTimers()

	if err := w.addTree(fsw, w.cfg.Dir); err != nil {
		return err
	}
	w.logger.Info("Started watching for transcripts", logging.F("debounce", w.cfg.Debounce))

	if w.cfg.ProcessExisting {
		files, err := meeting.ScanTranscriptFiles(w.cfg.Dir)
		if err != nil {
			return fmt.Errorf("failed to scan existing files: %w", err)
		}
		for _, f := range files {
			if ctx.Err() != nil {
				return nil
			}
			w.handle(ctx, f.Path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopped watching")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.onEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logging.Err(err))

		case path := <-w.ready:
			w.handle(ctx, path)
		}
	}
}

func (w *Watcher) onEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".tmp") {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fsw, event.Name); err != nil {
				w.logger.Error("Failed to watch new directory", logging.Err(err), logging.F("path", event.Name))
			}
			w.metrics.RecordWatchEvent("mkdir")
			return
		}
		w.metrics.RecordWatchEvent("create")
	case event.Has(fsnotify.Write):
		w.metrics.RecordWatchEvent("write")
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancelPending(event.Name)
		return
	default:
		return
	}

	if meeting.IsTranscriptFile(event.Name) {
		w.schedule(event.Name)
	}
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(path)
}

// scheduleLocked must be called with w.mu held. A timer that already fired is
// replaced rather than reset; its pending callback sees it is no longer the
// current timer for path and drops the send.
func (w *Watcher) scheduleLocked(path string) {
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(w.cfg.Debounce)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		if w.timers[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
	w.timers[path] = t
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	files, err := meeting.ScanTranscriptFiles(path)
	if err != nil {
		// Removed between the event and the quiet period.
		w.logger.Debug("Skipping vanished file", logging.F("path", path), logging.Err(err))
		return
	}
	for _, f := range files {
		if err := w.handler(ctx, f); err != nil {
			w.logger.Warn("Failed to process transcript", logging.F("path", f.Path), logging.Err(err))
			continue
		}
		w.logger.Debug("Processed transcript", logging.F("path", f.Path))
	}
}

// addTree watches root and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
