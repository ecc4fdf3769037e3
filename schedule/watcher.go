package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the document corpus between scheduled runs and keeps a
// set of topics whose documents changed on disk. The next run logs the set;
// it exists so operators can tell scheduled drift from local edits.
type Watcher struct {
	docsDir string
	logger  *slog.Logger

	mu      sync.Mutex
	changed map[string]struct{}

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher creates a corpus watcher rooted at docsDir.
func NewWatcher(docsDir string, logger *slog.Logger) *Watcher {
	return &Watcher{
		docsDir: docsDir,
		logger:  logger,
		changed: make(map[string]struct{}),
	}
}

// Start begins watching the corpus root and each topic directory under it.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create corpus watcher: %w", err)
	}

	if err := fsw.Add(w.docsDir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch corpus root %s: %w", w.docsDir, err)
	}

	entries, err := os.ReadDir(w.docsDir)
	if err != nil {
		fsw.Close()
		return fmt.Errorf("list corpus root %s: %w", w.docsDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(w.docsDir, entry.Name())
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("Cannot watch topic directory", "dir", dir, "error", err)
		}
	}

	w.fsw = fsw
	w.done = make(chan struct{})

	go w.loop(ctx)

	w.logger.Info("Corpus watcher started", "dir", w.docsDir)

	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Corpus watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// New topic directories start being watched as they appear.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("Cannot watch new topic directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, "-best-practices.md") {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) {
		return
	}

	topic := filepath.Base(filepath.Dir(event.Name))

	w.mu.Lock()
	w.changed[topic] = struct{}{}
	w.mu.Unlock()

	w.logger.Debug("Tracked document changed on disk",
		"topic", topic,
		"op", event.Op.String())
}

// DrainChanged returns the topics changed since the last call and resets
// the set.
func (w *Watcher) DrainChanged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, 0, len(w.changed))
	for topic := range w.changed {
		topics = append(topics, topic)
	}
	w.changed = make(map[string]struct{})

	return topics
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	<-w.done
	return err
}
