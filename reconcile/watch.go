package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last
// filesystem event before reconciling.
const DefaultDebounce = 2 * time.Second

// Watcher reconciles a directory whenever its contents settle after a
// change. Because runs are idempotent, the watcher never tracks which
// file changed; it re-reconciles the whole directory and lets the state
// machine skip the clean documents.
type Watcher struct {
	reconciler *Reconciler
	root       string
	debounce   time.Duration
	logger     *slog.Logger
}

// NewWatcher creates a watcher over root. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(reconciler *Reconciler, root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		reconciler: reconciler,
		root:       root,
		debounce:   debounce,
		logger:     slog.Default().With("component", "watcher"),
	}
}

// Run reconciles once immediately, then blocks reconciling on changes
// until the context is cancelled. A corrupt index store aborts the
// watch; per-document failures do not.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.reconcileAll(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		return err
	}
	w.logger.Info("watching", "root", w.root, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("filesystem event", "op", event.Op.String(), "name", event.Name)
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "err", err)

		case <-timer.C:
			pending = false
			if err := w.reconcileAll(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) reconcileAll(ctx context.Context) error {
	docs, err := DiscoverDocuments(w.root)
	if err != nil {
		w.logger.Error("discovery failed", "err", err)
		return nil
	}

	report, err := w.reconciler.Run(ctx, docs)
	if err != nil {
		return err
	}
	w.logger.Info("reconciled", "docs", len(docs), "report", report.String())
	return nil
}
