package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/verigraph/verigraph/internal/store"
)

// debounceInterval batches rapid file events into a single re-import.
const debounceInterval = 2 * time.Second

// WatchDataset watches the dataset file and re-runs the import pipeline
// whenever it changes. Blocks until ctx is cancelled.
func WatchDataset(
	ctx context.Context,
	datasetPath string,
	backend store.Backend,
	buildEmbeddings bool,
	onImport func(*PipelineResult, error),
) error {
	absPath, err := filepath.Abs(datasetPath)
	if err != nil {
		return fmt.Errorf("resolving dataset path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace files via rename, which
	// drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}

	var batchTimer *time.Timer
	var timerC <-chan time.Time
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			if batchTimer != nil {
				batchTimer.Stop()
			}
			batchTimer = time.NewTimer(debounceInterval)
			timerC = batchTimer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onImport != nil {
				onImport(nil, fmt.Errorf("watch error: %w", err))
			}

		case <-timerC:
			timerC = nil
			if !pending {
				continue
			}
			pending = false
			result, err := RunPipeline(ctx, absPath, backend, buildEmbeddings, nil)
			if onImport != nil {
				onImport(result, err)
			}
		}
	}
}
