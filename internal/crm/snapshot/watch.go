package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 100 * time.Millisecond

// Watch calls onChange whenever the snapshot file is replaced by another
// writer. Writes made through this persister are ignored. Bursts of events are
// collapsed. Watch blocks until ctx is done.
func (p *FilePersister) Watch(ctx context.Context, onChange func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched because atomic saves replace the file inode.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("failed to watch data dir: %w", err)
	}

	p.logger.Info("Watching snapshot", zap.String("path", p.path))

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if !p.changedExternally() {
				continue
			}
			p.logger.Info("Snapshot changed on disk, reloading")
			if err := onChange(ctx); err != nil {
				p.logger.Error("Failed to reload snapshot", zap.Error(err))
			}

		case wErr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			p.logger.Error("fsnotify error", zap.Error(wErr))
		}
	}
}
