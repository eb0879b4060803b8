package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads the seed file when it changes on disk.
type Watcher struct {
	provider *Provider
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Watch starts watching path. The parent directory is watched so editors
// that replace the file instead of writing it are also seen.
func (p *Provider) Watch(path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch settings directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		provider: p,
		path:     abs,
		debounce: debounce,
		watcher:  fw,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.run(ctx)

	p.Logger.Info("watching settings file", "path", abs)
	return w, nil
}

// Close stops the watcher and waits for a pending reload to finish.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	// Stopped timer, armed on the first relevant event.
	timer := time.NewTimer(time.Hour)
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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			if _, err := w.provider.LoadFile(ctx, w.path); err != nil {
				w.provider.Logger.Error("failed to reload settings file", "path", w.path, "err", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.provider.Logger.Warn("settings watcher error", "err", err)
		}
	}
}
