package config

import (
	"context"
	"os"
	"time"
)

// WatchStores loads the stores file, hands it to onUpdate, and then polls the
// file's modification time every interval until ctx is done.
//
// A reload that fails keeps the previous config in effect. The failure is
// reported to onError once per file version and the reload is retried on
// every tick, so a file caught half written is picked up without another edit.
func WatchStores(ctx context.Context, path string, interval time.Duration, onUpdate func(*StoresConfig), onError func(error)) error {
	if path == "" {
		path = "configs/stores.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &storesWatcher{path: path, onUpdate: onUpdate, onError: onError}
	if err := w.load(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

type storesWatcher struct {
	path     string
	onUpdate func(*StoresConfig)
	onError  func(error)

	applied  time.Time // mtime of the config in effect
	reported time.Time // mtime whose failure was already reported
	pending  bool      // the file changed and has not loaded yet
}

func (w *storesWatcher) load() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	cfg, err := LoadStoresConfig(w.path)
	if err != nil {
		return err
	}
	w.applied = info.ModTime()
	w.pending = false
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
	return nil
}

func (w *storesWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		return // the file may be mid-replace
	}
	mod := info.ModTime()
	if mod.After(w.applied) {
		w.pending = true
	}
	if !w.pending {
		return
	}

	cfg, err := LoadStoresConfig(w.path)
	if err != nil {
		if !mod.Equal(w.reported) && w.onError != nil {
			w.onError(err)
		}
		w.reported = mod
		return
	}
	w.applied = mod
	w.pending = false
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
