package reload

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/knadh/koanf/providers/file"
)

const debounceDuration = 100 * time.Millisecond

// Watch calls cb whenever the file at path changes and blocks until ctx is done.
// Bursts of changes are debounced into a single call.
func Watch(ctx context.Context, path string, cb func() error) error {
	if ctx.Err() != nil {
		return nil
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("path", path)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	provider := file.Provider(path)
	err := provider.Watch(func(_ any, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Info("failed watching config", "error", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDuration, func() {
			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil {
				return
			}

			log.Info("auto-reloading config")
			start := time.Now()
			if err := cb(); err != nil {
				log.Info("failed to reload config", "error", err)
				return
			}
			log.Info("reloaded config successfully", "duration", time.Since(start).Round(time.Millisecond).String())
		})
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	mu.Lock()
	if timer != nil {
		timer.Stop()
	}
	mu.Unlock()
	return provider.Unwatch()
}
