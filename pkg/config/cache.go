package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadPolicy controls when a Cache re-reads its file.
type ReloadPolicy int

const (
	// CacheForever loads once and serves the same value until invalidated.
	CacheForever ReloadPolicy = iota
	// ReloadEveryCall re-reads the file on every Get.
	ReloadEveryCall
)

func (p ReloadPolicy) String() string {
	if p == ReloadEveryCall {
		return "reload-every-call"
	}
	return "cache-forever"
}

// PolicyForProfile returns CacheForever for the production profile and
// ReloadEveryCall for anything else.
func PolicyForProfile(profile string) ReloadPolicy {
	if profile == "production" {
		return CacheForever
	}
	return ReloadEveryCall
}

// Cache holds a configuration value loaded from a file with Load.
type Cache[T any] struct {
	path   string
	policy ReloadPolicy

	mu    sync.Mutex
	value *T
}

// NewCache returns a cache for the file at path.
func NewCache[T any](path string, policy ReloadPolicy) *Cache[T] {
	return &Cache[T]{path: path, policy: policy}
}

// Path returns the file backing the cache.
func (c *Cache[T]) Path() string { return c.path }

// Get returns the cached value, loading it when needed. A failed load
// returns the error under either policy and leaves the cache as it was, so
// a broken edit surfaces on the next call instead of serving stale config.
func (c *Cache[T]) Get() (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil && c.policy == CacheForever {
		return c.value, nil
	}
	var v T
	if err := Load(c.path, &v); err != nil {
		return nil, err
	}
	c.value = &v
	return c.value, nil
}

// Invalidate drops the cached value so the next Get reloads.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.value = nil
	c.mu.Unlock()
}

// Watch invalidates the cache whenever its file changes, until ctx is
// cancelled. Editors that replace files are handled by watching the
// parent directory.
func (c *Cache[T]) Watch(ctx context.Context, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(c.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("config watcher: started", slog.String("path", abs))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("config watcher: stopped", slog.String("path", abs))
			return nil

		case <-fire:
			fire = nil
			c.Invalidate()
			logger.Info("config watcher: reloaded", slog.String("path", abs))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(100 * time.Millisecond)
			} else {
				debounce.Reset(100 * time.Millisecond)
			}
			fire = debounce.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
