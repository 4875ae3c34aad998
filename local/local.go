// Package local provides an offline vwo.Client for tests and local
// development.
//
// The client answers from an in-memory flag table. It does no targeting or
// bucketing: every user gets the same answer for a flag, and unknown flags
// resolve to a disabled flag with no variables, as the VWO SDK reports them.
// The table can be loaded from a YAML file and reloaded when that file
// changes; see [LoadFile] and [Client.Watch].
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
)

const defaultResyncInterval = time.Minute

var errEmptyKey = errors.New("flag key is required")

// Client is an in-memory vwo.Client. It is safe for concurrent use.
type Client struct {
	mu     sync.RWMutex
	flags  map[string]vwo.Flag
	logger *slog.Logger

	resyncInterval time.Duration
	onReload       func(err error, flags int)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for reload diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResyncInterval sets how often Watch reloads the file even without a
// change event. Zero or a negative interval disables periodic reloads.
func WithResyncInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.resyncInterval = interval
	}
}

// WithReloadHook registers a callback invoked after every reload attempt made
// by Watch, with the reload error and the resulting number of flags.
func WithReloadHook(fn func(err error, flags int)) Option {
	return func(c *Client) {
		c.onReload = fn
	}
}

// New returns a Client serving flags. The map is copied.
func New(flags map[string]vwo.Flag, opts ...Option) *Client {
	c := &Client{
		logger:         slog.New(slog.DiscardHandler),
		resyncInterval: defaultResyncInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Replace(flags)
	return c
}

// GetFlag returns the flag stored under key. The user context is accepted
// for interface compatibility and otherwise ignored.
func (c *Client) GetFlag(ctx context.Context, key string, _ vwo.Context) (vwo.FlagResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	flag := c.flags[key]
	c.mu.RUnlock()

	return flag, nil
}

// Flag returns the stored flag and whether it exists.
func (c *Client) Flag(key string) (vwo.Flag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	flag, ok := c.flags[key]
	return flag, ok
}

// Keys returns the stored flag keys in sorted order.
func (c *Client) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.flags))
	for key := range c.flags {
		keys = append(keys, key)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Set stores or replaces a single flag.
func (c *Client) Set(key string, flag vwo.Flag) error {
	if key == "" {
		return errEmptyKey
	}
	c.mu.Lock()
	c.flags[key] = flag
	c.mu.Unlock()
	return nil
}

// Delete removes a flag. Deleting an unknown key is a no-op.
func (c *Client) Delete(key string) {
	c.mu.Lock()
	delete(c.flags, key)
	c.mu.Unlock()
}

// Replace swaps the whole flag table.
func (c *Client) Replace(flags map[string]vwo.Flag) {
	next := make(map[string]vwo.Flag, len(flags))
	for key, flag := range flags {
		next[key] = flag
	}

	c.mu.Lock()
	c.flags = next
	c.mu.Unlock()
}

// Reload replaces the flag table with the contents of the file at path. On
// error the current table is kept.
func (c *Client) Reload(path string) error {
	flags, err := LoadFile(path)
	if err != nil {
		return err
	}
	c.Replace(flags)
	return nil
}

// Watch reloads the file at path whenever it is written or recreated, and on
// every resync interval, until ctx is done. It returns once the watch is
// established; reload failures are logged and keep the previous flags.
func (c *Client) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	// Editors often replace files instead of writing in place, so watch the
	// directory and filter by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()

		var resync <-chan time.Time
		if c.resyncInterval > 0 {
			ticker := time.NewTicker(c.resyncInterval)
			defer ticker.Stop()
			resync = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-resync:
				c.reloadLogged(path)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c.reloadLogged(path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("flag file watch error", "path", path, "error", err)
			}
		}
	}()

	return nil
}

func (c *Client) reloadLogged(path string) {
	err := c.Reload(path)

	c.mu.RLock()
	size := len(c.flags)
	c.mu.RUnlock()
	if c.onReload != nil {
		c.onReload(err, size)
	}

	if err != nil {
		c.logger.Warn("flag file reload failed, keeping previous flags", "path", path, "error", err)
		return
	}
	c.logger.Debug("flag file reloaded", "path", path, "flags", size)
}
