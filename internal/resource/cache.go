package resource

import (
	"bytes"
	"context"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachingLoader memoizes the contents of every resource it successfully
// reads from the wrapped loader. Failures are not cached.
type CachingLoader struct {
	next  Loader
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string][]byte
}

// NewCachingLoader wraps next.
func NewCachingLoader(next Loader) *CachingLoader {
	return &CachingLoader{next: next, entries: make(map[string][]byte)}
}

// Open implements Loader. Returned readers share no state with the cache.
func (c *CachingLoader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if data, ok := c.lookup(name); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		if data, ok := c.lookup(name); ok {
			return data, nil
		}
		data, err := ReadAll(ctx, c.next, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[name] = data
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(v.([]byte))), nil
}

// Invalidate drops every cached entry.
func (c *CachingLoader) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string][]byte)
	c.mu.Unlock()
}

// Len reports how many resources are cached.
func (c *CachingLoader) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachingLoader) lookup(name string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[name]
	return data, ok
}

var _ Loader = (*CachingLoader)(nil)
