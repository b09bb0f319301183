package cache

import "time"

// LayeredCache checks memory first, then disk
type LayeredCache struct {
	memory Cache
	disk   Cache // nil when no directory is configured
}

// NewLayeredCache creates a new layered cache. An empty diskDir keeps
// entries in memory only.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	c := &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
	}
	if diskDir != "" {
		c.disk = NewDiskCache(diskDir, diskTTL)
	}
	return c
}

// Get retrieves a value, promoting disk hits into memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if c.disk == nil {
		return nil, false
	}
	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers. The memory layer always uses its own TTL.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, 0); err != nil {
		return err
	}
	if c.disk != nil {
		return c.disk.Set(key, value, ttl)
	}
	return nil
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	if c.disk != nil {
		return c.disk.Delete(key)
	}
	return nil
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	if c.disk != nil {
		return c.disk.Clear()
	}
	return nil
}
