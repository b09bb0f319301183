package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestKey(t *testing.T) {
	a, err := RequestKey("matrix", "harvest", map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	b, err := RequestKey("matrix", "harvest", map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	c, err := RequestKey("matrix", "chat", map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "haley:v1:"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = RequestKey("m", "a", make(chan int))
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	value := []byte("hello")
	require.NoError(t, c.Set("k", value, 0))
	value[0] = 'j'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, c.Set("short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("short")
	assert.False(t, ok)

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key, err := RequestKey("m", "a", nil)
	require.NoError(t, err)

	require.NoError(t, c.Set(key, []byte(`{"ok":true}`), 0))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, `{"ok":true}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ":")

	require.NoError(t, c.Set("expired", []byte("x"), -time.Second))
	_, ok = c.Get("expired")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "expired.cache"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Delete(key))
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	first := NewLayeredCache(time.Minute, dir, time.Hour)
	require.NoError(t, first.Set("k", []byte("v"), 0))

	// A new process sees only the disk layer
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	require.NoError(t, second.Clear())
	_, ok = NewDiskCache(dir, time.Hour).Get("k")
	assert.False(t, ok)
}

func TestLayeredCache_MemoryOnly(t *testing.T) {
	c := NewLayeredCache(time.Minute, "", 0)
	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestExpandDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".haley/cache"), ExpandDir("~/.haley/cache"))
	assert.Equal(t, "/tmp/x", ExpandDir("/tmp/x"))
}
