// Package cache stores module responses in memory and on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "haley:v1:"

// RequestKey derives a cache key from a module request. Params are
// hashed through their JSON encoding, which sorts map keys.
func RequestKey(target, action string, params any) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(action))
	h.Write([]byte{0})
	h.Write(encoded)
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// ExpandDir resolves a leading ~ in a cache directory
func ExpandDir(dir string) string {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}
