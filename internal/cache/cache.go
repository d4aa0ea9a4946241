// Package cache is a small file-based TTL cache for JSON values.
//
// Each Store owns one file, named after a key and a hash of the scope the
// value belongs to (for example the URL it was fetched from). Disable all
// caching with APIBEAN_NO_CACHE=1.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvNoCache disables every Store when set to a non-empty value.
const EnvNoCache = "APIBEAN_NO_CACHE"

type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	Value    json.RawMessage `json:"value"`
}

// Store reads and writes a single cache entry.
type Store struct {
	path string
	ttl  time.Duration
}

// NewStore returns a Store under dir for key, scoped by scope.
func NewStore(dir, key, scope string, ttl time.Duration) *Store {
	hash := sha1.Sum([]byte(scope))
	filename := fmt.Sprintf("%s_%s.json", sanitizeKey(key), hex.EncodeToString(hash[:6]))
	return &Store{
		path: filepath.Join(dir, filename),
		ttl:  ttl,
	}
}

// Path returns the cache file path.
func (s *Store) Path() string { return s.path }

// Get loads the cached value into dst. It returns false on a miss: no
// file, an expired or unreadable entry, or caching disabled.
func (s *Store) Get(dst any) bool {
	if disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if time.Since(e.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(e.Value, dst) == nil
}

// Put writes value to the cache. Errors are ignored; a failed write only
// costs a later miss.
func (s *Store) Put(value any) {
	if disabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: time.Now(), Value: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}

	// Write then rename so readers never see a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

// Clear removes the cache file.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
}

// DefaultDir returns "<user cache dir>/apibean".
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "apibean"), nil
}

func disabled() bool {
	return os.Getenv(EnvNoCache) != ""
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	key = strings.ReplaceAll(key, "/", "-")
	key = strings.ReplaceAll(key, "\\", "-")
	key = strings.ReplaceAll(key, "_", "-")
	return key
}
