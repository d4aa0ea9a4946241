package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apibean/apibean-cli/internal/cache"
)

type release struct {
	Tag string `json:"tag"`
	URL string `json:"url"`
}

func TestStore_PutAndGet(t *testing.T) {
	dir := t.TempDir()
	s := cache.NewStore(dir, "release", "https://api.github.com/x", time.Hour)

	s.Put(release{Tag: "v1.2.0", URL: "https://example.com"})

	var got release
	if !s.Get(&got) {
		t.Fatal("expected cache hit")
	}
	if got.Tag != "v1.2.0" || got.URL != "https://example.com" {
		t.Fatalf("unexpected value: %+v", got)
	}
	if filepath.Dir(s.Path()) != dir {
		t.Fatalf("cache file outside dir: %s", s.Path())
	}
}

func TestStore_ExpiredTTL(t *testing.T) {
	dir := t.TempDir()
	s := cache.NewStore(dir, "release", "https://example.com", time.Millisecond)

	s.Put(release{Tag: "v1"})
	time.Sleep(5 * time.Millisecond)

	var got release
	if s.Get(&got) {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestStore_MissOnEmpty(t *testing.T) {
	s := cache.NewStore(t.TempDir(), "release", "https://example.com", time.Hour)

	var got release
	if s.Get(&got) {
		t.Fatal("expected cache miss on empty store")
	}
}

func TestStore_MissOnCorruptFile(t *testing.T) {
	s := cache.NewStore(t.TempDir(), "release", "https://example.com", time.Hour)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got release
	if s.Get(&got) {
		t.Fatal("expected cache miss on corrupt file")
	}
}

func TestStore_Clear(t *testing.T) {
	s := cache.NewStore(t.TempDir(), "release", "https://example.com", time.Hour)

	s.Put(release{Tag: "v1"})
	s.Clear()

	var got release
	if s.Get(&got) {
		t.Fatal("expected cache miss after clear")
	}
}

func TestStore_ScopesAreSeparate(t *testing.T) {
	dir := t.TempDir()
	s1 := cache.NewStore(dir, "release", "https://one.example.com", time.Hour)
	s2 := cache.NewStore(dir, "release", "https://two.example.com", time.Hour)

	s1.Put(release{Tag: "one"})
	s2.Put(release{Tag: "two"})

	var got1, got2 release
	s1.Get(&got1)
	s2.Get(&got2)
	if got1.Tag != "one" || got2.Tag != "two" {
		t.Fatal("scopes should have separate entries")
	}
}

func TestStore_DisabledByEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(cache.EnvNoCache, "1")

	s := cache.NewStore(dir, "release", "https://example.com", time.Hour)
	s.Put(release{Tag: "v1"})

	var got release
	if s.Get(&got) {
		t.Fatal("expected cache miss when disabled via env")
	}

	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Fatal("expected no files written when cache disabled")
	}
}
