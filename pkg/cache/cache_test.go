package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func init() {
	retryDelay = time.Millisecond
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	c := Disabled()
	defer c.Close()

	if err := c.Set(ctx, "index:events.db", []byte("[1,2]"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "index:events.db")
	if err != nil || hit || data != nil {
		t.Errorf("Get = %q, %v, %v; want a miss", data, hit, err)
	}
	if err := c.Delete(ctx, "index:events.db"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "extract:abc", []byte(`{"name":"Gentle"}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "extract:abc")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v err %v, want hit", hit, err)
	}
	if string(data) != `{"name":"Gentle"}` {
		t.Errorf("Get data = %s", data)
	}

	if err := c.Delete(ctx, "extract:abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "extract:abc"); hit {
		t.Error("entry should be gone after Delete")
	}
	if err := c.Delete(ctx, "extract:abc"); err != nil {
		t.Errorf("Delete of missing key should not fail: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should be a miss")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	fc := c.(*FileCache)

	p := fc.path("k")
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, hit, err := c.Get(ctx, "k")
	if err != nil || hit {
		t.Errorf("corrupt entry: hit %v err %v, want silent miss", hit, err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("corrupt entry should be removed")
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	fc := c.(*FileCache)

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := fc.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear removed %d entries, want 3", n)
	}
	if _, err := os.Stat(fc.Dir()); err != nil {
		t.Errorf("cache dir should survive Clear: %v", err)
	}
}

func TestFileCacheUsagePrune(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	fc := c.(*FileCache)

	if err := c.Set(ctx, "extract:a", []byte("geometry"), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "index:b", []byte("[1,2,3]"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	u, err := fc.Usage()
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if u.Entries != 2 || u.Expired != 1 || u.Bytes == 0 {
		t.Errorf("Usage() = %+v, want 2 entries with 1 expired", u)
	}

	n, err := fc.Prune()
	if err != nil || n != 1 {
		t.Fatalf("Prune() = %d, %v; want 1", n, err)
	}
	if _, hit, _ := c.Get(ctx, "extract:a"); !hit {
		t.Error("live entry should survive Prune")
	}
	if u, _ := fc.Usage(); u.Entries != 1 || u.Expired != 0 {
		t.Errorf("Usage() after Prune = %+v", u)
	}
}

func TestFileCacheForeignEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	fc := c.(*FileCache)

	if err := c.Set(ctx, "index:a", []byte("a"), 0); err != nil {
		t.Fatal(err)
	}
	// an entry written for another key at this key's path
	if err := os.MkdirAll(filepath.Dir(fc.path("index:b")), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(fc.path("index:a"), fc.path("index:b")); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "index:b"); hit || err != nil {
		t.Errorf("Get of foreign entry = hit %v err %v, want miss", hit, err)
	}
	if _, err := os.Stat(fc.path("index:b")); !os.IsNotExist(err) {
		t.Error("foreign entry should be removed")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "detector.gdml")
	if err := os.WriteFile(p, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(p)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got != Hash([]byte("hello")) {
		t.Errorf("HashFile = %s, want Hash of content", got)
	}
	if _, err := HashFile(p + ".missing"); err == nil {
		t.Error("HashFile of missing file should fail")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	ek1 := k.ExtractKey("hash123", ExtractKeyOpts{VisLevel: 5, Hall: "hallPV"})
	ek2 := k.ExtractKey("hash123", ExtractKeyOpts{VisLevel: 6, Hall: "hallPV"})
	if ek1 == ek2 {
		t.Error("Different ExtractKeyOpts should produce different keys")
	}
	if !strings.HasPrefix(ek1, "extract:") {
		t.Errorf("ExtractKey should be prefixed: %s", ek1)
	}

	ik1 := k.IndexKey("events.root")
	ik2 := k.IndexKey("events.db")
	if ik1 == ik2 {
		t.Error("Different sources should produce different index keys")
	}
	if ik1 != k.IndexKey("events.root") {
		t.Error("IndexKey should be deterministic")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "evd:")

	key := scoped.IndexKey("x")
	if !strings.HasPrefix(key, "evd:index:") {
		t.Errorf("ScopedKeyer IndexKey should be prefixed: %s", key)
	}
	ek := scoped.ExtractKey("h", ExtractKeyOpts{})
	if !strings.HasPrefix(ek, "evd:extract:") {
		t.Errorf("ScopedKeyer ExtractKey should be prefixed: %s", ek)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	if got, want := scoped.IndexKey("a"), "prefix:"+NewDefaultKeyer().IndexKey("a"); got != want {
		t.Errorf("nil inner key = %s, want %s", got, want)
	}
}

var errPermanent = errors.New("invalid key")

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(ErrBackend)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != ErrBackend.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsRetryable(errPermanent) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should call once: %d", calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return errPermanent
	})
	if err != errPermanent {
		t.Errorf("Should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should not retry non-retryable error: %d", calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrBackend)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("Should retry once: %d", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrBackend)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisConfig{}); err == nil {
		t.Error("NewRedisCache without address should fail")
	}
}
