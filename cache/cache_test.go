package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/taxbot/client"
)

var tmpDir string

func TestMain(m *testing.M) {
	// Create temporary directory
	var err error
	tmpDir, err = os.MkdirTemp("", "taxbot-cache")
	Ck(err)

	// Run tests
	exitCode := m.Run()

	// Remove temporary directory
	err = os.RemoveAll(tmpDir)
	Ck(err)

	// Exit with test status code
	os.Exit(exitCode)
}

func newCache(t *testing.T) (c *Cache) {
	fn := filepath.Join(tmpDir, t.Name(), "cache.db")
	c, err := Open(fn)
	Tassert(t, err == nil, "open: %v", err)
	Tassert(t, c != nil)
	return
}

// As a caller, I want to be able to open a cache in a directory that
// doesn't exist yet.
func TestOpen(t *testing.T) {
	c := newCache(t)
	defer c.Close()
	n, err := c.Count()
	Tassert(t, err == nil, "count: %v", err)
	Tassert(t, n == 0, "expected empty cache, got %d", n)
}

// As a caller, I want to put a completion and get it back by key, and
// get ok == false for a key that was never stored.
func TestPutGet(t *testing.T) {
	c := newCache(t)
	defer c.Close()

	err := c.Put("key1", "Hello, world!")
	Tassert(t, err == nil, "put: %v", err)

	value, ok, err := c.Get("key1")
	Tassert(t, err == nil, "get: %v", err)
	Tassert(t, ok, "expected key1 to be cached")
	Tassert(t, value == "Hello, world!", "got %q", value)

	value, ok, err = c.Get("key99")
	Tassert(t, err == nil, "get: %v", err)
	Tassert(t, !ok, "key99 should not be cached")
	Tassert(t, value == "", "got %q", value)
}

// As a caller, I want to delete a key; deleting it again is a no-op.
func TestDelete(t *testing.T) {
	c := newCache(t)
	defer c.Close()

	err := c.Put("key1", "Hello, world!")
	Tassert(t, err == nil, "put: %v", err)
	err = c.Delete("key1")
	Tassert(t, err == nil, "delete: %v", err)
	_, ok, err := c.Get("key1")
	Tassert(t, err == nil && !ok, "key1 should be gone: ok=%v err=%v", ok, err)
	err = c.Delete("key1")
	Tassert(t, err == nil, "second delete: %v", err)
}

// As a caller, I want to count and clear cached completions.
func TestCountClear(t *testing.T) {
	c := newCache(t)
	defer c.Close()

	for i := 1; i <= 4; i++ {
		err := c.Put(Spf("key%d", i), "value")
		Tassert(t, err == nil, "put: %v", err)
	}
	n, err := c.Count()
	Tassert(t, err == nil, "count: %v", err)
	Tassert(t, n == 4, "expected 4, got %d", n)

	err = c.Clear()
	Tassert(t, err == nil, "clear: %v", err)
	n, err = c.Count()
	Tassert(t, err == nil, "count: %v", err)
	Tassert(t, n == 0, "expected 0 after clear, got %d", n)

	// still usable after clear
	err = c.Put("key1", "again")
	Tassert(t, err == nil, "put after clear: %v", err)
}

// As a caller, I want the cache to survive a close and reopen.
func TestReopen(t *testing.T) {
	fn := filepath.Join(tmpDir, "reopen.db")
	c, err := Open(fn)
	Tassert(t, err == nil, "open: %v", err)
	err = c.Put("k", "v")
	Tassert(t, err == nil, "put: %v", err)
	err = c.Close()
	Tassert(t, err == nil, "close: %v", err)

	c, err = Open(fn)
	Tassert(t, err == nil, "reopen: %v", err)
	defer c.Close()
	value, ok, err := c.Get("k")
	Tassert(t, err == nil && ok && value == "v", "got %q ok=%v err=%v", value, ok, err)
}

// As a caller, I want entries older than MaxAge to read as missing,
// and entries to live forever when MaxAge is zero.
func TestMaxAge(t *testing.T) {
	c := newCache(t)
	defer c.Close()

	now := time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	err := c.Put("k", "v")
	Tassert(t, err == nil, "put: %v", err)

	c.MaxAge = time.Hour
	now = now.Add(59 * time.Minute)
	value, ok, err := c.Get("k")
	Tassert(t, err == nil && ok && value == "v", "fresh entry: got %q ok=%v err=%v", value, ok, err)

	now = now.Add(2 * time.Minute)
	value, ok, err = c.Get("k")
	Tassert(t, err == nil && !ok && value == "", "stale entry: got %q ok=%v err=%v", value, ok, err)

	// a fresh Put replaces the stale entry
	err = c.Put("k", "v2")
	Tassert(t, err == nil, "put: %v", err)
	value, ok, err = c.Get("k")
	Tassert(t, err == nil && ok && value == "v2", "refreshed entry: got %q ok=%v err=%v", value, ok, err)

	c.MaxAge = 0
	now = now.Add(24 * 365 * time.Hour)
	value, ok, err = c.Get("k")
	Tassert(t, err == nil && ok && value == "v2", "no expiry: got %q ok=%v err=%v", value, ok, err)
}

func TestKey(t *testing.T) {
	msgs := []client.ChatMsg{{Role: client.RoleUser, Content: "What is AGI?"}}
	k1 := Key("gemini-1.5-flash", "sys", msgs)
	k2 := Key("gemini-1.5-flash", "sys", msgs)
	Tassert(t, k1 == k2, "key should be stable")
	Tassert(t, len(k1) == 64, "expected hex sha256, got %q", k1)

	others := []string{
		Key("gpt-4o", "sys", msgs),
		Key("gemini-1.5-flash", "other sys", msgs),
		Key("gemini-1.5-flash", "sys", []client.ChatMsg{{Role: client.RoleAI, Content: "What is AGI?"}}),
		Key("gemini-1.5-flash", "sys", nil),
		// field boundaries matter
		Key("gemini-1.5-flash", "sysWhat", []client.ChatMsg{{Role: client.RoleUser, Content: " is AGI?"}}),
	}
	for i, k := range others {
		Tassert(t, k != k1, "key %d collides with base key", i)
	}
}
