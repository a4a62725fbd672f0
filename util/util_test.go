package util

import (
	"path/filepath"
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestStringInSlice(t *testing.T) {
	list := []string{"q", "chat"}
	Tassert(t, StringInSlice("q", list))
	Tassert(t, StringInSlice("chat", list))
	Tassert(t, !StringInSlice("parse", list))
	Tassert(t, !StringInSlice("q", nil))
}

func TestCacheDir(t *testing.T) {
	dir := CacheDir()
	Tassert(t, filepath.Base(dir) == "taxbot", "got %q", dir)
}

func TestPreview(t *testing.T) {
	Tassert(t, Preview("short", 10) == "short")
	Tassert(t, Preview("a\n  b\tc", 10) == "a b c", "got %q", Preview("a\n  b\tc", 10))
	got := Preview("Capital gains tax applies", 7)
	Tassert(t, got == "Capital...", "got %q", got)
}
