package util

import (
	"os"
	"path/filepath"
	"strings"
)

// StringInSlice returns true if str is in list.
func StringInSlice(str string, list []string) bool {
	for _, v := range list {
		if v == str {
			return true
		}
	}
	return false
}

// CacheDir returns the per-user directory for taxbot's cache files,
// falling back to the system temp directory if the user cache
// directory can't be determined.
func CacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "taxbot")
}

// Preview returns s collapsed onto one line and cut to at most n
// runes, for debug output.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
