package core

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/envi"
	"github.com/stevegt/taxbot/util"
)

// loadDotenv loads API keys and settings from a .env file in the
// current directory.  Variables already set in the environment win.
func loadDotenv() {
	if envi.String("NO_DOTENV", "") == "1" {
		return
	}
	err := godotenv.Load(".env")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		Debug("loading .env: %v", err)
	}
}

// defaultModel returns the model named by TAXBOT_MODEL, or
// DefaultModel.
func defaultModel() string {
	return envi.String("TAXBOT_MODEL", DefaultModel)
}

// defaultCachePath returns the cache file named by TAXBOT_CACHE, or
// cache.db in the user cache directory.
func defaultCachePath() string {
	return envi.String("TAXBOT_CACHE", filepath.Join(util.CacheDir(), "cache.db"))
}
