package tasks

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mrlokans/bookshelf/internal/config"
)

// Config sizes the worker pool of a Client.
type Config struct {
	// Workers is the number of concurrent task workers.
	Workers int

	// ReleaseAfter hands a claimed task back to the queue if it has not
	// finished in time.
	ReleaseAfter time.Duration

	// CleanupInterval is how often expired task records are removed.
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

// ConfigFrom fills a Config from the application settings, keeping defaults
// for anything left unset.
func ConfigFrom(cfg config.Tasks) Config {
	out := DefaultConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.ReleaseAfter > 0 {
		out.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	return out
}

// DBPath returns the location of the task database that sits next to the
// main one: "data/bookshelf.db" becomes "data/bookshelf-tasks.db".
func DBPath(mainDBPath string) string {
	dir := filepath.Dir(mainDBPath)
	base := filepath.Base(mainDBPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"-tasks"+ext)
}
