// Package covers keeps local copies of book cover images.
package covers

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotImage = errors.New("response is not an image")

// Config configures a Cache. Zero values fall back to a 30 second timeout
// and a 5 MiB size limit.
type Config struct {
	Dir      string
	Timeout  time.Duration
	MaxBytes int64

	// UpgradeInsecure tries https first for http:// cover links and only
	// falls back to the plain link when that fails.
	UpgradeInsecure bool
}

// Cache handles local caching of book cover images.
type Cache struct {
	dir        string
	maxBytes   int64
	upgrade    bool
	httpClient *http.Client
}

// NewCache creates a new cover cache, creating its directory if needed.
func NewCache(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cover cache directory is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Cache{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		upgrade:  cfg.UpgradeInsecure,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Get returns the path of the cached cover for a book, downloading it first
// when it is not cached yet. A changed coverURL maps to a new file.
func (c *Cache) Get(ctx context.Context, bookID uint, coverURL string) (string, error) {
	if coverURL == "" {
		return "", nil
	}

	cachePath := filepath.Join(c.dir, coverFilename(bookID, coverURL))
	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	if c.upgrade && strings.HasPrefix(coverURL, "http://") {
		secure := "https://" + strings.TrimPrefix(coverURL, "http://")
		err := c.fetch(ctx, secure, cachePath)
		if err == nil {
			return cachePath, nil
		}
		log.Printf("Cover over https failed for book %d, retrying plain http: %v", bookID, err)
	}

	if err := c.fetch(ctx, coverURL, cachePath); err != nil {
		return "", err
	}
	return cachePath, nil
}

// Invalidate removes every cached cover of a book.
func (c *Cache) Invalidate(bookID uint) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf("cover_%d_*", bookID)))
	if err != nil {
		return err
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c *Cache) Dir() string {
	return c.dir
}

func coverFilename(bookID uint, coverURL string) string {
	hash := sha256.Sum256([]byte(coverURL))
	return fmt.Sprintf("cover_%d_%x.img", bookID, hash[:8])
}

// fetch downloads url into cachePath through a temp file so readers never
// see a partial image.
func (c *Cache) fetch(ctx context.Context, url, cachePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Bookshelf/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch cover: status %d", resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: %q", ErrNotImage, resp.Header.Get("Content-Type"))
	}

	tmpFile, err := os.CreateTemp(c.dir, "cover_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	n, err := io.Copy(tmpFile, io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return err
	}
	if n > c.maxBytes {
		return fmt.Errorf("cover larger than %d bytes", c.maxBytes)
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, cachePath)
}
