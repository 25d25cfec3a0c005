// Package metadata looks up book records in the Google Books volumes API.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrlokans/bookshelf/internal/config"
)

const userAgent = "Bookshelf/1.0 (https://github.com/mrlokans/bookshelf)"

// VolumesResponse is the subset of the volumes search payload that is used.
type VolumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

type Volume struct {
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

type VolumeInfo struct {
	Title         string      `json:"title"`
	Authors       []string    `json:"authors"`
	Description   string      `json:"description"`
	PublishedDate string      `json:"publishedDate"`
	Categories    []string    `json:"categories"`
	ImageLinks    *ImageLinks `json:"imageLinks"`
}

type ImageLinks struct {
	Thumbnail string `json:"thumbnail"`
}

// Thumbnail returns the thumbnail link, or "" when the volume has none.
func (v VolumeInfo) Thumbnail() string {
	if v.ImageLinks == nil {
		return ""
	}
	return v.ImageLinks.Thumbnail
}

// GoogleBooksConfig configures a GoogleBooksClient. Zero values fall back to
// the public endpoint, a 10 second timeout and no throttling.
type GoogleBooksConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MinInterval time.Duration
}

// ConfigFrom maps the application settings onto a client config.
func ConfigFrom(cfg config.GoogleBooks) GoogleBooksConfig {
	return GoogleBooksConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		MinInterval: cfg.MinInterval,
	}
}

// GoogleBooksClient queries the Google Books volumes endpoint.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

func NewGoogleBooksClient(cfg GoogleBooksConfig) *GoogleBooksClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/books/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := &GoogleBooksClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
	if cfg.MinInterval > 0 {
		client.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return client
}

// Query runs a single volumes search. Any non-200 status or undecodable body
// is returned as an error; nothing is retried.
func (c *GoogleBooksClient) Query(ctx context.Context, q string) (*VolumesResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	params := url.Values{}
	params.Set("q", q)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query volumes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result VolumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
