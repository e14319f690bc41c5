package dataflows

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradecrew/internal/retry"
	"tradecrew/pkg/errors"
)

const serperBaseURL = "https://google.serper.dev"

// SerperConfig configures the Serper search client
type SerperConfig struct {
	APIKey       string
	BaseURL      string
	CacheDir     string
	CacheEnabled bool
	Retry        *retry.Config
}

// SerperClient queries the Serper Google Search API
type SerperClient struct {
	client   *resty.Client
	cache    *CacheManager
	retryCfg *retry.Config
}

// NewSerperClient creates a new Serper client
func NewSerperClient(cfg SerperConfig) *SerperClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = serperBaseURL
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("X-API-KEY", cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	// Search results go stale fast during market hours
	cache := NewCacheManager(filepath.Join(cfg.CacheDir, "serper"), 15*time.Minute, cfg.CacheEnabled)

	return &SerperClient{
		client:   client,
		cache:    cache,
		retryCfg: retryCfg,
	}
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search runs a web search and returns the organic results
func (sc *SerperClient) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty search query")
	}
	if count <= 0 {
		count = 8
	}

	cacheKey := map[string]interface{}{"q": query, "num": count}
	var cached []SearchResult
	if sc.cache.Get("search", cacheKey, &cached) {
		return cached, nil
	}

	var results []SearchResult
	err := retry.Do(ctx, sc.retryCfg, func() error {
		resp, err := sc.client.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{"q": query, "num": count}).
			Post("/search")

		if err != nil {
			return errors.Wrapf(err, "search %q", query)
		}
		if resp.StatusCode() != 200 {
			return errors.Newf("serper error %d: %s", resp.StatusCode(), resp.String())
		}

		var payload serperResponse
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			return errors.Wrap(err, "parse search response")
		}

		results = make([]SearchResult, 0, len(payload.Organic))
		for _, item := range payload.Organic {
			results = append(results, SearchResult{
				Title:   item.Title,
				Snippet: item.Snippet,
				URL:     item.Link,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = sc.cache.Set("search", cacheKey, results)
	return results, nil
}
