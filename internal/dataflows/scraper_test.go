package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecrew/pkg/errors"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Fallback Title</title>
	<meta property="og:site_name" content="Example Finance News">
</head>
<body>
	<h1>Apple Raises Guidance After Record Quarter</h1>
	<div class="article-content">
		<p>Apple reported record revenue   for the quarter.</p>
		<p>Shares rose in after-hours trading.</p>
	</div>
</body>
</html>`

func TestScrapeExtractsArticle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer ts.Close()

	scraper := NewPageScraper(ScraperConfig{CacheDir: t.TempDir(), Retry: fastRetry()})
	page, err := scraper.Scrape(context.Background(), ts.URL, 8000)
	require.NoError(t, err)

	assert.Equal(t, "Apple Raises Guidance After Record Quarter", page.Title)
	assert.Contains(t, page.Content, "record revenue for the quarter")
	assert.Contains(t, page.Content, "after-hours trading")
	assert.Equal(t, "Example Finance News", page.Source)
}

func TestScrapeFallsBackToParagraphs(t *testing.T) {
	html := `<html><head><title>Plain Page</title></head><body><p>First paragraph.</p><p>Second paragraph.</p></body></html>`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(html))
	}))
	defer ts.Close()

	scraper := NewPageScraper(ScraperConfig{CacheDir: t.TempDir(), Retry: fastRetry()})
	page, err := scraper.Scrape(context.Background(), ts.URL, 8000)
	require.NoError(t, err)

	assert.Equal(t, "Plain Page", page.Title)
	assert.Contains(t, page.Content, "First paragraph.")
	assert.Contains(t, page.Content, "Second paragraph.")
}

func TestScrapeTruncatesContent(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	html := "<html><body><p>" + long + "</p></body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(html))
	}))
	defer ts.Close()

	scraper := NewPageScraper(ScraperConfig{CacheDir: t.TempDir(), Retry: fastRetry()})
	page, err := scraper.Scrape(context.Background(), ts.URL, 600)
	require.NoError(t, err)

	assert.LessOrEqual(t, len([]rune(page.Content)), 603)
	assert.True(t, strings.HasSuffix(page.Content, "..."))
}

func TestScrapeRejectsBadURL(t *testing.T) {
	scraper := NewPageScraper(ScraperConfig{CacheDir: t.TempDir(), Retry: fastRetry()})

	for _, bad := range []string{"", "ftp://example.com/x", "not a url", "file:///etc/passwd"} {
		_, err := scraper.Scrape(context.Background(), bad, 1000)
		require.Error(t, err, "url %q", bad)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), "url %q: %v", bad, err)
	}
}

func TestScrapeErrorsOnHTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	scraper := NewPageScraper(ScraperConfig{CacheDir: t.TempDir(), Retry: fastRetry()})
	_, err := scraper.Scrape(context.Background(), ts.URL, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestScrapeErrorsOnEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Empty</title></head><body></body></html>`))
	}))
	defer ts.Close()

	scraper := NewPageScraper(ScraperConfig{CacheDir: t.TempDir(), Retry: fastRetry()})
	_, err := scraper.Scrape(context.Background(), ts.URL, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no readable content")
}
