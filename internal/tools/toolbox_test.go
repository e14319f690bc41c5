package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecrew/internal/config"
	"tradecrew/internal/dataflows"
	"tradecrew/internal/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2.0}
}

func testSettings() func() config.Settings {
	return func() config.Settings {
		return config.Settings{
			Model:          "test-model",
			Temperature:    0.7,
			MaxTokens:      1024,
			MaxToolSteps:   10,
			SearchResults:  3,
			ScrapeMaxChars: 4000,
		}
	}
}

func newTestToolbox(t *testing.T, searchURL string) *Toolbox {
	t.Helper()
	return NewToolbox(ToolboxConfig{
		Search: dataflows.NewSerperClient(dataflows.SerperConfig{
			APIKey:   "k",
			BaseURL:  searchURL,
			CacheDir: t.TempDir(),
			Retry:    fastRetry(),
		}),
		Scraper: dataflows.NewPageScraper(dataflows.ScraperConfig{
			CacheDir: t.TempDir(),
			Retry:    fastRetry(),
		}),
		Market: dataflows.NewMarketClient(dataflows.MarketConfig{
			CacheDir: t.TempDir(),
			Retry:    fastRetry(),
		}),
		Settings: testSettings(),
	})
}

func TestWebSearchToolRecordsResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic": [{"title": "Apple hits new high", "link": "https://example.com/a", "snippet": "shares rallied"}]}`))
	}))
	defer ts.Close()

	tb := newTestToolbox(t, ts.URL)
	rec := NewRecorder()

	out, err := tb.webSearchTool(rec).InvokableRun(context.Background(), `{"query": "AAPL news"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Apple hits new high")

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "web_search", calls[0].Tool)
	assert.Equal(t, "AAPL news", calls[0].Query)
	assert.Contains(t, calls[0].Result, "Apple hits new high")
}

func TestWebSearchToolDegradesWhenProviderDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	ts.Close() // refuse all connections

	tb := newTestToolbox(t, ts.URL)
	rec := NewRecorder()

	out, err := tb.webSearchTool(rec).InvokableRun(context.Background(), `{"query": "AAPL news"}`)
	require.NoError(t, err, "provider outage must not fail the tool call")
	assert.Contains(t, out, "no additional evidence")

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Result, "unavailable")
}

func TestWebSearchToolRequiresQuery(t *testing.T) {
	tb := newTestToolbox(t, "http://127.0.0.1:0")
	rec := NewRecorder()

	_, err := tb.webSearchTool(rec).InvokableRun(context.Background(), `{"query": "  "}`)
	require.Error(t, err)
	assert.Empty(t, rec.Calls())
}

func TestReadWebpageToolExtractsText(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Q3 Results</title></head><body><h1>Q3 Results</h1><p>Revenue grew 8 percent.</p></body></html>`))
	}))
	defer page.Close()

	tb := newTestToolbox(t, "http://127.0.0.1:0")
	rec := NewRecorder()

	out, err := tb.readWebpageTool(rec).InvokableRun(context.Background(), `{"url": "`+page.URL+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue grew 8 percent.")

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "read_webpage", calls[0].Tool)
	assert.Equal(t, page.URL, calls[0].Query)
}

func TestReadWebpageToolDegradesOnFetchFailure(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer page.Close()

	tb := newTestToolbox(t, "http://127.0.0.1:0")
	rec := NewRecorder()

	out, err := tb.readWebpageTool(rec).InvokableRun(context.Background(), `{"url": "`+page.URL+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "no additional evidence")
}

func TestMarketSnapshotToolRequiresSymbol(t *testing.T) {
	tb := newTestToolbox(t, "http://127.0.0.1:0")
	rec := NewRecorder()

	_, err := tb.marketSnapshotTool(rec).InvokableRun(context.Background(), `{"symbol": ""}`)
	require.Error(t, err)
	assert.Empty(t, rec.Calls())
}

func TestToolCallsRecordedInOrder(t *testing.T) {
	rec := NewRecorder()
	rec.Record("web_search", "first", "r1")
	rec.Record("read_webpage", "second", "r2")
	rec.Record("market_snapshot", "third", "r3")

	calls := rec.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "first", calls[0].Query)
	assert.Equal(t, "second", calls[1].Query)
	assert.Equal(t, "third", calls[2].Query)
}

func TestRecorderTruncatesLongResults(t *testing.T) {
	rec := NewRecorder()
	rec.Record("read_webpage", "url", strings.Repeat("x", 5000))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.LessOrEqual(t, len(calls[0].Result), maxRecordedChars+3)
	assert.True(t, strings.HasSuffix(calls[0].Result, "..."))
}

func TestForRunBuildsThreeTools(t *testing.T) {
	tb := newTestToolbox(t, "http://127.0.0.1:0")
	toolList := tb.ForRun(NewRecorder())
	require.Len(t, toolList, 3)

	names := make([]string, 0, len(toolList))
	for _, tl := range toolList {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"web_search", "read_webpage", "market_snapshot"}, names)
}
