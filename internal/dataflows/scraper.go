package dataflows

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"tradecrew/internal/retry"
	"tradecrew/pkg/errors"
)

// ScraperConfig configures the page scraper
type ScraperConfig struct {
	CacheDir     string
	CacheEnabled bool
	Retry        *retry.Config
}

// PageScraper fetches web pages and extracts their readable text
type PageScraper struct {
	client   *resty.Client
	cache    *CacheManager
	retryCfg *retry.Config
}

// NewPageScraper creates a new page scraper
func NewPageScraper(cfg ScraperConfig) *PageScraper {
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; TradeCrew/1.0)")

	cache := NewCacheManager(filepath.Join(cfg.CacheDir, "pages"), 2*time.Hour, cfg.CacheEnabled)

	return &PageScraper{
		client:   client,
		cache:    cache,
		retryCfg: retryCfg,
	}
}

var titleSelectors = []string{"h1", "title", ".headline", ".article-title", ".entry-title"}

var contentSelectors = []string{
	".article-content", ".entry-content", ".post-content",
	".content", "article p", ".article-body", ".story-body", "p",
}

// Scrape fetches pageURL and returns its extracted text, truncated to
// maxChars runes.
func (ps *PageScraper) Scrape(ctx context.Context, pageURL string, maxChars int) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "invalid url %q", pageURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported url %q", pageURL)
	}
	if maxChars <= 0 {
		maxChars = 8000
	}

	var cached Page
	if ps.cache.Get("page", u.String(), &cached) {
		return truncatePage(&cached, maxChars), nil
	}

	var page *Page
	err = retry.Do(ctx, ps.retryCfg, func() error {
		resp, err := ps.client.R().
			SetContext(ctx).
			Get(u.String())

		if err != nil {
			return errors.Wrapf(err, "fetch %s", u.String())
		}
		if resp.StatusCode() != 200 {
			return errors.Newf("fetch %s: status %d", u.String(), resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return errors.Wrapf(err, "parse %s", u.String())
		}

		page = extractPage(doc, u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(page.Content) == "" {
		return nil, errors.Newf("no readable content at %s", u.String())
	}

	_ = ps.cache.Set("page", u.String(), page)
	return truncatePage(page, maxChars), nil
}

// extractPage pulls title, body text and source out of a parsed document
func extractPage(doc *goquery.Document, u *url.URL) *Page {
	title := ""
	for _, selector := range titleSelectors {
		if t := cleanText(doc.Find(selector).First().Text()); t != "" {
			title = t
			break
		}
	}

	content := ""
	for _, selector := range contentSelectors {
		var parts []string
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if text := cleanText(sel.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			content = strings.Join(parts, "\n\n")
			break
		}
	}

	source := ""
	if meta := doc.Find("meta[property='og:site_name']"); meta.Length() > 0 {
		source, _ = meta.Attr("content")
	}
	if source == "" {
		source = u.Host
	}

	return &Page{
		URL:     u.String(),
		Title:   title,
		Content: content,
		Source:  source,
	}
}

// cleanText collapses runs of whitespace into single spaces
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncatePage(page *Page, maxChars int) *Page {
	runes := []rune(page.Content)
	if len(runes) <= maxChars {
		return page
	}
	out := *page
	out.Content = string(runes[:maxChars]) + "..."
	return &out
}
