package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"tradecrew/internal/config"
	"tradecrew/internal/dataflows"
	"tradecrew/internal/models"
	"tradecrew/pkg/errors"
	"tradecrew/pkg/logger"
)

// ToolCallTimeout bounds a single tool invocation
const ToolCallTimeout = 30 * time.Second

// ToolboxConfig wires the toolbox to its data providers
type ToolboxConfig struct {
	Search   *dataflows.SerperClient
	Scraper  *dataflows.PageScraper
	Market   *dataflows.MarketClient
	Settings func() config.Settings
}

// Toolbox builds the agent tools. Provider failures never abort a run:
// the tool reports the outage to the model and the role proceeds with
// no additional evidence.
type Toolbox struct {
	search   *dataflows.SerperClient
	scraper  *dataflows.PageScraper
	market   *dataflows.MarketClient
	settings func() config.Settings
	log      *logger.Logger
}

// NewToolbox creates a new toolbox
func NewToolbox(cfg ToolboxConfig) *Toolbox {
	settings := cfg.Settings
	if settings == nil {
		settings = func() config.Settings { return config.Settings{} }
	}
	return &Toolbox{
		search:   cfg.Search,
		scraper:  cfg.Scraper,
		market:   cfg.Market,
		settings: settings,
		log:      logger.Get().With("component", "tools"),
	}
}

// ForRun builds the tool set for one role's turn, bound to rec
func (tb *Toolbox) ForRun(rec *Recorder) []tool.BaseTool {
	return []tool.BaseTool{
		tb.webSearchTool(rec),
		tb.readWebpageTool(rec),
		tb.marketSnapshotTool(rec),
	}
}

// SearchInput is the argument schema for the web_search tool
type SearchInput struct {
	Query string `json:"query"`
}

// SearchOutput carries search hits, or a degradation note when the
// provider is down
type SearchOutput struct {
	Results []dataflows.SearchResult `json:"results,omitempty"`
	Note    string                   `json:"note,omitempty"`
}

func (tb *Toolbox) webSearchTool(rec *Recorder) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "web_search",
			Desc: "Search the web for recent news, analyst commentary and market sentiment",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "The search query",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input SearchInput) (*SearchOutput, error) {
			if strings.TrimSpace(input.Query) == "" {
				return nil, fmt.Errorf("query parameter is required")
			}

			ctx, cancel := context.WithTimeout(ctx, ToolCallTimeout)
			defer cancel()

			results, err := tb.search.Search(ctx, input.Query, tb.settings().SearchResults)
			if err != nil {
				tb.log.Warnf("%v", errors.ToolUnavailable("web_search", err))
				note := degradedNote("web search")
				rec.Record("web_search", input.Query, note)
				return &SearchOutput{Note: note}, nil
			}

			rec.Record("web_search", input.Query, renderSearchResults(results))
			return &SearchOutput{Results: results}, nil
		},
	)
}

// ReadWebpageInput is the argument schema for the read_webpage tool
type ReadWebpageInput struct {
	URL string `json:"url"`
}

// ReadWebpageOutput carries the extracted page text, or a degradation
// note when the page cannot be read
type ReadWebpageOutput struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Source  string `json:"source,omitempty"`
	Note    string `json:"note,omitempty"`
}

func (tb *Toolbox) readWebpageTool(rec *Recorder) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "read_webpage",
			Desc: "Fetch a web page, typically a news article from web_search results, and return its readable text",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"url": {
					Type:     "string",
					Desc:     "The http or https URL of the page to read",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input ReadWebpageInput) (*ReadWebpageOutput, error) {
			if strings.TrimSpace(input.URL) == "" {
				return nil, fmt.Errorf("url parameter is required")
			}

			ctx, cancel := context.WithTimeout(ctx, ToolCallTimeout)
			defer cancel()

			page, err := tb.scraper.Scrape(ctx, input.URL, tb.settings().ScrapeMaxChars)
			if err != nil {
				tb.log.Warnf("%v", errors.ToolUnavailable("read_webpage", err))
				note := degradedNote("page scraping")
				rec.Record("read_webpage", input.URL, note)
				return &ReadWebpageOutput{Note: note}, nil
			}

			rec.Record("read_webpage", input.URL, page.Content)
			return &ReadWebpageOutput{
				Title:   page.Title,
				Content: page.Content,
				Source:  page.Source,
			}, nil
		},
	)
}

// MarketSnapshotInput is the argument schema for the market_snapshot tool
type MarketSnapshotInput struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

// MarketSnapshotOutput carries a text market summary, or a degradation
// note when no provider could serve the symbol
type MarketSnapshotOutput struct {
	Summary string `json:"summary,omitempty"`
	Note    string `json:"note,omitempty"`
}

func (tb *Toolbox) marketSnapshotTool(rec *Recorder) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "market_snapshot",
			Desc: "Get the current quote and recent daily price history for a stock symbol",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "The stock symbol",
					Required: true,
				},
				"days": {
					Type:     "integer",
					Desc:     "Days of price history (default: 30)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input MarketSnapshotInput) (*MarketSnapshotOutput, error) {
			symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
			if symbol == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}

			ctx, cancel := context.WithTimeout(ctx, ToolCallTimeout)
			defer cancel()

			quote, quoteErr := tb.market.GetQuote(ctx, symbol)
			candles, candlesErr := tb.market.RecentCandles(ctx, symbol, input.Days)
			if quoteErr != nil && candlesErr != nil {
				tb.log.Warnf("%v", errors.ToolUnavailable("market_snapshot", quoteErr))
				note := degradedNote("market data")
				rec.Record("market_snapshot", symbol, note)
				return &MarketSnapshotOutput{Note: note}, nil
			}

			summary := renderSnapshot(symbol, quote, candles)
			rec.Record("market_snapshot", symbol, summary)
			return &MarketSnapshotOutput{Summary: summary}, nil
		},
	)
}

// degradedNote tells the model the run continues without this evidence
func degradedNote(what string) string {
	return fmt.Sprintf("%s is currently unavailable; continue the analysis with no additional evidence from this tool", what)
}

func renderSearchResults(results []dataflows.SearchResult) string {
	if len(results) == 0 {
		return "no results"
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderSnapshot formats whatever market data was retrievable. At least
// one of quote and candles is non-empty when it is called.
func renderSnapshot(symbol string, quote *dataflows.Quote, candles []dataflows.Candle) string {
	var b strings.Builder

	if quote != nil {
		fmt.Fprintf(&b, "%s quote: price %s, open %s, day range %s-%s, volume %d (%s, as of %s)\n",
			symbol,
			quote.Price.StringFixed(2),
			quote.Open.StringFixed(2),
			quote.Low.StringFixed(2),
			quote.High.StringFixed(2),
			quote.Volume,
			quote.Provider,
			quote.AsOf.Format("2006-01-02 15:04 MST"),
		)
	}

	if len(candles) > 0 {
		// Keep the tail so the model sees the latest sessions
		const maxRows = 10
		rows := candles
		if len(rows) > maxRows {
			rows = rows[len(rows)-maxRows:]
		}
		fmt.Fprintf(&b, "Daily history, last %d sessions (oldest first):\n", len(rows))
		for _, c := range rows {
			fmt.Fprintf(&b, "%s: open %s high %s low %s close %s volume %d\n",
				c.Date.Format("2006-01-02"),
				c.Open.StringFixed(2),
				c.High.StringFixed(2),
				c.Low.StringFixed(2),
				c.Close.StringFixed(2),
				c.Volume,
			)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
