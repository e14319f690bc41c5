package dataflows

import (
	"context"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"tradecrew/internal/retry"
	"tradecrew/pkg/errors"
)

// MarketConfig configures the market data client
type MarketConfig struct {
	CacheDir     string
	CacheEnabled bool
	Longport     *LongportClient
	Retry        *retry.Config
}

// MarketClient serves quotes and price history. Yahoo Finance is the
// default source; Longbridge is preferred for history when configured.
type MarketClient struct {
	cache    *CacheManager
	longport *LongportClient
	retryCfg *retry.Config
}

// NewMarketClient creates a new market data client
func NewMarketClient(cfg MarketConfig) *MarketClient {
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	cache := NewCacheManager(filepath.Join(cfg.CacheDir, "market"), 5*time.Minute, cfg.CacheEnabled)
	return &MarketClient{
		cache:    cache,
		longport: cfg.Longport,
		retryCfg: retryCfg,
	}
}

// GetQuote returns the current market snapshot for symbol
func (mc *MarketClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var cached Quote
	if mc.cache.Get("quote", symbol, &cached) {
		return &cached, nil
	}

	var result *Quote
	err := retry.Do(ctx, mc.retryCfg, func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return errors.Wrapf(err, "quote for %s", symbol)
		}
		if q == nil {
			return errors.Newf("no quote data for %s", symbol)
		}

		result = &Quote{
			Symbol:   symbol,
			Price:    decimal.NewFromFloat(q.RegularMarketPrice),
			Open:     decimal.NewFromFloat(q.RegularMarketOpen),
			High:     decimal.NewFromFloat(q.RegularMarketDayHigh),
			Low:      decimal.NewFromFloat(q.RegularMarketDayLow),
			Volume:   int64(q.RegularMarketVolume),
			AsOf:     time.Now(),
			Provider: "yahoo",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = mc.cache.Set("quote", symbol, result)
	return result, nil
}

// RecentCandles returns daily price history for the past days calendar
// days, most recent last.
func (mc *MarketClient) RecentCandles(ctx context.Context, symbol string, days int) ([]Candle, error) {
	if days <= 0 {
		days = 30
	}

	cacheKey := map[string]interface{}{"symbol": symbol, "days": days}
	var cached []Candle
	if mc.cache.Get("candles", cacheKey, &cached) {
		return cached, nil
	}

	candles, err := mc.fetchCandles(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	_ = mc.cache.Set("candles", cacheKey, candles)
	return candles, nil
}

func (mc *MarketClient) fetchCandles(ctx context.Context, symbol string, days int) ([]Candle, error) {
	if mc.longport != nil {
		candles, err := mc.longport.DailyCandles(ctx, symbol, days)
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		// Fall through to Yahoo on any Longbridge failure
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	var result []Candle
	err := retry.Do(ctx, mc.retryCfg, func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		result = make([]Candle, 0, days)
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, Candle{
				Date:   time.Unix(int64(bar.Timestamp), 0),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return errors.Wrapf(err, "history for %s", symbol)
		}
		if len(result) == 0 {
			return errors.Newf("no price history for %s", symbol)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
