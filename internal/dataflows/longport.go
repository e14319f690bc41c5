package dataflows

import (
	"context"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"tradecrew/pkg/errors"
)

// LongportClient fetches market data through the Longbridge OpenAPI
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

// NewLongportClient creates a Longbridge quote client. All three
// credentials are required.
func NewLongportClient(appKey, appSecret, accessToken string) (*LongportClient, error) {
	if appKey == "" || appSecret == "" || accessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(appKey, appSecret, accessToken))
	if err != nil {
		return nil, errors.Wrap(err, "longport config")
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, errors.Wrap(err, "longport quote context")
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

// DailyCandles returns up to count daily candlesticks for symbol
func (lc *LongportClient) DailyCandles(ctx context.Context, symbol string, count int) ([]Candle, error) {
	sticks, err := lc.quoteCtx.Candlesticks(ctx, toLongportSymbol(symbol), quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, errors.Wrapf(err, "candlesticks for %s", symbol)
	}

	candles := make([]Candle, 0, len(sticks))
	for _, stick := range sticks {
		open, _ := stick.Open.Float64()
		high, _ := stick.High.Float64()
		low, _ := stick.Low.Float64()
		closePrice, _ := stick.Close.Float64()

		candles = append(candles, Candle{
			Date:   time.Unix(stick.Timestamp, 0),
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(closePrice),
			Volume: stick.Volume,
		})
	}
	return candles, nil
}

// Close releases the quote context
func (lc *LongportClient) Close() {
	if lc.quoteCtx != nil {
		lc.quoteCtx.Close()
	}
}

var longportMarkets = map[string]bool{
	"US": true, "HK": true, "SH": true, "SZ": true, "SG": true,
}

// toLongportSymbol appends the Longbridge market suffix for tickers that
// do not already carry one. Plain tickers default to the US market.
func toLongportSymbol(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i >= 0 && longportMarkets[symbol[i+1:]] {
		return symbol
	}
	return symbol + ".US"
}
