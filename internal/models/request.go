package models

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"tradecrew/pkg/errors"
)

// StrategyOptions lists the supported trading approaches
var StrategyOptions = []string{
	"Day Trading",
	"Swing Trading",
	"Position Trading",
	"Scalping",
}

// RiskLevels lists the supported risk tolerance levels
var RiskLevels = []string{
	"Very Low",
	"Low",
	"Medium",
	"High",
	"Very High",
}

// MinInitialCapital is the smallest accepted trading capital
var MinInitialCapital = decimal.NewFromInt(1000)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// TradingRequest carries the parameters of one analysis run
type TradingRequest struct {
	Symbol             string          `json:"symbol"`
	InitialCapital     decimal.Decimal `json:"initial_capital"`
	StrategyPreference string          `json:"strategy_preference"`
	RiskTolerance      string          `json:"risk_tolerance"`
	ConsiderNews       bool            `json:"consider_news"`
}

// DefaultRequest returns a request prefilled with the form defaults
func DefaultRequest() TradingRequest {
	return TradingRequest{
		Symbol:             "AAPL",
		InitialCapital:     decimal.NewFromInt(100000),
		StrategyPreference: StrategyOptions[0],
		RiskTolerance:      "Medium",
		ConsiderNews:       true,
	}
}

// Normalize validates the request in place and rewrites each field to its
// canonical form: uppercased symbol, full option names for strategy and
// risk. Loose values such as "swing" or "medium" are accepted.
func (r *TradingRequest) Normalize() error {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Symbol == "" {
		return errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}
	if len(r.Symbol) > 10 {
		return errors.Wrapf(errors.ErrInvalidInput, "symbol too long: %s", r.Symbol)
	}
	if !symbolPattern.MatchString(r.Symbol) {
		return errors.Wrapf(errors.ErrInvalidInput, "invalid symbol: %s", r.Symbol)
	}

	if r.InitialCapital.LessThan(MinInitialCapital) {
		return errors.Wrapf(errors.ErrInvalidInput,
			"initial capital must be at least %s, got %s", MinInitialCapital, r.InitialCapital)
	}

	strategy, ok := matchOption(r.StrategyPreference, StrategyOptions)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown strategy preference: %s", r.StrategyPreference)
	}
	r.StrategyPreference = strategy

	risk, ok := matchOption(r.RiskTolerance, RiskLevels)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown risk tolerance: %s", r.RiskTolerance)
	}
	r.RiskTolerance = risk

	return nil
}

// matchOption resolves value against the canonical options, first by
// case-insensitive equality, then by unique first word ("swing" resolves
// to "Swing Trading").
func matchOption(value string, options []string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}

	for _, opt := range options {
		if v == strings.ToLower(opt) {
			return opt, true
		}
	}

	var match string
	count := 0
	for _, opt := range options {
		words := strings.Fields(strings.ToLower(opt))
		if len(words) > 0 && words[0] == v {
			match = opt
			count++
		}
	}
	if count == 1 {
		return match, true
	}
	return "", false
}
