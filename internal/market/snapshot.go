// Package market serves exchange reads through the TTL cache so repeated
// analytics requests do not spend the exchange rate limit.
package market

import (
	"context"
	"fmt"
	"time"

	"spotrelay/internal/cache"
	"spotrelay/internal/errs"
	"spotrelay/internal/gateway/exchange"
	symbolpkg "spotrelay/internal/pkg/symbol"
)

const (
	CategoryAccount cache.Category = "account"
	CategoryTrades  cache.Category = "trades"
	CategoryPrice   cache.Category = "price"
	CategoryRules   cache.Category = "rules"

	accountKey = "account"
	rulesKey   = "exchangeInfo"
)

// TTLs is the freshness budget per category.
type TTLs struct {
	Account time.Duration
	Trades  time.Duration
	Price   time.Duration
	Rules   time.Duration
}

// DefaultTTLs: account and price 5s, trades 60s, trading rules 1h.
func DefaultTTLs() TTLs {
	return TTLs{
		Account: 5 * time.Second,
		Trades:  60 * time.Second,
		Price:   5 * time.Second,
		Rules:   time.Hour,
	}
}

func (t TTLs) withDefaults() TTLs {
	def := DefaultTTLs()
	if t.Account <= 0 {
		t.Account = def.Account
	}
	if t.Trades <= 0 {
		t.Trades = def.Trades
	}
	if t.Price <= 0 {
		t.Price = def.Price
	}
	if t.Rules <= 0 {
		t.Rules = def.Rules
	}
	return t
}

// Snapshot is the cached read model of one exchange account.
type Snapshot struct {
	reader exchange.Reader
	cache  *cache.Cache
	ttl    TTLs
}

func NewSnapshot(reader exchange.Reader, c *cache.Cache, ttl TTLs) *Snapshot {
	if c == nil {
		c = cache.New(nil)
	}
	return &Snapshot{reader: reader, cache: c, ttl: ttl.withDefaults()}
}

func (s *Snapshot) Account(ctx context.Context) (exchange.Account, error) {
	return cache.Get(ctx, s.cache, CategoryAccount, accountKey, s.ttl.Account, s.reader.Account)
}

func (s *Snapshot) Trades(ctx context.Context, symbol string) ([]exchange.Trade, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	return cache.Get(ctx, s.cache, CategoryTrades, symbol, s.ttl.Trades, func(ctx context.Context) ([]exchange.Trade, error) {
		return s.reader.Trades(ctx, symbol)
	})
}

// InvalidateSymbol drops the cached account and the trade history of symbol,
// both of which a new order may have changed.
func (s *Snapshot) InvalidateSymbol(symbol string) {
	s.cache.Invalidate(CategoryAccount, accountKey)
	if symbol = normalizeSymbol(symbol); symbol != "" {
		s.cache.Invalidate(CategoryTrades, symbol)
	}
}

func (s *Snapshot) LastPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	return cache.Get(ctx, s.cache, CategoryPrice, symbol, s.ttl.Price, func(ctx context.Context) (float64, error) {
		return s.reader.LastPrice(ctx, symbol)
	})
}

// TradingRule returns the lot-size/tick filters of symbol. Unknown symbols and
// zero filters fail with InvalidFilterError.
func (s *Snapshot) TradingRule(ctx context.Context, symbol string) (exchange.TradingRule, error) {
	symbol = normalizeSymbol(symbol)
	rules, err := cache.Get(ctx, s.cache, CategoryRules, rulesKey, s.ttl.Rules, s.reader.TradingRules)
	if err != nil {
		return exchange.TradingRule{}, err
	}
	rule, ok := rules[symbol]
	if !ok {
		return exchange.TradingRule{}, &errs.InvalidFilterError{Symbol: symbol, Filter: "symbol", Value: "missing"}
	}
	if !rule.Tradable() {
		return rule, &errs.InvalidFilterError{Symbol: symbol, Filter: "status", Value: rule.Status}
	}
	if !rule.StepSize.IsPositive() {
		return rule, &errs.InvalidFilterError{Symbol: symbol, Filter: "stepSize", Value: rule.StepSize.String()}
	}
	if !rule.TickSize.IsPositive() {
		return rule, &errs.InvalidFilterError{Symbol: symbol, Filter: "tickSize", Value: rule.TickSize.String()}
	}
	return rule, nil
}

func normalizeSymbol(symbol string) string {
	return symbolpkg.Binance.ToExchange(symbol)
}
