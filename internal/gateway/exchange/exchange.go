package exchange

import "context"

// Reader is the read side of a spot exchange account. All methods are
// idempotent and safe to retry.
type Reader interface {
	Name() string

	Account(ctx context.Context) (Account, error)

	Trades(ctx context.Context, symbol string) ([]Trade, error)

	LastPrice(ctx context.Context, symbol string) (float64, error)

	TradingRules(ctx context.Context) (map[string]TradingRule, error)
}
