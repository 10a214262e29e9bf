// Package exchange defines the exchange-facing data model used by the cache,
// the cost-basis engine and the position aggregator.
package exchange

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one fill from the account trade history. Immutable once fetched.
type Trade struct {
	ID       int64   // Exchange trade id
	Symbol   string  // e.g. "BTCUSDT"
	Quantity float64 // Base quantity, always positive
	Price    float64 // Fill price in quote currency
	IsBuyer  bool    // true for buys
	Time     int64   // Exchange-assigned fill time (ms)
}

// Balance is a per-asset account balance.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Total returns free + locked.
func (b Balance) Total() float64 {
	return b.Free + b.Locked
}

// Account is the account snapshot; Balances keep the exchange order.
type Account struct {
	Balances  []Balance
	UpdatedAt time.Time
}

// NonZero returns balances with a positive total, in account order.
func (a Account) NonZero() []Balance {
	out := make([]Balance, 0, len(a.Balances))
	for _, b := range a.Balances {
		if b.Total() > 0 {
			out = append(out, b)
		}
	}
	return out
}

// TradingRule carries the lot-size and price-tick filters of a symbol.
type TradingRule struct {
	Symbol   string
	Status   string
	StepSize decimal.Decimal
	MinQty   decimal.Decimal
	TickSize decimal.Decimal
}

// Tradable reports whether the symbol currently accepts orders.
func (r TradingRule) Tradable() bool {
	return r.Status == "" || strings.EqualFold(r.Status, "TRADING")
}
