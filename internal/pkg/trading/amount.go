// Package trading provides order sizing and exchange precision helpers.
package trading

import "github.com/shopspring/decimal"

// CloseAmount computes how much of an open quantity a ratio-based exit sells.
// The result is capped at the open quantity.
func CloseAmount(openQty, ratio float64) float64 {
	if openQty <= 0 || ratio <= 0 {
		return 0
	}
	amount := openQty * ratio
	if amount > openQty {
		amount = openQty
	}
	return amount
}

// QuantityForNotional converts a quote-currency amount into base quantity at
// price. Zero or negative prices yield zero.
func QuantityForNotional(notional, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !notional.IsPositive() {
		return decimal.Zero
	}
	return notional.Div(price)
}
