// Package order 按交易规则（步长、最小数量、价格精度）修正下单参数，并可直接转发下单。
package order

import (
	"context"
	"fmt"

	"spotrelay/internal/errs"
	"spotrelay/internal/gateway/exchange"
	symbolpkg "spotrelay/internal/pkg/symbol"
	"spotrelay/internal/pkg/trading"
	"spotrelay/internal/position"

	"github.com/shopspring/decimal"
)

// RuleSource is the cached market data needed for adjustment.
type RuleSource interface {
	TradingRule(ctx context.Context, symbol string) (exchange.TradingRule, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// HoldingSource reports the open quantity for ratio based sells.
type HoldingSource interface {
	ComputeBreakEven(ctx context.Context, symbol string) (position.BreakEven, error)
}

// AdjustRequest 三选一：Quantity（基础币数量）、USDAmount（计价币金额）、CloseRatio（按持仓比例）。
// Price 为空时使用缓存的最新价。
type AdjustRequest struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	USDAmount  decimal.Decimal `json:"usdAmount"`
	Price      decimal.Decimal `json:"price"`
	CloseRatio float64         `json:"closeRatio"`
}

type Adjusted struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
}

type Adjuster struct {
	rules    RuleSource
	holdings HoldingSource
}

func NewAdjuster(rules RuleSource, holdings HoldingSource) *Adjuster {
	return &Adjuster{rules: rules, holdings: holdings}
}

// AdjustOrderParameters 返回交易所可接受的数量与价格字符串。
// 数量向下取整到步长，低于最小数量时抬升到最小可交易数量；价格向下取整到 tick。
func (a *Adjuster) AdjustOrderParameters(ctx context.Context, req AdjustRequest) (Adjusted, error) {
	symbol := symbolpkg.Binance.ToExchange(req.Symbol)
	if symbol == "" {
		return Adjusted{}, errs.Invalid("symbol is required")
	}
	if err := validateSizing(req); err != nil {
		return Adjusted{}, err
	}
	rule, err := a.rules.TradingRule(ctx, symbol)
	if err != nil {
		return Adjusted{}, err
	}

	price := req.Price
	if !price.IsPositive() {
		last, err := a.rules.LastPrice(ctx, symbol)
		if err != nil {
			return Adjusted{}, fmt.Errorf("last price %s: %w", symbol, err)
		}
		price = decimal.NewFromFloat(last)
	}
	if !price.IsPositive() {
		return Adjusted{}, &errs.UpstreamError{Op: "ticker/price", Msg: "no usable price for " + symbol}
	}

	qty, err := a.rawQuantity(ctx, symbol, req, price)
	if err != nil {
		return Adjusted{}, err
	}
	qtyStr, err := trading.AdjustQuantity(qty, rule.StepSize, rule.MinQty)
	if err != nil {
		return Adjusted{}, err
	}
	priceStr, err := trading.RoundPriceDown(price, rule.TickSize)
	if err != nil {
		return Adjusted{}, err
	}
	return Adjusted{Symbol: symbol, Quantity: qtyStr, Price: priceStr}, nil
}

func (a *Adjuster) rawQuantity(ctx context.Context, symbol string, req AdjustRequest, price decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case req.Quantity.IsPositive():
		return req.Quantity, nil
	case req.USDAmount.IsPositive():
		return trading.QuantityForNotional(req.USDAmount, price), nil
	default:
		if a.holdings == nil {
			return decimal.Zero, errs.Invalid("closeRatio is not supported")
		}
		held, err := a.holdings.ComputeBreakEven(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		amount := trading.CloseAmount(held.TotalQuantity, req.CloseRatio)
		if amount <= 0 {
			return decimal.Zero, errs.Invalid("no open quantity for %s", symbol)
		}
		return decimal.NewFromFloat(amount), nil
	}
}

func validateSizing(req AdjustRequest) error {
	set := 0
	if !req.Quantity.IsZero() {
		if req.Quantity.IsNegative() {
			return errs.Invalid("quantity %s must be positive", req.Quantity)
		}
		set++
	}
	if !req.USDAmount.IsZero() {
		if req.USDAmount.IsNegative() {
			return errs.Invalid("usdAmount %s must be positive", req.USDAmount)
		}
		set++
	}
	if req.CloseRatio != 0 {
		if req.CloseRatio < 0 || req.CloseRatio > 1 {
			return errs.Invalid("closeRatio %v must be within (0, 1]", req.CloseRatio)
		}
		set++
	}
	if req.Price.IsNegative() {
		return errs.Invalid("price %s must be positive", req.Price)
	}
	switch set {
	case 0:
		return errs.Invalid("one of quantity, usdAmount or closeRatio is required")
	case 1:
		return nil
	default:
		return errs.Invalid("quantity, usdAmount and closeRatio are mutually exclusive")
	}
}
