// Package costbasis 从成交历史推导当前持仓的成本、保本价与浮动盈亏。
//
// 计算采用"卖出按均价出库"的平均成本法：买入累计数量与成本（手续费计入成本），
// 卖出按当时均价扣减成本。卖出侧不扣手续费，与买入侧不对称，保持该行为不变。
package costbasis

import (
	"sort"

	"spotrelay/internal/gateway/exchange"
)

// DefaultFeeRate Binance 现货默认 taker 费率。
const DefaultFeeRate = 0.001

// DefaultMinValue 市值低于该值（计价币）的持仓视为粉尘。
const DefaultMinValue = 10.0

// 卖出后剩余数量低于该值按浮点残差处理，视为已平仓。
const qtyEpsilon = 1e-12

// State 单个交易对的持仓状态，每次都从完整成交历史重新计算。
type State struct {
	Symbol       string
	OpenQuantity float64
	OpenCost     float64
}

// Result 在给定现价下的估值结果。
type Result struct {
	Symbol       string
	Quantity     float64
	BreakEven    float64
	CurrentPrice float64
	MarketValue  float64
	UnrealizedPL float64
}

// Compute 按时间顺序（同一时间按成交 ID）回放成交，得到剩余数量与剩余成本。
// 输入切片不会被修改。
func Compute(symbol string, trades []exchange.Trade, feeRate float64) State {
	ordered := make([]exchange.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Time == ordered[j].Time {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Time < ordered[j].Time
	})

	st := State{Symbol: symbol}
	for _, t := range ordered {
		if t.Quantity <= 0 {
			continue
		}
		if t.IsBuyer {
			notional := t.Quantity * t.Price
			st.OpenQuantity += t.Quantity
			st.OpenCost += notional + notional*feeRate
			continue
		}
		if st.OpenQuantity <= 0 {
			continue
		}
		avg := st.OpenCost / st.OpenQuantity
		st.OpenQuantity -= t.Quantity
		st.OpenCost -= t.Quantity * avg
		if st.OpenQuantity < qtyEpsilon {
			st.OpenQuantity = 0
		}
		if st.OpenCost < 0 {
			st.OpenCost = 0
		}
		if st.OpenQuantity == 0 {
			st.OpenCost = 0
		}
	}
	return st
}

// Evaluate 计算保本价与浮动盈亏；无持仓时返回 false。
func Evaluate(st State, currentPrice float64) (Result, bool) {
	if st.OpenQuantity <= 0 {
		return Result{}, false
	}
	be := st.OpenCost / st.OpenQuantity
	return Result{
		Symbol:       st.Symbol,
		Quantity:     st.OpenQuantity,
		BreakEven:    be,
		CurrentPrice: currentPrice,
		MarketValue:  st.OpenQuantity * currentPrice,
		UnrealizedPL: (currentPrice - be) * st.OpenQuantity,
	}, true
}

// IsDust reports whether the position is worth less than minValue.
func IsDust(r Result, minValue float64) bool {
	return r.MarketValue < minValue
}

// BreakEven returns the break-even price and open quantity of symbol.
// Both are zero when nothing is held.
func BreakEven(symbol string, trades []exchange.Trade, feeRate float64) (float64, float64) {
	st := Compute(symbol, trades, feeRate)
	if st.OpenQuantity <= 0 {
		return 0, 0
	}
	return st.OpenCost / st.OpenQuantity, st.OpenQuantity
}
