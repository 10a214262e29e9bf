package position

import (
	"context"

	"spotrelay/internal/errs"
	"spotrelay/internal/gateway/exchange"
	"spotrelay/internal/logger"
	symbolpkg "spotrelay/internal/pkg/symbol"
)

// TradeSource 提供按交易对读取成交历史的能力（通常是带缓存的 market.Snapshot）。
type TradeSource interface {
	Trades(ctx context.Context, symbol string) ([]exchange.Trade, error)
}

// Resolver 尝试把资产映射到一个有成交历史的交易对。
// 返回空 symbol 表示该候选不适用，由下一个 Resolver 继续尝试。
type Resolver interface {
	Resolve(ctx context.Context, asset string) (string, []exchange.Trade, error)
}

// QuoteResolver pairs the asset with one fixed quote currency.
type QuoteResolver struct {
	Quote  string
	Source TradeSource
}

func (r QuoteResolver) Resolve(ctx context.Context, asset string) (string, []exchange.Trade, error) {
	sym := symbolpkg.Pair(asset, r.Quote)
	if sym.Base == sym.Quote {
		return "", nil, nil
	}
	symbol := sym.Binance()
	if symbol == "" {
		return "", nil, nil
	}
	trades, err := r.Source.Trades(ctx, symbol)
	if err != nil {
		return "", nil, err
	}
	if len(trades) == 0 {
		return "", nil, nil
	}
	return symbol, trades, nil
}

// QuoteResolvers builds one resolver per quote asset, keeping the configured priority.
func QuoteResolvers(src TradeSource, quotes []string) []Resolver {
	quotes = symbolpkg.NormalizeAssets(quotes)
	out := make([]Resolver, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, QuoteResolver{Quote: q, Source: src})
	}
	return out
}

// resolve 按顺序短路求值：第一个返回非空成交历史的候选胜出。
// 单个候选拉取失败只记录日志并继续尝试下一个。
func resolve(ctx context.Context, resolvers []Resolver, asset string) (string, []exchange.Trade, error) {
	for _, r := range resolvers {
		symbol, trades, err := r.Resolve(ctx, asset)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			// 不存在的交易对（-1121）在这里很常见
			logger.Debugf("[positions] %s candidate failed: %v", asset, err)
			continue
		}
		if symbol != "" {
			return symbol, trades, nil
		}
	}
	return "", nil, errs.ErrSymbolUnresolved
}
