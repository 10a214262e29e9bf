// Package position 汇总账户中的现货持仓，并给出保本价与浮动盈亏。
package position

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spotrelay/internal/costbasis"
	"spotrelay/internal/errs"
	"spotrelay/internal/gateway/exchange"
	"spotrelay/internal/logger"
	symbolpkg "spotrelay/internal/pkg/symbol"

	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 4

// MarketReader is the cached read model the aggregator needs.
type MarketReader interface {
	TradeSource
	Account(ctx context.Context) (exchange.Account, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

type Config struct {
	QuoteAssets []string
	FeeRate     float64
	// MinValue 粉尘阈值（计价币市值）；0 表示不过滤，负数取默认值。
	MinValue       float64
	MaxConcurrency int
}

func (c Config) withDefaults() Config {
	c.QuoteAssets = symbolpkg.NormalizeAssets(c.QuoteAssets)
	if len(c.QuoteAssets) == 0 {
		c.QuoteAssets = append([]string(nil), symbolpkg.DefaultQuoteAssets...)
	}
	if c.FeeRate < 0 {
		c.FeeRate = 0
	}
	if c.MinValue < 0 {
		c.MinValue = costbasis.DefaultMinValue
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	return c
}

// Position 对外输出的持仓视图，只读。
type Position struct {
	Symbol       string  `json:"symbol"`
	PositionAmt  float64 `json:"positionAmt"`
	BreakEven    float64 `json:"breakEven"`
	CurrentPrice float64 `json:"currentPrice"`
	MarketValue  float64 `json:"marketValue"`
	UnrealizedPL float64 `json:"unrealizedPL"`
}

type BreakEven struct {
	Symbol        string  `json:"symbol"`
	BreakEven     float64 `json:"breakEven"`
	TotalQuantity float64 `json:"totalQuantity"`
}

type Service struct {
	market    MarketReader
	resolvers []Resolver
	quotes    map[string]struct{}
	cfg       Config
}

// NewService wires one QuoteResolver per configured quote asset.
func NewService(market MarketReader, cfg Config) *Service {
	cfg = cfg.withDefaults()
	quotes := make(map[string]struct{}, len(cfg.QuoteAssets))
	for _, q := range cfg.QuoteAssets {
		quotes[q] = struct{}{}
	}
	return &Service{
		market:    market,
		resolvers: QuoteResolvers(market, cfg.QuoteAssets),
		quotes:    quotes,
		cfg:       cfg,
	}
}

// WithResolvers replaces the resolution chain.
func (s *Service) WithResolvers(resolvers ...Resolver) *Service {
	s.resolvers = resolvers
	return s
}

func (s *Service) Config() Config { return s.cfg }

// ComputePositions 按账户资产顺序返回持仓。账户快照失败直接返回错误；
// 单个资产的解析或报价失败只会跳过该资产。
func (s *Service) ComputePositions(ctx context.Context) ([]Position, error) {
	acct, err := s.market.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	assets := make([]string, 0, len(acct.Balances))
	for _, b := range acct.NonZero() {
		asset := strings.ToUpper(strings.TrimSpace(b.Asset))
		if _, isQuote := s.quotes[asset]; isQuote || asset == "" {
			continue
		}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return []Position{}, nil
	}

	slots := make([]*Position, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, asset := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pos, err := s.evaluateAsset(gctx, asset)
			if err != nil {
				// 只有调用方取消才中止整体汇总
				return gctx.Err()
			}
			slots[i] = pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Position, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// evaluateAsset returns nil, nil for assets that resolve but carry no reportable position.
func (s *Service) evaluateAsset(ctx context.Context, asset string) (*Position, error) {
	symbol, trades, err := resolve(ctx, s.resolvers, asset)
	if err != nil {
		if errors.Is(err, errs.ErrSymbolUnresolved) {
			logger.Debugf("[positions] %s skipped: %v", asset, err)
		}
		return nil, err
	}
	price, err := s.market.LastPrice(ctx, symbol)
	if err != nil {
		logger.Warnf("[positions] %s price unavailable, skipped: %v", symbol, err)
		return nil, err
	}
	st := costbasis.Compute(symbol, trades, s.cfg.FeeRate)
	res, ok := costbasis.Evaluate(st, price)
	if !ok {
		return nil, nil
	}
	if costbasis.IsDust(res, s.cfg.MinValue) {
		logger.Debugf("[positions] %s dust value=%.4f", symbol, res.MarketValue)
		return nil, nil
	}
	return &Position{
		Symbol:       symbol,
		PositionAmt:  res.Quantity,
		BreakEven:    res.BreakEven,
		CurrentPrice: res.CurrentPrice,
		MarketValue:  res.MarketValue,
		UnrealizedPL: res.UnrealizedPL,
	}, nil
}

// ComputeBreakEven 返回指定交易对的保本价与持仓数量，无持仓时均为 0。
func (s *Service) ComputeBreakEven(ctx context.Context, symbol string) (BreakEven, error) {
	symbol = symbolpkg.Binance.ToExchange(symbol)
	if symbol == "" {
		return BreakEven{}, fmt.Errorf("symbol is required")
	}
	trades, err := s.market.Trades(ctx, symbol)
	if err != nil {
		return BreakEven{}, fmt.Errorf("load trades %s: %w", symbol, err)
	}
	be, qty := costbasis.BreakEven(symbol, trades, s.cfg.FeeRate)
	return BreakEven{Symbol: symbol, BreakEven: be, TotalQuantity: qty}, nil
}
