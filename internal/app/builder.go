package app

import (
	"context"
	"fmt"
	"time"

	"spotrelay/internal/cache"
	brcfg "spotrelay/internal/config"
	"spotrelay/internal/gateway/binance"
	"spotrelay/internal/gateway/exchange"
	"spotrelay/internal/gateway/notifier"
	"spotrelay/internal/market"
	"spotrelay/internal/order"
	"spotrelay/internal/position"
	"spotrelay/internal/relay"
	"spotrelay/internal/signing"
	apihttp "spotrelay/internal/transport/http/api"
)

// AppBuilder 按配置组装依赖；各构建函数可通过 Option 替换，便于测试。
type AppBuilder struct {
	cfg *brcfg.Config

	readerFn func(binance.Config) (exchange.Reader, error)
	signerFn func(brcfg.ExchangeConfig) (*signing.Signer, error)
	clock    cache.Clock
}

type AppBuilderOption func(*AppBuilder)

// WithReader 替换交易所读取实现（测试中注入 mock）。
func WithReader(reader exchange.Reader) AppBuilderOption {
	return func(b *AppBuilder) {
		b.readerFn = func(binance.Config) (exchange.Reader, error) { return reader, nil }
	}
}

func WithClock(clock cache.Clock) AppBuilderOption {
	return func(b *AppBuilder) {
		b.clock = clock
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:      cfg,
		readerFn: buildBinanceReader,
		signerFn: buildSigner,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildBinanceReader(cfg binance.Config) (exchange.Reader, error) {
	return binance.New(cfg)
}

func buildSigner(cfg brcfg.ExchangeConfig) (*signing.Signer, error) {
	return signing.NewSigner(cfg.APIKey, cfg.APISecret, cfg.RecvWindow())
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := b.cfg

	reader, err := b.readerFn(binanceConfig(cfg.Exchange))
	if err != nil {
		return nil, fmt.Errorf("init binance reader: %w", err)
	}
	signer, err := b.signerFn(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("init signer: %w", err)
	}

	snapshot := market.NewSnapshot(reader, cache.New(b.clock), market.TTLs{
		Account: cfg.Cache.AccountTTL,
		Trades:  cfg.Cache.TradesTTL,
		Price:   cfg.Cache.PriceTTL,
		Rules:   cfg.Cache.RulesTTL,
	})
	positions := position.NewService(snapshot, position.Config{
		QuoteAssets:    cfg.Positions.QuoteAssets,
		FeeRate:        cfg.Positions.FeeRate,
		MinValue:       cfg.Positions.MinValue,
		MaxConcurrency: cfg.Positions.MaxConcurrency,
	})
	adjuster := order.NewAdjuster(snapshot, positions)
	upstream := relay.New(relay.Config{
		BaseURL:          cfg.Exchange.RESTBaseURL,
		Timeout:          cfg.Exchange.Timeout(),
		SignedPaths:      cfg.Relay.SignedPaths,
		BreakerThreshold: cfg.Relay.BreakerThreshold,
		BreakerCooldown:  cfg.Relay.BreakerCooldown,
	}, signer)
	if cfg.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(notifier.TelegramConfig{
			BotToken: cfg.Notify.Telegram.BotToken,
			ChatID:   cfg.Notify.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("init telegram notifier: %w", err)
		}
		upstream.Breaker().SetStateChangeHandler(notifier.BreakerHandler(tg, 0))
	}
	placer := order.NewPlacer(adjuster, upstream).WithCacheInvalidator(snapshot)

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Positions: positions,
		Market:    snapshot,
		Adjuster:  adjuster,
		Placer:    placer,
		Relay:     upstream,
	})
	if err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return &App{
		cfg:      cfg,
		server:   server,
		snapshot: snapshot,
		Summary:  buildSummary(cfg, positions.Config(), upstream),
	}, nil
}

func binanceConfig(ex brcfg.ExchangeConfig) binance.Config {
	return binance.Config{
		RESTBaseURL:  ex.RESTBaseURL,
		APIKey:       ex.APIKey,
		APISecret:    ex.APISecret,
		HTTPTimeout:  ex.Timeout(),
		RecvWindow:   ex.RecvWindow(),
		MaxRetries:   ex.MaxRetries,
		RetryMin:     200 * time.Millisecond,
		RetryMax:     2 * time.Second,
		ProxyEnabled: ex.Proxy.Enabled,
		RESTProxyURL: ex.Proxy.RESTURL,
	}
}
