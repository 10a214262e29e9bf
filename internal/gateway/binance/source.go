package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"spotrelay/internal/errs"
	"spotrelay/internal/gateway/exchange"
	"spotrelay/internal/pkg/convert"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

const (
	tradePageLimit  = 1000
	maxErrorBodyLen = 256
)

// Source 基于 go-binance SDK 实现 exchange.Reader（现货账户只读接口）。
type Source struct {
	cfg       Config
	client    *gobinance.Client
	pageLimit int
}

var _ exchange.Reader = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	if final.APIKey == "" {
		return nil, &errs.ConfigurationError{Field: "exchange.api_key"}
	}
	if strings.TrimSpace(final.APISecret) == "" {
		return nil, &errs.ConfigurationError{Field: "exchange.api_secret"}
	}
	client := gobinance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	httpClient.Transport = statusTransport{base: httpClient.Transport}
	client.HTTPClient = httpClient
	return &Source{
		cfg:       final,
		client:    client,
		pageLimit: tradePageLimit,
	}, nil
}

func (s *Source) Name() string { return "binance" }

func (s *Source) recvWindowOpt() []gobinance.RequestOption {
	if s.cfg.RecvWindow <= 0 {
		return nil
	}
	return []gobinance.RequestOption{gobinance.WithRecvWindow(s.cfg.RecvWindow.Milliseconds())}
}

func (s *Source) Account(ctx context.Context) (exchange.Account, error) {
	return withRetry(ctx, s.cfg, "account", func(ctx context.Context) (exchange.Account, error) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.HTTPTimeout)
		defer cancel()
		ctx, rec := withStatusRecorder(ctx)
		res, err := s.client.NewGetAccountService().Do(ctx, s.recvWindowOpt()...)
		if err != nil {
			return exchange.Account{}, upstream("account", rec.Status(), err)
		}
		acct := exchange.Account{
			Balances:  make([]exchange.Balance, 0, len(res.Balances)),
			UpdatedAt: time.Now(),
		}
		for _, b := range res.Balances {
			asset := strings.ToUpper(strings.TrimSpace(b.Asset))
			if asset == "" {
				continue
			}
			free, err := parseAmount("account", asset+" free", b.Free)
			if err != nil {
				return exchange.Account{}, err
			}
			locked, err := parseAmount("account", asset+" locked", b.Locked)
			if err != nil {
				return exchange.Account{}, err
			}
			acct.Balances = append(acct.Balances, exchange.Balance{
				Asset:  asset,
				Free:   free,
				Locked: locked,
			})
		}
		return acct, nil
	})
}

// Trades returns the full trade history for symbol in chronological order,
// paging forward by trade id until a short page. Only ctx bounds the walk.
func (s *Source) Trades(ctx context.Context, symbol string) ([]exchange.Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	var out []exchange.Trade
	var fromID int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := withRetry(ctx, s.cfg, "myTrades", func(ctx context.Context) ([]*gobinance.TradeV3, error) {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.HTTPTimeout)
			defer cancel()
			ctx, rec := withStatusRecorder(ctx)
			res, err := s.client.NewListTradesService().
				Symbol(symbol).
				FromID(fromID).
				Limit(s.pageLimit).
				Do(ctx, s.recvWindowOpt()...)
			if err != nil {
				return nil, upstream("myTrades", rec.Status(), err)
			}
			return res, nil
		})
		if err != nil {
			return nil, err
		}
		start := fromID
		for _, t := range batch {
			if t == nil {
				continue
			}
			qty, err := parseAmount("myTrades", fmt.Sprintf("%s trade %d qty", symbol, t.ID), t.Quantity)
			if err != nil {
				return nil, err
			}
			price, err := parseAmount("myTrades", fmt.Sprintf("%s trade %d price", symbol, t.ID), t.Price)
			if err != nil {
				return nil, err
			}
			out = append(out, exchange.Trade{
				ID:       t.ID,
				Symbol:   symbol,
				Quantity: qty,
				Price:    price,
				IsBuyer:  t.IsBuyer,
				Time:     t.Time,
			})
			if t.ID >= fromID {
				fromID = t.ID + 1
			}
		}
		if len(batch) < s.pageLimit {
			break
		}
		// 满页但游标没有前进，继续翻页只会重复拉取同一批
		if fromID == start {
			return nil, &errs.UpstreamError{Op: "myTrades", Msg: fmt.Sprintf("trade cursor stuck at id %d for %s", fromID, symbol)}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time == out[j].Time {
			return out[i].ID < out[j].ID
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *Source) LastPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	return withRetry(ctx, s.cfg, "ticker/price", func(ctx context.Context) (float64, error) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.HTTPTimeout)
		defer cancel()
		ctx, rec := withStatusRecorder(ctx)
		res, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return 0, upstream("ticker/price", rec.Status(), err)
		}
		for _, p := range res {
			if p == nil || !strings.EqualFold(p.Symbol, symbol) {
				continue
			}
			price, ok := convert.Float(p.Price)
			if !ok || price <= 0 {
				return 0, &errs.UpstreamError{Op: "ticker/price", Msg: fmt.Sprintf("malformed price %q for %s", p.Price, symbol)}
			}
			return price, nil
		}
		return 0, &errs.UpstreamError{Op: "ticker/price", Msg: "no price for " + symbol}
	})
}

// TradingRules loads LOT_SIZE and PRICE_FILTER for every listed symbol.
func (s *Source) TradingRules(ctx context.Context) (map[string]exchange.TradingRule, error) {
	return withRetry(ctx, s.cfg, "exchangeInfo", func(ctx context.Context) (map[string]exchange.TradingRule, error) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.HTTPTimeout)
		defer cancel()
		ctx, rec := withStatusRecorder(ctx)
		info, err := s.client.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, upstream("exchangeInfo", rec.Status(), err)
		}
		rules := make(map[string]exchange.TradingRule, len(info.Symbols))
		for _, sym := range info.Symbols {
			rule := exchange.TradingRule{
				Symbol: strings.ToUpper(sym.Symbol),
				Status: sym.Status,
			}
			if lot := sym.LotSizeFilter(); lot != nil {
				rule.StepSize = parseDecimal(lot.StepSize)
				rule.MinQty = parseDecimal(lot.MinQuantity)
			}
			if pf := sym.PriceFilter(); pf != nil {
				rule.TickSize = parseDecimal(pf.TickSize)
			}
			rules[rule.Symbol] = rule
		}
		return rules, nil
	})
}

// upstream 把 SDK 错误转成 UpstreamError。status 为 RoundTripper 记录的 HTTP 状态码，
// 非 JSON 的错误体（网关 HTML 页等）原样截断后放进 Msg。
func upstream(op string, status int, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsValid() {
			return &errs.UpstreamError{Op: op, Status: status, Code: apiErr.Code, Msg: apiErr.Message}
		}
		return &errs.UpstreamError{Op: op, Status: status, Msg: truncateBody(apiErr.Response)}
	}
	return &errs.UpstreamError{Op: op, Status: status, Err: err}
}

func truncateBody(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodyLen {
		msg = msg[:maxErrorBodyLen] + "..."
	}
	return msg
}

// parseAmount 解析交易所返回的数量/价格字符串；无法解析视为上游数据损坏。
func parseAmount(op, field, v string) (float64, error) {
	f, ok := convert.Float(v)
	if !ok {
		return 0, &errs.UpstreamError{Op: op, Msg: fmt.Sprintf("malformed %s %q", field, v)}
	}
	return f, nil
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}
