package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	brcfg "spotrelay/internal/config"
	"spotrelay/internal/logger"
	"spotrelay/internal/position"
	"spotrelay/internal/relay"
)

type StartupSummary struct {
	HTTPAddr   string
	Env        string
	Exchange   ExchangeSummary
	Cache      brcfg.CacheConfig
	Positions  position.Config
	SignedPath []string
	Breaker    string
	Telegram   bool
}

type ExchangeSummary struct {
	BaseURL    string
	APIKey     string
	RecvWindow string
	Timeout    string
	MaxRetries int
	Proxy      string
}

func buildSummary(cfg *brcfg.Config, pos position.Config, upstream *relay.Client) *StartupSummary {
	proxy := "-"
	if cfg.Exchange.Proxy.Enabled {
		proxy = cfg.Exchange.Proxy.RESTURL
	}
	s := &StartupSummary{
		HTTPAddr: cfg.App.HTTPAddr,
		Env:      cfg.App.Env,
		Exchange: ExchangeSummary{
			BaseURL:    cfg.Exchange.RESTBaseURL,
			APIKey:     maskKey(cfg.Exchange.APIKey),
			RecvWindow: cfg.Exchange.RecvWindow().String(),
			Timeout:    cfg.Exchange.Timeout().String(),
			MaxRetries: cfg.Exchange.MaxRetries,
			Proxy:      proxy,
		},
		Cache:      cfg.Cache,
		Positions:  pos,
		SignedPath: cfg.Relay.SignedPaths,
		Telegram:   cfg.Notify.Telegram.Enabled,
	}
	if upstream != nil {
		s.Breaker = upstream.Breaker().State().String()
	}
	return s
}

// maskKey 只保留首尾 4 位。
func maskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Print 通过 logger 输出，便于同时写入滚动日志文件。
func (s *StartupSummary) Print() {
	var buf bytes.Buffer
	s.Fprint(&buf)
	logger.InfoBlock(buf.String())
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[服务 (SERVICE)]")
	fmt.Fprintf(w, "  监听地址: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintf(w, "  运行环境: %s\n", orDash(s.Env))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[交易所 (EXCHANGE)]")
	fmt.Fprintf(w, "  REST: %s\n", orDash(s.Exchange.BaseURL))
	fmt.Fprintf(w, "  API Key: %s\n", orDash(s.Exchange.APIKey))
	fmt.Fprintf(w, "  recvWindow: %s  超时: %s  重试: %d\n", s.Exchange.RecvWindow, s.Exchange.Timeout, s.Exchange.MaxRetries)
	fmt.Fprintf(w, "  代理: %s\n", s.Exchange.Proxy)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[缓存 (CACHE TTL)]")
	fmt.Fprintf(w, "  账户: %s  成交: %s  价格: %s  规则: %s\n",
		s.Cache.AccountTTL, s.Cache.TradesTTL, s.Cache.PriceTTL, s.Cache.RulesTTL)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[持仓 (POSITIONS)]")
	fmt.Fprintf(w, "  计价币优先级: %s\n", formatList(s.Positions.QuoteAssets))
	fmt.Fprintf(w, "  手续费率: %g  最小市值: %g  并发: %d\n", s.Positions.FeeRate, s.Positions.MinValue, s.Positions.MaxConcurrency)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[透传 (RELAY)]")
	fmt.Fprintf(w, "  签名路径: %s\n", formatList(s.SignedPath))
	fmt.Fprintf(w, "  熔断状态: %s\n", orDash(s.Breaker))
	fmt.Fprintf(w, "  Telegram 告警: %t\n", s.Telegram)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
