package config

import (
	"strings"
	"time"
)

// Config 是 spotrelay 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Cache     CacheConfig     `toml:"cache"`
	Positions PositionsConfig `toml:"positions"`
	Relay     RelayConfig     `toml:"relay"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	HTTPAddr      string `toml:"http_addr"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
}

// ExchangeConfig Binance 现货 REST 接入参数。
type ExchangeConfig struct {
	RESTBaseURL    string      `toml:"rest_base_url"`
	APIKey         string      `toml:"api_key"`
	APISecret      string      `toml:"api_secret"`
	RecvWindowMS   int         `toml:"recv_window_ms"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	MaxRetries     int         `toml:"max_retries"`
	Proxy          ProxyConfig `toml:"proxy"`
}

func (e ExchangeConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func (e ExchangeConfig) RecvWindow() time.Duration {
	return time.Duration(e.RecvWindowMS) * time.Millisecond
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
	if p.RESTURL == "" {
		p.Enabled = false
	}
}

// CacheConfig 各类缓存的有效期。
type CacheConfig struct {
	AccountTTL time.Duration `toml:"account_ttl"`
	TradesTTL  time.Duration `toml:"trades_ttl"`
	PriceTTL   time.Duration `toml:"price_ttl"`
	RulesTTL   time.Duration `toml:"rules_ttl"`
}

// PositionsConfig 持仓汇总参数；quote_assets 的顺序即交易对解析优先级。
type PositionsConfig struct {
	QuoteAssets    []string `toml:"quote_assets"`
	FeeRate        float64  `toml:"fee_rate"`
	MinValue       float64  `toml:"min_value"`
	MaxConcurrency int      `toml:"max_concurrency"`
}

type RelayConfig struct {
	SignedPaths      []string      `toml:"signed_paths"`
	BreakerThreshold int           `toml:"breaker_threshold"`
	BreakerCooldown  time.Duration `toml:"breaker_cooldown"`
}

// NotifyConfig 告警推送；目前只有 Telegram。
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}
