package config

import (
	"strings"
	"time"

	symbolpkg "spotrelay/internal/pkg/symbol"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":8787"
	defaultLogMaxSizeMB     = 50
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 14
	defaultExchangeREST     = "https://api.binance.com"
	defaultRecvWindowMS     = 5000
	defaultTimeoutSeconds   = 10
	defaultMaxRetries       = 3
	defaultAccountTTL       = 5 * time.Second
	defaultTradesTTL        = 60 * time.Second
	defaultPriceTTL         = 5 * time.Second
	defaultRulesTTL         = time.Hour
	defaultFeeRate          = 0.001
	defaultMinValue         = 10.0
	defaultMaxConcurrency   = 4
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// applyDefaults 为所有子配置应用默认值；配置文件或环境变量显式给出的键不会被覆盖。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Positions.applyDefaults(keys)
	c.Relay.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		intFieldDefault("app.log_max_size_mb", &a.LogMaxSizeMB, defaultLogMaxSizeMB),
		intFieldDefault("app.log_max_backups", &a.LogMaxBackups, defaultLogMaxBackups),
		intFieldDefault("app.log_max_age_days", &a.LogMaxAgeDays, defaultLogMaxAgeDays),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	e.APIKey = strings.TrimSpace(e.APIKey)
	e.Proxy.normalize()
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.rest_base_url", &e.RESTBaseURL, defaultExchangeREST),
		intFieldDefault("exchange.recv_window_ms", &e.RecvWindowMS, defaultRecvWindowMS),
		intFieldDefault("exchange.timeout_seconds", &e.TimeoutSeconds, defaultTimeoutSeconds),
		// 显式配置 0 表示关闭重试
		fieldDefault{
			key:   "exchange.max_retries",
			need:  func() bool { return e.MaxRetries == 0 },
			apply: func() { e.MaxRetries = defaultMaxRetries },
		},
	)
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		durationFieldDefault("cache.account_ttl", &c.AccountTTL, defaultAccountTTL),
		durationFieldDefault("cache.trades_ttl", &c.TradesTTL, defaultTradesTTL),
		durationFieldDefault("cache.price_ttl", &c.PriceTTL, defaultPriceTTL),
		durationFieldDefault("cache.rules_ttl", &c.RulesTTL, defaultRulesTTL),
	)
}

func (p *PositionsConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	p.QuoteAssets = symbolpkg.NormalizeAssets(p.QuoteAssets)
	if len(p.QuoteAssets) == 0 {
		p.QuoteAssets = append([]string(nil), symbolpkg.DefaultQuoteAssets...)
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "positions.fee_rate",
			need:  func() bool { return p.FeeRate == 0 },
			apply: func() { p.FeeRate = defaultFeeRate },
		},
		fieldDefault{
			key:   "positions.min_value",
			need:  func() bool { return p.MinValue == 0 },
			apply: func() { p.MinValue = defaultMinValue },
		},
		intFieldDefault("positions.max_concurrency", &p.MaxConcurrency, defaultMaxConcurrency),
	)
}

func (r *RelayConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	r.SignedPaths = normalizePaths(r.SignedPaths)
	applyFieldDefaults(keys,
		intFieldDefault("relay.breaker_threshold", &r.BreakerThreshold, defaultBreakerThreshold),
		durationFieldDefault("relay.breaker_cooldown", &r.BreakerCooldown, defaultBreakerCooldown),
	)
}

// Helper functions

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func durationFieldDefault(key string, target *time.Duration, def time.Duration) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizePaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
