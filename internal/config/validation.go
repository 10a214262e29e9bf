package config

import (
	"fmt"
	"net/url"
	"strings"

	"spotrelay/internal/errs"
	"spotrelay/internal/logger"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Positions.validate(); err != nil {
		return err
	}
	if err := c.Relay.validate(); err != nil {
		return err
	}
	return c.Notify.Telegram.validate()
}

func (a *AppConfig) validate() error {
	if !logger.ValidLevel(a.LogLevel) {
		return fmt.Errorf("app.log_level %q is not one of debug/info/warn/error", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

// validate 缺少凭证属于启动期致命错误。
func (e *ExchangeConfig) validate() error {
	if e.APIKey == "" {
		return &errs.ConfigurationError{Field: "exchange.api_key"}
	}
	if strings.TrimSpace(e.APISecret) == "" {
		return &errs.ConfigurationError{Field: "exchange.api_secret"}
	}
	u, err := url.Parse(e.RESTBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &errs.ConfigurationError{Field: "exchange.rest_base_url", Reason: fmt.Sprintf("%q is not an absolute url", e.RESTBaseURL)}
	}
	if e.RecvWindowMS < 0 || e.RecvWindowMS > 60000 {
		return fmt.Errorf("exchange.recv_window_ms must be within [0, 60000]")
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("exchange.max_retries must be >= 0")
	}
	if e.Proxy.Enabled {
		if _, err := url.Parse(e.Proxy.RESTURL); err != nil {
			return fmt.Errorf("exchange.proxy.rest_url invalid: %w", err)
		}
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.AccountTTL <= 0 || c.TradesTTL <= 0 || c.PriceTTL <= 0 || c.RulesTTL <= 0 {
		return fmt.Errorf("cache ttls must be > 0")
	}
	if c.RulesTTL < c.PriceTTL {
		return fmt.Errorf("cache.rules_ttl (%s) should not be shorter than cache.price_ttl (%s)", c.RulesTTL, c.PriceTTL)
	}
	return nil
}

func (p *PositionsConfig) validate() error {
	if p.FeeRate < 0 || p.FeeRate >= 1 {
		return fmt.Errorf("positions.fee_rate must be within [0, 1)")
	}
	if p.MinValue < 0 {
		return fmt.Errorf("positions.min_value must be >= 0")
	}
	if p.MaxConcurrency <= 0 {
		return fmt.Errorf("positions.max_concurrency must be > 0")
	}
	return nil
}

func (r *RelayConfig) validate() error {
	if r.BreakerThreshold <= 0 {
		return fmt.Errorf("relay.breaker_threshold must be > 0")
	}
	return nil
}

func (t *TelegramConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" {
		return &errs.ConfigurationError{Field: "notify.telegram.bot_token"}
	}
	if strings.TrimSpace(t.ChatID) == "" {
		return &errs.ConfigurationError{Field: "notify.telegram.chat_id"}
	}
	return nil
}
