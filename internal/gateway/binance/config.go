package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration
	RecvWindow  time.Duration

	MaxRetries int
	RetryMin   time.Duration
	RetryMax   time.Duration

	ProxyEnabled bool
	RESTProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://api.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 10 * time.Second
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.RetryMin <= 0 {
		out.RetryMin = 200 * time.Millisecond
	}
	if out.RetryMax < out.RetryMin {
		out.RetryMax = 2 * time.Second
	}
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}
