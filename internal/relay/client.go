// Package relay 把本地请求签名后转发到交易所 REST 接口。
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spotrelay/internal/errs"
	"spotrelay/internal/logger"
	"spotrelay/internal/pkg/circuit"
	"spotrelay/internal/signing"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ErrCircuitOpen 上游连续失败，熔断期间直接拒绝转发。
var ErrCircuitOpen = circuit.ErrOpen

var defaultSignedPaths = []string{
	"/api/v3/account",
	"/api/v3/myTrades",
	"/api/v3/order",
	"/api/v3/openOrders",
	"/api/v3/allOrders",
	"/api/v3/order/test",
	"/sapi/v1/capital/config/getall",
	"/sapi/v1/asset/assetDividend",
}

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	SignedPaths      []string
	BreakerThreshold int
	BreakerCooldown  time.Duration
	UserAgent        string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = "https://api.binance.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if len(c.SignedPaths) == 0 {
		c.SignedPaths = defaultSignedPaths
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "spotrelay"
	}
	return c
}

// Request is one upstream call. Params keep their order on the wire.
type Request struct {
	Method string
	Path   string
	Params signing.Params
	Signed bool
}

// Response is the raw upstream answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type Client struct {
	cfg     Config
	http    *resty.Client
	signer  *signing.Signer
	signed  map[string]struct{}
	breaker *circuit.CircuitBreaker
}

func New(cfg Config, signer *signing.Signer) *Client {
	cfg = cfg.withDefaults()
	signed := make(map[string]struct{}, len(cfg.SignedPaths))
	for _, p := range cfg.SignedPaths {
		signed[normalizePath(p)] = struct{}{}
	}
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)
	return &Client{
		cfg:     cfg,
		http:    hc,
		signer:  signer,
		signed:  signed,
		breaker: circuit.NewCircuitBreaker("binance-rest", cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// Breaker exposes the circuit breaker guarding upstream calls.
func (c *Client) Breaker() *circuit.CircuitBreaker { return c.breaker }

// IsSigned reports whether path requires timestamp + signature.
func (c *Client) IsSigned(path string) bool {
	_, ok := c.signed[normalizePath(path)]
	return ok
}

// Do 转发一次请求。非 2xx 响应同时返回 Response 与 *errs.UpstreamError，
// 方便透传场景原样回写上游报文。写操作不会重试。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := normalizePath(req.Path)
	query, err := c.encode(req, path)
	if err != nil {
		return nil, err
	}
	target := path
	if query != "" {
		target += "?" + query
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var out *Response
	err = c.breaker.Do(func() error {
		r := c.http.R().SetContext(ctx)
		if req.Signed || c.IsSigned(path) {
			r.SetHeader(signing.HeaderAPIKey, c.signer.APIKey())
		}
		start := time.Now()
		resp, err := r.Execute(method, target)
		if err != nil {
			logger.Warnf("[relay] %s %s failed after %s: %v", method, path, time.Since(start).Round(time.Millisecond), err)
			return &errs.UpstreamError{Op: path, Err: err}
		}
		out = &Response{Status: resp.StatusCode(), Header: resp.Header(), Body: resp.Body()}
		logger.Debugf("[relay] %s %s -> %d (%s)", method, path, out.Status, time.Since(start).Round(time.Millisecond))
		if resp.IsError() || out.Status >= http.StatusMultipleChoices {
			return parseUpstreamError(path, out)
		}
		return nil
	}, errs.IsTransient)
	if errors.Is(err, circuit.ErrOpen) {
		return nil, ErrCircuitOpen
	}
	return out, err
}

func (c *Client) encode(req Request, path string) (string, error) {
	if !req.Signed && !c.IsSigned(path) {
		return req.Params.Encode(), nil
	}
	if c.signer == nil {
		return "", &errs.ConfigurationError{Field: "exchange.api_secret"}
	}
	return c.signer.SignRequest(req.Params)
}

// parseUpstreamError 解析 Binance 错误体 {"code":-1121,"msg":"Invalid symbol."}。
func parseUpstreamError(op string, resp *Response) error {
	upErr := &errs.UpstreamError{Op: op, Status: resp.Status}
	body := resp.Body
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		upErr.Code = res.Get("code").Int()
		upErr.Msg = res.Get("msg").String()
	}
	if upErr.Msg == "" {
		upErr.Msg = strings.TrimSpace(string(truncate(body, 256)))
	}
	if upErr.Msg == "" {
		upErr.Msg = http.StatusText(resp.Status)
	}
	return upErr
}

// ParamsFromQuery turns an incoming query into ordered params, dropping any
// client supplied signature fields.
func ParamsFromQuery(raw string) (signing.Params, error) {
	var out signing.Params
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("bad query key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("bad query value for %s: %w", key, err)
		}
		switch key {
		case signing.ParamSignature, signing.ParamTimestamp:
			continue
		}
		out = out.Add(key, val)
	}
	return out, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
