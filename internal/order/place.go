package order

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"spotrelay/internal/errs"
	"spotrelay/internal/logger"
	"spotrelay/internal/relay"
	"spotrelay/internal/signing"

	"github.com/google/uuid"
)

const orderPath = "/api/v3/order"

// Forwarder sends a signed request upstream (relay.Client).
type Forwarder interface {
	Do(ctx context.Context, req relay.Request) (*relay.Response, error)
}

// PlaceRequest 修正参数后下单。Type 默认 LIMIT（GTC）；MARKET 单不带价格。
type PlaceRequest struct {
	AdjustRequest
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"timeInForce"`
	ClientOrderID string `json:"newClientOrderId"`
	Test          bool   `json:"test"`
}

type Placed struct {
	Adjusted
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	ClientOrderID string          `json:"clientOrderId"`
	Upstream      json.RawMessage `json:"upstream"`
}

// CacheInvalidator drops cached reads a new order makes stale (market.Snapshot).
type CacheInvalidator interface {
	InvalidateSymbol(symbol string)
}

type Placer struct {
	adjuster *Adjuster
	fwd      Forwarder
	cache    CacheInvalidator
}

func NewPlacer(adjuster *Adjuster, fwd Forwarder) *Placer {
	return &Placer{adjuster: adjuster, fwd: fwd}
}

// WithCacheInvalidator 实盘下单成功后清掉账户与该交易对的成交缓存。
func (p *Placer) WithCacheInvalidator(inv CacheInvalidator) *Placer {
	p.cache = inv
	return p
}

// Place 下单不重试：超时或网络错误时订单状态未知，由调用方用 clientOrderId 查询。
func (p *Placer) Place(ctx context.Context, req PlaceRequest) (Placed, error) {
	side := strings.ToUpper(strings.TrimSpace(req.Side))
	if side != "BUY" && side != "SELL" {
		return Placed{}, errs.Invalid("side must be BUY or SELL, got %q", req.Side)
	}
	typ := strings.ToUpper(strings.TrimSpace(req.Type))
	if typ == "" {
		typ = "LIMIT"
	}
	if typ != "LIMIT" && typ != "MARKET" {
		return Placed{}, errs.Invalid("unsupported order type %q", req.Type)
	}
	adj, err := p.adjuster.AdjustOrderParameters(ctx, req.AdjustRequest)
	if err != nil {
		return Placed{}, err
	}

	clientID := strings.TrimSpace(req.ClientOrderID)
	if clientID == "" {
		clientID = "sr-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	}
	params := signing.Params{}.
		Add("symbol", adj.Symbol).
		Add("side", side).
		Add("type", typ)
	if typ == "LIMIT" {
		tif := strings.ToUpper(strings.TrimSpace(req.TimeInForce))
		if tif == "" {
			tif = "GTC"
		}
		params = params.Add("timeInForce", tif)
	}
	params = params.Add("quantity", adj.Quantity)
	if typ == "LIMIT" {
		params = params.Add("price", adj.Price)
	}
	params = params.Add("newClientOrderId", clientID)

	path := orderPath
	if req.Test {
		path += "/test"
	}
	resp, err := p.fwd.Do(ctx, relay.Request{Method: http.MethodPost, Path: path, Params: params, Signed: true})
	if err != nil {
		logger.Warnf("[order] %s %s %s qty=%s failed: %v", side, typ, adj.Symbol, adj.Quantity, err)
		return Placed{}, err
	}
	logger.Infof("[order] placed %s %s %s qty=%s price=%s id=%s", side, typ, adj.Symbol, adj.Quantity, adj.Price, clientID)
	if !req.Test && p.cache != nil {
		p.cache.InvalidateSymbol(adj.Symbol)
	}
	out := Placed{Adjusted: adj, Side: side, Type: typ, ClientOrderID: clientID}
	if resp != nil && json.Valid(resp.Body) {
		out.Upstream = json.RawMessage(resp.Body)
	}
	return out, nil
}
