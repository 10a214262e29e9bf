package apihttp

import (
	"context"
	"net/http"
	"strings"

	"spotrelay/internal/gateway/exchange"
	"spotrelay/internal/order"
	"spotrelay/internal/pkg/circuit"
	"spotrelay/internal/position"
	"spotrelay/internal/relay"

	"github.com/gin-gonic/gin"
)

type PositionService interface {
	ComputePositions(ctx context.Context) ([]position.Position, error)
	ComputeBreakEven(ctx context.Context, symbol string) (position.BreakEven, error)
}

// MarketService 带缓存的行情/账户读取。
type MarketService interface {
	Account(ctx context.Context) (exchange.Account, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
	TradingRule(ctx context.Context, symbol string) (exchange.TradingRule, error)
}

type OrderAdjuster interface {
	AdjustOrderParameters(ctx context.Context, req order.AdjustRequest) (order.Adjusted, error)
}

type OrderPlacer interface {
	Place(ctx context.Context, req order.PlaceRequest) (order.Placed, error)
}

type Relay interface {
	Do(ctx context.Context, req relay.Request) (*relay.Response, error)
	Breaker() *circuit.CircuitBreaker
}

// Router 暴露 /api 下的分析与下单接口。
type Router struct {
	positions PositionService
	market    MarketService
	adjuster  OrderAdjuster
	placer    OrderPlacer
	schemas   *bodySchemas
}

func NewRouter(positions PositionService, market MarketService, adjuster OrderAdjuster, placer OrderPlacer) *Router {
	return &Router{positions: positions, market: market, adjuster: adjuster, placer: placer}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/positions", r.handlePositions)
	group.GET("/breakeven/:symbol", r.handleBreakEven)
	group.GET("/account", r.handleAccount)
	group.GET("/price/:symbol", r.handlePrice)
	group.GET("/rules/:symbol", r.handleRules)
	group.POST("/order/adjust", r.handleAdjust)
	if r.placer != nil {
		group.POST("/order", r.handlePlace)
	}
}

func (r *Router) handlePositions(c *gin.Context) {
	positions, err := r.positions.ComputePositions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (r *Router) handleBreakEven(c *gin.Context) {
	be, err := r.positions.ComputeBreakEven(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, be)
}

type balanceView struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

func (r *Router) handleAccount(c *gin.Context) {
	acct, err := r.market.Account(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	nonZero := acct.NonZero()
	out := make([]balanceView, 0, len(nonZero))
	for _, b := range nonZero {
		out = append(out, balanceView{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	c.JSON(http.StatusOK, gin.H{"balances": out, "updatedAt": acct.UpdatedAt})
}

func (r *Router) handlePrice(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	price, err := r.market.LastPrice(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func (r *Router) handleRules(c *gin.Context) {
	rule, err := r.market.TradingRule(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   rule.Symbol,
		"status":   rule.Status,
		"stepSize": rule.StepSize.String(),
		"minQty":   rule.MinQty.String(),
		"tickSize": rule.TickSize.String(),
	})
}

func (r *Router) handleAdjust(c *gin.Context) {
	var req order.AdjustRequest
	if err := bindValidated(c, r.schemas.adjustSchema(), &req); err != nil {
		writeError(c, err)
		return
	}
	adj, err := r.adjuster.AdjustOrderParameters(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, adj)
}

func (r *Router) handlePlace(c *gin.Context) {
	var req order.PlaceRequest
	if err := bindValidated(c, r.schemas.placeSchema(), &req); err != nil {
		writeError(c, err)
		return
	}
	placed, err := r.placer.Place(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, placed)
}
