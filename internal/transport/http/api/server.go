// Package apihttp 暴露持仓分析、下单参数修正与交易所透传接口。
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"spotrelay/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// Server 本地 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖；Relay 为空时不挂载透传路由。
type ServerConfig struct {
	Addr      string
	Positions PositionService
	Market    MarketService
	Adjuster  OrderAdjuster
	Placer    OrderPlacer
	Relay     Relay
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Positions == nil || cfg.Market == nil || cfg.Adjuster == nil {
		return nil, errors.New("api http server requires positions, market and order services")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	schemas, err := compileBodySchemas()
	if err != nil {
		return nil, err
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if cfg.Relay != nil {
			body["upstream"] = cfg.Relay.Breaker().State().String()
		}
		c.JSON(http.StatusOK, body)
	})
	api := NewRouter(cfg.Positions, cfg.Market, cfg.Adjuster, cfg.Placer)
	api.schemas = schemas
	api.Register(router.Group("/api"))
	if cfg.Relay != nil {
		rh := &relayHandler{relay: cfg.Relay}
		router.Any("/api/v3/*path", rh.handle)
		router.Any("/sapi/v1/*path", rh.handle)
	}
	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestID 为每个请求分配 ID，沿用调用方传入的 X-Request-ID。
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		// 查询串可能带签名，不记录
		logger.Debugf("[api] %s %s status=%d ip=%s id=%s dur=%s",
			method, path, status, c.ClientIP(), c.GetString(headerRequestID), dur)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[api] listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
