package app

import (
	"context"
	"fmt"

	brcfg "spotrelay/internal/config"
	"spotrelay/internal/logger"
	"spotrelay/internal/market"
	apihttp "spotrelay/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→预热缓存→启动 HTTP 服务。
type App struct {
	cfg      *brcfg.Config
	server   *apihttp.Server
	snapshot *market.Snapshot
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, opts)
}

// Run 启动 HTTP 服务，并在后台预热缓存；ctx 取消后优雅退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("api http server error: %w", err)
		}
		return nil
	})
	if a.snapshot != nil {
		group.Go(func() error {
			a.snapshot.Preheat(ctx)
			return nil
		})
	}
	return group.Wait()
}

// Server exposes the HTTP server (for tests).
func (a *App) Server() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.server
}
