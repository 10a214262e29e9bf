package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"spotrelay/internal/app"
	brcfg "spotrelay/internal/config"
	"spotrelay/internal/logger"
)

func main() {
	var cfgFlag string
	flag.StringVar(&cfgFlag, "config", "", "配置文件路径（默认读取 SPOTRELAY_CONFIG 或 configs/config.yaml）")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := brcfg.ResolvePath(cfgFlag)
	cfg, err := brcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，路径=%s）", cfg.App.Env, cfgPath)

	// 仅热更新日志级别；其他参数需重启生效
	if err := brcfg.Watch(cfgPath, func(next *brcfg.Config) {
		logger.SetLevel(next.App.LogLevel)
	}); err != nil {
		logger.Warnf("配置热更新未启用: %v", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := application.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("已退出")
}

func setupLogOutput(cfg brcfg.AppConfig) (io.Closer, error) {
	trimmed := strings.TrimSpace(cfg.LogPath)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file := logger.NewRotatingWriter(logger.FileConfig{
		Path:       trimmed,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
