package market

import (
	"context"
	"time"

	"spotrelay/internal/cache"
	"spotrelay/internal/logger"
)

// 中文说明：
// 预热器：进程启动时先拉取交易规则与账户快照，避免第一个请求承担全部冷启动开销。
// 失败只记日志，不影响启动；之后的请求会按 TTL 正常重试。

// Preheat loads trading rules and the account snapshot into the cache.
// It returns the number of categories that were warmed.
func (s *Snapshot) Preheat(ctx context.Context) int {
	warmed := 0
	start := time.Now()
	rules, err := cache.Get(ctx, s.cache, CategoryRules, rulesKey, s.ttl.Rules, s.reader.TradingRules)
	if err != nil {
		logger.Warnf("[预热] 交易规则获取失败: %v", err)
	} else {
		warmed++
		logger.Debugf("[预热] 交易规则 %d 个交易对", len(rules))
	}
	acct, err := s.Account(ctx)
	if err != nil {
		logger.Warnf("[预热] 账户快照获取失败: %v", err)
	} else {
		warmed++
		logger.Debugf("[预热] 账户非零资产 %d 个", len(acct.NonZero()))
	}
	logger.Infof("[预热] 完成 %d/2 缓存条目=%d dur=%s", warmed, s.cache.Len(), time.Since(start).Round(time.Millisecond))
	return warmed
}
