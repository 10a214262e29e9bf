package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spotrelay/internal/logger"
	"spotrelay/internal/pkg/circuit"
)

// BreakerText 熔断状态变化的告警文本。
func BreakerText(name string, from, to circuit.State, at time.Time) string {
	icon := "ℹ️"
	switch to {
	case circuit.StateOpen:
		icon = "🚨"
	case circuit.StateClosed:
		icon = "✅"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s spotrelay 上游熔断状态变化\n", icon)
	fmt.Fprintf(&b, "上游：%s\n", name)
	fmt.Fprintf(&b, "状态：%s -> %s\n", from, to)
	b.WriteString("时间：" + at.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

// BreakerHandler 返回可挂到 CircuitBreaker.SetStateChangeHandler 的回调。
// 半开状态只记日志不推送。
func BreakerHandler(n TextNotifier, timeout time.Duration) func(name string, from, to circuit.State) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(name string, from, to circuit.State) {
		logger.Warnf("[circuit] %s: %s -> %s", name, from, to)
		if n == nil || to == circuit.StateHalfOpen {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := n.SendText(ctx, BreakerText(name, from, to, time.Now())); err != nil {
			logger.Warnf("[notifier] breaker alert failed: %v", err)
		}
	}
}
