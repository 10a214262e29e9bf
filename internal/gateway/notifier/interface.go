package notifier

import "context"

// TextNotifier 推送一段纯文本告警。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
