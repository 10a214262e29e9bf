package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spotrelay/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/jpillora/backoff"
	"github.com/tidwall/gjson"
)

// 中文说明：
// Telegram 通知器：上游熔断状态变化时推送到指定群/频道。

const (
	defaultTelegramAPI = "https://api.telegram.org"
	telegramAttempts   = 3
)

type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
	RetryMin time.Duration
}

type Telegram struct {
	cfg    TelegramConfig
	client *resty.Client
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	cfg.ChatID = strings.TrimSpace(cfg.ChatID)
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot_token and chat_id are required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultTelegramAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)
	return &Telegram{cfg: cfg, client: client}, nil
}

// SendText 发送文本消息；网络错误、429 与 5xx 最多重试 3 次。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	b := &backoff.Backoff{Min: t.cfg.RetryMin, Max: 8 * t.cfg.RetryMin, Factor: 2}
	var lastErr error
	for attempt := 0; attempt < telegramAttempts; attempt++ {
		retry, err := t.send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == telegramAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return lastErr
}

func (t *Telegram) send(ctx context.Context, text string) (bool, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id": t.cfg.ChatID,
			"text":    text,
		}).
		Post("/bot" + t.cfg.BotToken + "/sendMessage")
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsSuccess() {
		return false, nil
	}
	desc := gjson.GetBytes(resp.Body(), "description").String()
	status := resp.StatusCode()
	retry := status == 429 || status >= 500
	logger.Debugf("[notifier] telegram status=%d desc=%s", status, desc)
	return retry, fmt.Errorf("telegram status=%d: %s", status, desc)
}
