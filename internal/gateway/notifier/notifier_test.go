package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spotrelay/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tg, err := NewTelegram(TelegramConfig{
		BotToken: "123:abc",
		ChatID:   "-100",
		BaseURL:  srv.URL,
		Timeout:  time.Second,
		RetryMin: time.Millisecond,
	})
	require.NoError(t, err)
	return tg
}

func TestNewTelegram_RequiresCredentials(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{BotToken: "x"})
	assert.Error(t, err)
}

func TestTelegram_SendText(t *testing.T) {
	var got map[string]any
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, "-100", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
}

func TestTelegram_RetriesServerErrors(t *testing.T) {
	var calls int32
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTelegram_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	})
	err := tg.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingNotifier) SendText(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func TestBreakerHandler(t *testing.T) {
	rec := &recordingNotifier{}
	h := BreakerHandler(rec, time.Second)

	h("binance-rest", circuit.StateClosed, circuit.StateOpen)
	h("binance-rest", circuit.StateOpen, circuit.StateHalfOpen)
	h("binance-rest", circuit.StateHalfOpen, circuit.StateClosed)

	require.Len(t, rec.texts, 2)
	assert.Contains(t, rec.texts[0], "CLOSED -> OPEN")
	assert.Contains(t, rec.texts[0], "binance-rest")
	assert.Contains(t, rec.texts[1], "HALF-OPEN -> CLOSED")
}
