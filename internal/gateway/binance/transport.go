package binance

import (
	"context"
	"net/http"
	"sync/atomic"
)

// SDK 的 APIError 不带 HTTP 状态码；在 RoundTripper 层记下来，供 upstream() 判断是否可重试。
type statusKey struct{}

type statusRecorder struct {
	code atomic.Int32
}

func withStatusRecorder(ctx context.Context) (context.Context, *statusRecorder) {
	rec := &statusRecorder{}
	return context.WithValue(ctx, statusKey{}, rec), rec
}

func (r *statusRecorder) Status() int {
	if r == nil {
		return 0
	}
	return int(r.code.Load())
}

type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if resp != nil {
		if rec, ok := req.Context().Value(statusKey{}).(*statusRecorder); ok {
			rec.code.Store(int32(resp.StatusCode))
		}
	}
	return resp, err
}
