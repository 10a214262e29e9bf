package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"spotrelay/internal/errs"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExchange struct {
	priceCalls  atomic.Int32
	throttle    atomic.Int32
	outageCalls atomic.Int32
	tradeCalls  atomic.Int32
	// history 为 LONGUSDT 生成的成交笔数
	history    int
	badBalance bool
}

func (s *stubExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()
	switch r.URL.Path {
	case "/api/v3/account":
		if r.Header.Get("X-MBX-APIKEY") != "key" || q.Get("signature") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":-2014,"msg":"API-key format invalid."}`))
			return
		}
		if s.badBalance {
			_, _ = w.Write([]byte(`{"balances":[{"asset":"BTC","free":"n/a","locked":"0"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"balances":[
			{"asset":"BTC","free":"0.50000000","locked":"0.10000000"},
			{"asset":"usdt","free":"100.0","locked":"0"},
			{"asset":"DOGE","free":"0","locked":"0"}]}`))
	case "/api/v3/myTrades":
		s.tradeCalls.Add(1)
		from, _ := strconv.ParseInt(q.Get("fromId"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		switch q.Get("symbol") {
		case "LONGUSDT":
			body := "["
			n := 0
			for id := max(from, 1); id <= int64(s.history) && n < limit; id++ {
				if n > 0 {
					body += ","
				}
				body += fmt.Sprintf(`{"id":%d,"symbol":"LONGUSDT","price":"1","qty":"1","isBuyer":true,"time":%d}`, id, id*1000)
				n++
			}
			_, _ = w.Write([]byte(body + "]"))
			return
		case "ODDUSDT":
			_, _ = w.Write([]byte(`[{"id":1,"symbol":"ODDUSDT","price":"abc","qty":"1","isBuyer":true,"time":1000}]`))
			return
		}
		if q.Get("symbol") == "BADUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		all := []string{
			`{"id":1,"symbol":"BTCUSDT","price":"100","qty":"1","isBuyer":true,"time":1000}`,
			`{"id":2,"symbol":"BTCUSDT","price":"200","qty":"1","isBuyer":true,"time":2000}`,
			`{"id":3,"symbol":"BTCUSDT","price":"300","qty":"1","isBuyer":false,"time":3000}`,
		}
		body := "["
		n := 0
		for i, raw := range all {
			if int64(i+1) < from || n >= limit {
				continue
			}
			if n > 0 {
				body += ","
			}
			body += raw
			n++
		}
		_, _ = w.Write([]byte(body + "]"))
	case "/api/v3/ticker/price":
		if q.Get("symbol") == "HTMLUSDT" {
			s.outageCalls.Add(1)
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("<html><body><h1>503 Service Temporarily Unavailable</h1></body></html>"))
			return
		}
		s.priceCalls.Add(1)
		if s.throttle.Load() > 0 {
			s.throttle.Add(-1)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests."}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"symbol":%q,"price":"65000.10000000"}`, q.Get("symbol"))
	case "/api/v3/exchangeInfo":
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","status":"TRADING","filters":[
			{"filterType":"PRICE_FILTER","minPrice":"0.01000000","maxPrice":"1000000.00000000","tickSize":"0.01000000"},
			{"filterType":"LOT_SIZE","minQty":"0.00001000","maxQty":"9000.00000000","stepSize":"0.00001000"}]}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestSource(t *testing.T, stub *stubExchange) *Source {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	src, err := New(Config{
		RESTBaseURL: srv.URL,
		APIKey:      "key",
		APISecret:   "secret",
		HTTPTimeout: 2 * time.Second,
		MaxRetries:  2,
		RetryMin:    time.Millisecond,
		RetryMax:    2 * time.Millisecond,
	})
	require.NoError(t, err)
	return src
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{APISecret: "secret"})
	var cfgErr *errs.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "exchange.api_key", cfgErr.Field)
}

func TestSource_Account(t *testing.T) {
	src := newTestSource(t, &stubExchange{})
	acct, err := src.Account(context.Background())
	require.NoError(t, err)
	require.Len(t, acct.Balances, 3)
	assert.Equal(t, "BTC", acct.Balances[0].Asset)
	assert.InDelta(t, 0.6, acct.Balances[0].Total(), 1e-12)
	assert.Equal(t, "USDT", acct.Balances[1].Asset)
	assert.Len(t, acct.NonZero(), 2)
}

func TestSource_TradesPaginates(t *testing.T) {
	src := newTestSource(t, &stubExchange{})
	src.pageLimit = 2

	trades, err := src.Trades(context.Background(), "btcusdt")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, int64(1), trades[0].ID)
	assert.Equal(t, 300.0, trades[2].Price)
	assert.False(t, trades[2].IsBuyer)
	assert.Equal(t, "BTCUSDT", trades[0].Symbol)
}

func TestSource_TradesInvalidSymbolNotRetried(t *testing.T) {
	src := newTestSource(t, &stubExchange{})
	_, err := src.Trades(context.Background(), "BADUSDT")
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, int64(-1121), up.Code)
	assert.False(t, up.Transient())
}

func TestSource_LastPriceRetriesThrottle(t *testing.T) {
	stub := &stubExchange{}
	stub.throttle.Store(2)
	src := newTestSource(t, stub)

	price, err := src.LastPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 65000.1, price)
	assert.Equal(t, int32(3), stub.priceCalls.Load())
}

func TestSource_LastPriceGivesUpAfterMaxRetries(t *testing.T) {
	stub := &stubExchange{}
	stub.throttle.Store(10)
	src := newTestSource(t, stub)

	_, err := src.LastPrice(context.Background(), "ETHUSDT")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, int32(3), stub.priceCalls.Load())
}

func TestSource_TradingRules(t *testing.T) {
	src := newTestSource(t, &stubExchange{})
	rules, err := src.TradingRules(context.Background())
	require.NoError(t, err)
	rule, ok := rules["BTCUSDT"]
	require.True(t, ok)
	assert.True(t, rule.Tradable())
	assert.True(t, rule.TickSize.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, rule.StepSize.Equal(decimal.RequireFromString("0.00001")))
	assert.True(t, rule.MinQty.Equal(decimal.RequireFromString("0.00001")))
}

func TestSource_AccountMalformedBalance(t *testing.T) {
	src := newTestSource(t, &stubExchange{badBalance: true})
	_, err := src.Account(context.Background())
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, "account", up.Op)
	assert.Contains(t, up.Msg, "BTC free")
	assert.False(t, up.Transient())
}

func TestSource_TradesFollowsLongHistory(t *testing.T) {
	stub := &stubExchange{history: 60}
	src := newTestSource(t, stub)
	src.pageLimit = 1

	trades, err := src.Trades(context.Background(), "LONGUSDT")
	require.NoError(t, err)
	require.Len(t, trades, 60)
	assert.Equal(t, int64(1), trades[0].ID)
	assert.Equal(t, int64(60), trades[59].ID)
	// 60 满页 + 1 空页
	assert.Equal(t, int32(61), stub.tradeCalls.Load())
}

func TestSource_TradesStopsOnCancel(t *testing.T) {
	src := newTestSource(t, &stubExchange{history: 5})
	src.pageLimit = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Trades(ctx, "LONGUSDT")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_TradesMalformedPrice(t *testing.T) {
	src := newTestSource(t, &stubExchange{})
	_, err := src.Trades(context.Background(), "ODDUSDT")
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, "myTrades", up.Op)
	assert.Contains(t, up.Msg, `"abc"`)
}

func TestSource_NonJSONOutageRetried(t *testing.T) {
	stub := &stubExchange{}
	src := newTestSource(t, stub)

	_, err := src.LastPrice(context.Background(), "HTMLUSDT")
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusServiceUnavailable, up.Status)
	assert.Contains(t, up.Msg, "503 Service Temporarily Unavailable")
	assert.True(t, up.Transient())
	assert.Equal(t, int32(3), stub.outageCalls.Load())
}

func TestSource_APIErrorCarriesStatus(t *testing.T) {
	src := newTestSource(t, &stubExchange{})
	_, err := src.Trades(context.Background(), "BADUSDT")
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusBadRequest, up.Status)
	assert.Equal(t, "Invalid symbol.", up.Msg)
}

func TestUpstream_TruncatesLongBody(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	err := upstream("account", 502, &common.APIError{Response: body})
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Len(t, up.Msg, maxErrorBodyLen+3)
	assert.True(t, up.Transient())
}
