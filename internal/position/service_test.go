package position

import (
	"context"
	"errors"
	"testing"

	"spotrelay/internal/errs"
	"spotrelay/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMarket struct {
	mock.Mock
}

func (m *MockMarket) Account(ctx context.Context) (exchange.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.Account), args.Error(1)
}

func (m *MockMarket) Trades(ctx context.Context, symbol string) ([]exchange.Trade, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Trade), args.Error(1)
}

func (m *MockMarket) LastPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func account(balances ...exchange.Balance) exchange.Account {
	return exchange.Account{Balances: balances}
}

func invalidSymbol(symbol string) error {
	return &errs.UpstreamError{Op: "myTrades", Status: 400, Code: -1121, Msg: "Invalid symbol. " + symbol}
}

func TestComputePositions_ResolvesAndKeepsAccountOrder(t *testing.T) {
	m := new(MockMarket)
	m.On("Account", mock.Anything).Return(account(
		exchange.Balance{Asset: "ETH", Free: 2},
		exchange.Balance{Asset: "USDT", Free: 1000},
		exchange.Balance{Asset: "BTC", Free: 0.5, Locked: 0.5},
		exchange.Balance{Asset: "XRP", Free: 0},
	), nil)
	// ETH only trades against USDC in this account
	m.On("Trades", mock.Anything, "ETHUSDT").Return([]exchange.Trade{}, nil)
	m.On("Trades", mock.Anything, "ETHUSDC").Return([]exchange.Trade{
		{ID: 1, Quantity: 2, Price: 3000, IsBuyer: true, Time: 1},
	}, nil)
	m.On("Trades", mock.Anything, "BTCUSDT").Return([]exchange.Trade{
		{ID: 1, Quantity: 1, Price: 100, IsBuyer: true, Time: 1},
		{ID: 2, Quantity: 1, Price: 200, IsBuyer: true, Time: 2},
		{ID: 3, Quantity: 1, Price: 300, IsBuyer: false, Time: 3},
	}, nil)
	m.On("LastPrice", mock.Anything, "ETHUSDC").Return(3100.0, nil)
	m.On("LastPrice", mock.Anything, "BTCUSDT").Return(150.0, nil)

	svc := NewService(m, Config{QuoteAssets: []string{"USDT", "USDC"}, MaxConcurrency: 2})
	got, err := svc.ComputePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ETHUSDC", got[0].Symbol)
	assert.Equal(t, 2.0, got[0].PositionAmt)
	assert.InDelta(t, 200.0, got[0].UnrealizedPL, 1e-9)

	assert.Equal(t, "BTCUSDT", got[1].Symbol)
	assert.InDelta(t, 150.0, got[1].BreakEven, 1e-9)
	assert.InDelta(t, 0.0, got[1].UnrealizedPL, 1e-9)
	assert.Equal(t, 1.0, got[1].PositionAmt)

	m.AssertNotCalled(t, "Trades", mock.Anything, "USDTUSDT")
	m.AssertNotCalled(t, "Trades", mock.Anything, "XRPUSDT")
}

func TestComputePositions_UnresolvedAssetSkippedWithoutError(t *testing.T) {
	m := new(MockMarket)
	m.On("Account", mock.Anything).Return(account(exchange.Balance{Asset: "LUNA", Free: 100}), nil)
	m.On("Trades", mock.Anything, "LUNAUSDT").Return([]exchange.Trade{}, nil)
	m.On("Trades", mock.Anything, "LUNAUSDC").Return(nil, invalidSymbol("LUNAUSDC"))

	svc := NewService(m, Config{QuoteAssets: []string{"USDT", "USDC"}})
	got, err := svc.ComputePositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	m.AssertNotCalled(t, "LastPrice", mock.Anything, mock.Anything)
}

func TestComputePositions_CandidateErrorFallsThrough(t *testing.T) {
	m := new(MockMarket)
	m.On("Account", mock.Anything).Return(account(exchange.Balance{Asset: "SOL", Free: 10}), nil)
	m.On("Trades", mock.Anything, "SOLUSDT").Return(nil, invalidSymbol("SOLUSDT"))
	m.On("Trades", mock.Anything, "SOLFDUSD").Return([]exchange.Trade{
		{ID: 7, Quantity: 10, Price: 20, IsBuyer: true, Time: 5},
	}, nil)
	m.On("LastPrice", mock.Anything, "SOLFDUSD").Return(25.0, nil)

	svc := NewService(m, Config{QuoteAssets: []string{"usdt", "fdusd"}})
	got, err := svc.ComputePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SOLFDUSD", got[0].Symbol)
	assert.InDelta(t, 20.0, got[0].BreakEven, 1e-9)
	assert.InDelta(t, 50.0, got[0].UnrealizedPL, 1e-9)
}

func TestComputePositions_DustExcluded(t *testing.T) {
	m := new(MockMarket)
	m.On("Account", mock.Anything).Return(account(exchange.Balance{Asset: "DOGE", Free: 111}), nil)
	m.On("Trades", mock.Anything, "DOGEUSDT").Return([]exchange.Trade{
		{ID: 1, Quantity: 111, Price: 0.08, IsBuyer: true, Time: 1},
	}, nil)
	m.On("LastPrice", mock.Anything, "DOGEUSDT").Return(0.09, nil)

	svc := NewService(m, Config{QuoteAssets: []string{"USDT"}, MinValue: 10})
	got, err := svc.ComputePositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestComputePositions_ZeroMinValueKeepsDust(t *testing.T) {
	m := new(MockMarket)
	m.On("Account", mock.Anything).Return(account(exchange.Balance{Asset: "DOGE", Free: 111}), nil)
	m.On("Trades", mock.Anything, "DOGEUSDT").Return([]exchange.Trade{
		{ID: 1, Quantity: 111, Price: 0.08, IsBuyer: true, Time: 1},
	}, nil)
	m.On("LastPrice", mock.Anything, "DOGEUSDT").Return(0.09, nil)

	svc := NewService(m, Config{QuoteAssets: []string{"USDT"}, MinValue: 0})
	assert.Equal(t, 0.0, svc.Config().MinValue)
	got, err := svc.ComputePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "DOGEUSDT", got[0].Symbol)
	assert.InDelta(t, 9.99, got[0].MarketValue, 1e-9)

	// 负数回落到默认阈值
	assert.Equal(t, 10.0, NewService(m, Config{MinValue: -1}).Config().MinValue)
}

func TestComputePositions_PriceFailureSkipsAsset(t *testing.T) {
	m := new(MockMarket)
	m.On("Account", mock.Anything).Return(account(
		exchange.Balance{Asset: "BNB", Free: 1},
		exchange.Balance{Asset: "ADA", Free: 100},
	), nil)
	m.On("Trades", mock.Anything, "BNBUSDT").Return([]exchange.Trade{{ID: 1, Quantity: 1, Price: 500, IsBuyer: true}}, nil)
	m.On("Trades", mock.Anything, "ADAUSDT").Return([]exchange.Trade{{ID: 1, Quantity: 100, Price: 0.5, IsBuyer: true}}, nil)
	m.On("LastPrice", mock.Anything, "BNBUSDT").Return(0.0, &errs.UpstreamError{Op: "ticker/price", Status: 503})
	m.On("LastPrice", mock.Anything, "ADAUSDT").Return(0.6, nil)

	svc := NewService(m, Config{QuoteAssets: []string{"USDT"}, MaxConcurrency: 1})
	got, err := svc.ComputePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ADAUSDT", got[0].Symbol)
}

func TestComputePositions_AccountFailureAborts(t *testing.T) {
	m := new(MockMarket)
	boom := &errs.UpstreamError{Op: "account", Status: 401, Code: -2014, Msg: "API-key format invalid."}
	m.On("Account", mock.Anything).Return(exchange.Account{}, boom)

	svc := NewService(m, Config{})
	_, err := svc.ComputePositions(context.Background())
	require.Error(t, err)
	var up *errs.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, int64(-2014), up.Code)
}

type staticResolver struct {
	symbol string
	trades []exchange.Trade
	err    error
}

func (r staticResolver) Resolve(context.Context, string) (string, []exchange.Trade, error) {
	return r.symbol, r.trades, r.err
}

func TestResolve_FirstNonEmptyWins(t *testing.T) {
	ctx := context.Background()
	chain := []Resolver{
		staticResolver{err: errors.New("timeout")},
		staticResolver{},
		staticResolver{symbol: "AUSDC", trades: []exchange.Trade{{ID: 1}}},
		staticResolver{symbol: "AEUR", trades: []exchange.Trade{{ID: 2}}},
	}
	symbol, trades, err := resolve(ctx, chain, "A")
	require.NoError(t, err)
	assert.Equal(t, "AUSDC", symbol)
	assert.Len(t, trades, 1)

	_, _, err = resolve(ctx, chain[:2], "A")
	assert.ErrorIs(t, err, errs.ErrSymbolUnresolved)
}

func TestComputeBreakEven(t *testing.T) {
	m := new(MockMarket)
	m.On("Trades", mock.Anything, "BTCUSDT").Return([]exchange.Trade{
		{ID: 1, Quantity: 2, Price: 10, IsBuyer: true, Time: 1},
	}, nil)
	m.On("Trades", mock.Anything, "ETHUSDT").Return([]exchange.Trade{}, nil)

	svc := NewService(m, Config{FeeRate: 0.001})
	be, err := svc.ComputeBreakEven(context.Background(), "btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", be.Symbol)
	assert.InDelta(t, 10.01, be.BreakEven, 1e-9)
	assert.Equal(t, 2.0, be.TotalQuantity)

	be, err = svc.ComputeBreakEven(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Zero(t, be.BreakEven)
	assert.Zero(t, be.TotalQuantity)
}
