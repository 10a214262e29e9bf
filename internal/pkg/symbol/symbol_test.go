package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinanceConverter(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance.ToExchange(" btc/usdt "))
	assert.Equal(t, "BTCUSDT", Binance.ToExchange("BTC/USDT:USDT"))
	assert.Equal(t, "ETHBTC", Binance.ToExchange("ethbtc"))
	assert.Equal(t, "", Binance.ToExchange("  "))
}

func TestPair(t *testing.T) {
	assert.Equal(t, "ARBEUR", Pair("arb", " eur ").Binance())
	assert.Equal(t, "", Pair("BTC", "").Binance())
}

func TestNormalizeAssets(t *testing.T) {
	assert.Equal(t, []string{"USDT", "USDC"}, NormalizeAssets([]string{" usdt", "USDC", "usdt", ""}))
	assert.Nil(t, NormalizeAssets(nil))
}
