package symbol

import "strings"

type BinanceConverter struct{}

// ToExchange accepts "BTC/USDT", "btcusdt" or "BTC/USDT:USDT" and returns "BTCUSDT".
func (BinanceConverter) ToExchange(internal string) string {
	s := strings.ToUpper(strings.TrimSpace(internal))
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return strings.ReplaceAll(s, "/", "")
}

var Binance Converter = BinanceConverter{}
