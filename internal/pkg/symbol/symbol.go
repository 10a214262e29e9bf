package symbol

import (
	"strings"
)

// DefaultQuoteAssets 按优先级排列的报价币种（稳定币/法币）。
var DefaultQuoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "DAI", "USD", "EUR"}

type Converter interface {
	ToExchange(internal string) string
}

type Symbol struct {
	Base  string
	Quote string
}

// Pair builds a symbol from asset codes.
func Pair(base, quote string) Symbol {
	return Symbol{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// NormalizeAssets upper-cases, trims and de-duplicates asset codes, keeping order.
func NormalizeAssets(assets []string) []string {
	if len(assets) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(assets))
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		norm := strings.ToUpper(strings.TrimSpace(a))
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
