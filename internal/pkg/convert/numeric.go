// Package convert turns loosely typed exchange payload values into numbers.
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Float parses v as a finite float64. Binance sends amounts as strings
// ("0.00100000"); numbers and decimals are accepted too.
func Float(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, err = t.Float64()
	case decimal.Decimal:
		f = t.InexactFloat64()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
