package trading

import (
	"math"
	"strings"

	"spotrelay/internal/errs"

	"github.com/shopspring/decimal"
)

// DecimalPlaces returns the number of significant fractional digits of d.
// Trailing zeros are ignored and exponent forms are expanded, so "1e-7",
// "0.0000001" and "0.00000010" all report 7.
func DecimalPlaces(d decimal.Decimal) int {
	s := d.String()
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}
	return len(strings.TrimRight(s[idx+1:], "0"))
}

// DecimalPlacesFloat is DecimalPlaces for float input, using the shortest
// decimal representation that round-trips the float.
func DecimalPlacesFloat(x float64) int {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return DecimalPlaces(decimal.NewFromFloat(x))
}

// RoundPriceDown floors price to a multiple of tickSize and formats it with
// the tick's precision.
func RoundPriceDown(price, tickSize decimal.Decimal) (string, error) {
	if !tickSize.IsPositive() {
		return "", &errs.InvalidFilterError{Filter: "tickSize", Value: tickSize.String()}
	}
	floored := floorToStep(price, tickSize)
	return floored.StringFixed(int32(DecimalPlaces(tickSize))), nil
}

// AdjustQuantity floors qty to a multiple of stepSize. Results below minQty are
// raised to the minimum tradable size instead of being rejected; callers decide
// whether that inflates the order beyond intent.
func AdjustQuantity(qty, stepSize, minQty decimal.Decimal) (string, error) {
	if !stepSize.IsPositive() {
		return "", &errs.InvalidFilterError{Filter: "stepSize", Value: stepSize.String()}
	}
	places := int32(DecimalPlaces(stepSize))
	floored := floorToStep(qty, stepSize)
	if floored.LessThan(minQty) {
		floored = ceilToStep(minQty, stepSize)
	}
	return floored.StringFixed(places), nil
}

func floorToStep(v, step decimal.Decimal) decimal.Decimal {
	return v.Div(step).Floor().Mul(step)
}

func ceilToStep(v, step decimal.Decimal) decimal.Decimal {
	return v.Div(step).Ceil().Mul(step)
}
