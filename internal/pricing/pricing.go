// Package pricing derives gross and marked-up prices. All results are
// rounded half away from zero to two decimal places.
package pricing

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const places = 2

var hundred = decimal.NewFromInt(100)

// ErrOutOfRange is returned for amounts a float64 cannot hold.
var ErrOutOfRange = errors.New("amount out of range")

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// GrossFromNet applies vat percent to a net price. Negative or non-finite
// net counts as 0.
func GrossFromNet(net float64, vat int) float64 {
	if net <= 0 || !Finite(net) {
		return 0
	}
	factor := decimal.NewFromInt(int64(vat)).Div(hundred).Add(decimal.NewFromInt(1))
	return round(decimal.NewFromFloat(net).Mul(factor))
}

// PriceWithMarkup applies markupPct to base. Non-finite inputs yield 0.
func PriceWithMarkup(base, markupPct float64) float64 {
	if base <= 0 || !Finite(base) || !Finite(markupPct) {
		return 0
	}
	factor := decimal.NewFromFloat(markupPct).Div(hundred).Add(decimal.NewFromInt(1))
	return round(decimal.NewFromFloat(base).Mul(factor))
}

// MarkupFromPrices derives the markup percent that turns base into final.
// ok is false when base <= 0, in which case the markup is undefined and 0 is returned.
func MarkupFromPrices(final, base float64) (pct float64, ok bool) {
	if base <= 0 || !Finite(base) || !Finite(final) {
		return 0, false
	}
	ratio := decimal.NewFromFloat(final).Div(decimal.NewFromFloat(base))
	return round(ratio.Sub(decimal.NewFromInt(1)).Mul(hundred)), true
}

// Round rounds v to currency precision.
func Round(v float64) float64 {
	if !Finite(v) {
		return 0
	}
	return round(decimal.NewFromFloat(v))
}

// ParseAmount parses price text as found in feeds and forms. Both "12.50"
// and "12,50" are accepted. Empty text parses as 0.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, " ", "")
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	if !Finite(f) {
		return 0, ErrOutOfRange
	}
	return f, nil
}

// ParseVAT returns the integer VAT percent in s, or def when s is not an integer.
func ParseVAT(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

func round(d decimal.Decimal) float64 {
	f, _ := d.Round(places).Float64()
	if !Finite(f) {
		return 0
	}
	return f
}
