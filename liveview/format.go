package liveview

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const percentUnavailable = "n/a"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Direction of the price relative to the baseline.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) Class() string {
	if d == Down {
		return "text-red"
	}

	return "text-green"
}

func (d Direction) Icon() string {
	if d == Down {
		return "fa fa-level-down text-red"
	}

	return "fa fa-level-up text-green"
}

// FormatFiat renders v with two decimals and thousands separators.
func FormatFiat(v decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", v.Round(2).InexactFloat64())
}

// PercentChange returns abs(v/baseline - 1) * 100 with two decimals, or
// "n/a" when there is no usable baseline.
func PercentChange(v, baseline decimal.Decimal, ok bool) string {
	if !ok || baseline.IsZero() {
		return percentUnavailable
	}

	return v.Div(baseline).Sub(one).Abs().Mul(hundred).StringFixed(2)
}

// PriceDirection is Down iff v is below the baseline.
func PriceDirection(v, baseline decimal.Decimal, ok bool) Direction {
	if ok && v.LessThan(baseline) {
		return Down
	}

	return Up
}

func fundingSummary(current, total decimal.Decimal, unit string, contributions int) string {
	return fmt.Sprintf(
		"%s / %s %s - %d contributions",
		current.StringFixed(2), total.StringFixed(2), unit, contributions,
	)
}
