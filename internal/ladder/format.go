package ladder

import (
	"github.com/shopspring/decimal"

	"kraken-ladder-go/internal/models"
)

// VolumeDecimals is the precision of order volumes sent to the exchange.
const VolumeDecimals = 8

// FormatPrice renders a price at the pair's precision, rounding half away from zero.
func FormatPrice(price float64, decimals int) string {
	return decimal.NewFromFloat(price).StringFixed(int32(decimals))
}

// FormatVolume renders a base-asset volume at VolumeDecimals.
func FormatVolume(volume float64) string {
	return decimal.NewFromFloat(volume).StringFixed(VolumeDecimals)
}

// RoundPrice rounds a price to the pair's precision.
func RoundPrice(price float64, decimals int) float64 {
	return decimal.NewFromFloat(price).Round(int32(decimals)).InexactFloat64()
}

// FormatOptional renders an optional price, "N/A" when absent.
func FormatOptional(o models.Optional, decimals int) string {
	if !o.Valid {
		return "N/A"
	}
	return FormatPrice(o.Value, decimals)
}

// OffsetReference places rung 0 offsetPct away from the market price: below it
// for buy ladders, above it for sell ladders.
func OffsetReference(marketPrice, offsetPct float64, side models.Side, decimals int) float64 {
	factor := 1 + offsetPct/100
	if side == models.Buy {
		factor = 1 - offsetPct/100
	}
	return RoundPrice(marketPrice*factor, decimals)
}

// DefaultTotal is the largest notional the balance supports at the given leverage.
func DefaultTotal(balance float64, leverage models.Leverage) float64 {
	return balance * float64(leverage.Multiplier())
}
