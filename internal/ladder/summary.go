package ladder

import "kraken-ladder-go/internal/models"

// Summarize aggregates a ladder. Values that would divide by zero, or that do
// not apply (leverage in spot mode, liquidation below the balance), are None.
//
// The liquidation estimate treats the whole account balance as the margin
// buffer of the ladder. It is a rough guide, not the exchange's figure.
func Summarize(entries []models.LadderEntry, marketPrice, accountBalance float64, direction models.Side, leverage models.Leverage) models.LadderSummary {
	var s models.LadderSummary
	if len(entries) == 0 {
		return s
	}

	for _, e := range entries {
		s.TotalNotional += e.Notional
		s.TotalVolume += e.Volume
	}

	first, last := entries[0].Price, entries[len(entries)-1].Price
	if first != 0 {
		s.PriceRangePct = (last - first) / first * 100
	}

	if s.TotalVolume > 0 {
		s.AveragePrice = models.Some(s.TotalNotional / s.TotalVolume)
		if positive(marketPrice) {
			s.AverageDistancePct = models.Some((s.AveragePrice.Value - marketPrice) / marketPrice * 100)
		}
	}

	if !leverage.IsSpot() && s.TotalNotional > 0 && accountBalance > 0 {
		s.LeverageUsed = models.Some(s.TotalNotional / accountBalance)
	}

	if s.TotalNotional > accountBalance && s.TotalVolume > 0 {
		if direction == models.Sell {
			s.LiquidationPriceEstimate = models.Some((s.TotalNotional + accountBalance) / s.TotalVolume)
		} else {
			s.LiquidationPriceEstimate = models.Some((s.TotalNotional - accountBalance) / s.TotalVolume)
		}
	}
	return s
}
