package ladder

import "kraken-ladder-go/internal/models"

// PreviewLoss splits the loss of a fully filled ladder at hypotheticalPrice into
// realized (rungs whose stop was crossed) and unrealized (rungs still open).
// Rungs in profit contribute nothing. When the unrealized loss exceeds the
// balance the whole open position counts as force-closed for the balance.
func PreviewLoss(entries []models.LadderEntry, hypotheticalPrice float64, direction models.Side, stopLossEnabled bool, accountBalance float64) models.LossPreview {
	p := models.LossPreview{HypotheticalPrice: hypotheticalPrice}

	for _, e := range entries {
		if direction == models.Sell {
			if hypotheticalPrice <= e.Price {
				continue
			}
			if stopLossEnabled && e.StopLossPrice.Valid && hypotheticalPrice >= e.StopLossPrice.Value {
				p.RealizedLoss += (e.StopLossPrice.Value - e.Price) * e.Volume
				p.ClosedPositionSize += e.Volume
				continue
			}
			p.UnrealizedLoss += (hypotheticalPrice - e.Price) * e.Volume
			p.OpenPositionSize += e.Volume
			continue
		}

		if hypotheticalPrice >= e.Price {
			continue
		}
		if stopLossEnabled && e.StopLossPrice.Valid && hypotheticalPrice <= e.StopLossPrice.Value {
			p.RealizedLoss += (e.Price - e.StopLossPrice.Value) * e.Volume
			p.ClosedPositionSize += e.Volume
			continue
		}
		p.UnrealizedLoss += (e.Price - hypotheticalPrice) * e.Volume
		p.OpenPositionSize += e.Volume
	}

	if p.UnrealizedLoss > accountBalance {
		p.RealizedLoss = accountBalance
		p.UnrealizedLoss = 0
		p.ClosedPositionSize += p.OpenPositionSize
		p.OpenPositionSize = 0
		p.MarginCall = true
	}
	return p
}
