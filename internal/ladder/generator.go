package ladder

import (
	"fmt"
	"math"

	"kraken-ladder-go/internal/models"
)

// MaxOrderCount bounds the number of rungs in one ladder.
const MaxOrderCount = 1000

// Normalize binds a request to its instrument: the pair name is canonicalized
// and margin leverage is clamped to the instrument's maximum.
func Normalize(req models.LadderRequest, inst models.Instrument) models.LadderRequest {
	req.Pair = inst.Pair
	req.Leverage = req.Leverage.Clamp(inst.MaxLeverage)
	return req
}

// Validate checks a request without generating it.
func Validate(req models.LadderRequest) error {
	if !positive(req.ReferencePrice) {
		return incomplete("reference_price", "must be a positive number")
	}
	if req.OrderCount < 1 {
		return incomplete("order_count", "must be at least 1")
	}
	if req.OrderCount > MaxOrderCount {
		return invalid("order_count", fmt.Sprintf("must not exceed %d", MaxOrderCount))
	}
	if !finite(req.PriceStepPct) {
		return incomplete("price_step_pct", "must be a number")
	}
	if !finite(req.VolumeStepPct) {
		return incomplete("volume_step_pct", "must be a number")
	}
	if !positive(req.TotalNotional) {
		return incomplete("total_notional", "must be a positive number")
	}
	if req.Direction != models.Buy && req.Direction != models.Sell {
		return incomplete("direction", "must be buy or sell")
	}
	if req.PriceStepPct < 0 {
		return invalid("price_step_pct", "must not be negative")
	}
	if 1+req.VolumeStepPct/100 <= 0 {
		return invalid("volume_step_pct", "must be greater than -100")
	}
	if p := req.StopLossPct; p != nil && (!finite(*p) || *p < 0) {
		return invalid("stop_loss_pct", "must be a non-negative number")
	}
	if p := req.TakeProfitPct; p != nil && (!finite(*p) || *p < 0) {
		return invalid("take_profit_pct", "must be a non-negative number")
	}
	return nil
}

// Generate builds the ladder for req. Rung prices follow one geometric
// progression away from the reference price (down for buy, up for sell) and
// rung notionals follow a second one, scaled so they sum to TotalNotional.
// Prices are kept at full precision; DisplayPrice is the only rounded value.
func Generate(req models.LadderRequest, inst models.Instrument) ([]models.LadderEntry, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	priceRatio := 1 + req.PriceStepPct/100
	volumeRatio := 1 + req.VolumeStepPct/100

	sumFactors := 0.0
	for i := 0; i < req.OrderCount; i++ {
		sumFactors += math.Pow(volumeRatio, float64(i))
	}
	// Notional of rung 0; later rungs scale it by volumeRatio^i.
	basePrice := req.TotalNotional / sumFactors

	entries := make([]models.LadderEntry, req.OrderCount)
	for i := range entries {
		step := math.Pow(priceRatio, float64(i))
		price := req.ReferencePrice * step
		if req.Direction == models.Buy {
			price = req.ReferencePrice / step
		}
		target := basePrice * math.Pow(volumeRatio, float64(i))
		volume := target / price

		if !positive(price) || !positive(volume) {
			return nil, invalid("order_count", "progression leaves the representable range")
		}

		entry := models.LadderEntry{
			Index:        i,
			Price:        price,
			DisplayPrice: FormatPrice(price, inst.PriceDecimals),
			Volume:       volume,
			Notional:     price * volume,
		}
		if req.StopLossPct != nil {
			entry.StopLossPrice = models.Some(StopLossPrice(price, *req.StopLossPct, req.Direction))
		}
		if req.TakeProfitPct != nil {
			entry.TakeProfitPrice = models.Some(TakeProfitPrice(price, *req.TakeProfitPct, req.Direction))
		}
		entries[i] = entry
	}
	return entries, nil
}

// StopLossPrice is on the losing side of the entry: below for buy, above for sell.
func StopLossPrice(price, pct float64, side models.Side) float64 {
	if side == models.Buy {
		return price * (1 - pct/100)
	}
	return price * (1 + pct/100)
}

// TakeProfitPrice is on the winning side of the entry: above for buy, below for sell.
func TakeProfitPrice(price, pct float64, side models.Side) float64 {
	if side == models.Buy {
		return price * (1 + pct/100)
	}
	return price * (1 - pct/100)
}

// ApplyMarketPrice returns a copy of entries with the distance of each rung
// from marketPrice filled in. A non-positive market price clears it.
func ApplyMarketPrice(entries []models.LadderEntry, marketPrice float64) []models.LadderEntry {
	out := make([]models.LadderEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if positive(marketPrice) {
			out[i].DistanceToReferencePct = models.Some((out[i].Price - marketPrice) / marketPrice * 100)
		} else {
			out[i].DistanceToReferencePct = models.None()
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}
