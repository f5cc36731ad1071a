package ladder

import (
	"math"
	"testing"

	"kraken-ladder-go/internal/instruments"
	"kraken-ladder-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v float64) *float64 { return &v }

func btc(t *testing.T) models.Instrument {
	t.Helper()
	inst, ok := instruments.Default().Get("BTC/USD")
	require.True(t, ok)
	return inst
}

func TestGenerateBuyLadderExample(t *testing.T) {
	req := models.LadderRequest{
		ReferencePrice: 100,
		Direction:      models.Buy,
		OrderCount:     3,
		PriceStepPct:   10,
		VolumeStepPct:  0,
		TotalNotional:  300,
	}

	entries, err := Generate(req, btc(t))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.InDelta(t, 100, entries[0].Price, 1e-9)
	assert.InDelta(t, 90.909090909, entries[1].Price, 1e-6)
	assert.InDelta(t, 82.644628099, entries[2].Price, 1e-6)
	assert.Equal(t, "100.0", entries[0].DisplayPrice)
	assert.Equal(t, "90.9", entries[1].DisplayPrice)
	assert.Equal(t, "82.6", entries[2].DisplayPrice)

	for i, e := range entries {
		assert.Equal(t, i, e.Index)
		assert.InDelta(t, 100, e.Notional, 1e-9, "rung %d", i)
		assert.False(t, e.StopLossPrice.Valid)
		assert.False(t, e.TakeProfitPrice.Valid)
	}

	s := Summarize(entries, 0, 1000, models.Buy, models.Spot())
	assert.InDelta(t, -17.355371901, s.PriceRangePct, 1e-6)
	assert.InDelta(t, 300, s.TotalNotional, 1e-9)
}

func TestGenerateProperties(t *testing.T) {
	tests := []struct {
		name string
		req  models.LadderRequest
	}{
		{"buy growing volume", models.LadderRequest{ReferencePrice: 64250.5, Direction: models.Buy, OrderCount: 15, PriceStepPct: 1.2, VolumeStepPct: 8.7, TotalNotional: 5000}},
		{"sell shrinking volume", models.LadderRequest{ReferencePrice: 0.5123, Direction: models.Sell, OrderCount: 10, PriceStepPct: 2.5, VolumeStepPct: -20, TotalNotional: 1234.56}},
		{"flat volume", models.LadderRequest{ReferencePrice: 3100, Direction: models.Buy, OrderCount: 7, PriceStepPct: 0.75, VolumeStepPct: 0, TotalNotional: 700}},
		{"many rungs", models.LadderRequest{ReferencePrice: 1.0e-5, Direction: models.Sell, OrderCount: 50, PriceStepPct: 0.5, VolumeStepPct: 3, TotalNotional: 99.99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Generate(tt.req, btc(t))
			require.NoError(t, err)
			require.Len(t, entries, tt.req.OrderCount)

			var sum float64
			for i, e := range entries {
				sum += e.Notional
				if i == 0 {
					continue
				}
				if tt.req.Direction == models.Buy {
					assert.Less(t, e.Price, entries[i-1].Price, "buy ladders step down")
				} else {
					assert.Greater(t, e.Price, entries[i-1].Price, "sell ladders step up")
				}
			}
			assert.InEpsilon(t, tt.req.TotalNotional, sum, 1e-9)

			if tt.req.VolumeStepPct == 0 {
				for _, e := range entries {
					assert.InEpsilon(t, tt.req.TotalNotional/float64(tt.req.OrderCount), e.Notional, 1e-9)
				}
			}

			s := Summarize(entries, 0, 100, tt.req.Direction, models.Leveraged(3))
			assert.InEpsilon(t, tt.req.TotalNotional, s.TotalNotional, 1e-9)
			if tt.req.Direction == models.Buy {
				assert.Negative(t, s.PriceRangePct)
			} else {
				assert.Positive(t, s.PriceRangePct)
			}
		})
	}
}

func TestGenerateSingleOrder(t *testing.T) {
	req := models.LadderRequest{
		ReferencePrice: 2500.25,
		Direction:      models.Sell,
		OrderCount:     1,
		PriceStepPct:   5,
		VolumeStepPct:  50,
		TotalNotional:  1000,
	}
	entries, err := Generate(req, btc(t))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2500.25, entries[0].Price)
	assert.InDelta(t, 1000, entries[0].Notional, 1e-9)
	assert.InDelta(t, 1000/2500.25, entries[0].Volume, 1e-12)
}

func TestGenerateStopLossTakeProfit(t *testing.T) {
	base := models.LadderRequest{
		ReferencePrice: 100,
		OrderCount:     2,
		PriceStepPct:   10,
		VolumeStepPct:  0,
		TotalNotional:  200,
		StopLossPct:    pct(5),
		TakeProfitPct:  pct(10),
	}

	buy := base
	buy.Direction = models.Buy
	entries, err := Generate(buy, btc(t))
	require.NoError(t, err)
	assert.InDelta(t, 95, entries[0].StopLossPrice.Value, 1e-9)
	assert.InDelta(t, 110, entries[0].TakeProfitPrice.Value, 1e-9)
	assert.Less(t, entries[1].StopLossPrice.Value, entries[1].Price)
	assert.Greater(t, entries[1].TakeProfitPrice.Value, entries[1].Price)

	sell := base
	sell.Direction = models.Sell
	entries, err = Generate(sell, btc(t))
	require.NoError(t, err)
	assert.InDelta(t, 105, entries[0].StopLossPrice.Value, 1e-9)
	assert.InDelta(t, 90, entries[0].TakeProfitPrice.Value, 1e-9)
	assert.Greater(t, entries[1].StopLossPrice.Value, entries[1].Price)
	assert.Less(t, entries[1].TakeProfitPrice.Value, entries[1].Price)
}

func TestGenerateValidation(t *testing.T) {
	valid := models.LadderRequest{
		ReferencePrice: 100,
		Direction:      models.Buy,
		OrderCount:     3,
		PriceStepPct:   1,
		VolumeStepPct:  1,
		TotalNotional:  300,
	}

	tests := []struct {
		name     string
		mutate   func(r *models.LadderRequest)
		field    string
		wantKind error
	}{
		{"zero reference price", func(r *models.LadderRequest) { r.ReferencePrice = 0 }, "reference_price", ErrIncompleteInput},
		{"NaN reference price", func(r *models.LadderRequest) { r.ReferencePrice = math.NaN() }, "reference_price", ErrIncompleteInput},
		{"zero orders", func(r *models.LadderRequest) { r.OrderCount = 0 }, "order_count", ErrIncompleteInput},
		{"too many orders", func(r *models.LadderRequest) { r.OrderCount = MaxOrderCount + 1 }, "order_count", ErrInvalidInput},
		{"infinite price step", func(r *models.LadderRequest) { r.PriceStepPct = math.Inf(1) }, "price_step_pct", ErrIncompleteInput},
		{"NaN volume step", func(r *models.LadderRequest) { r.VolumeStepPct = math.NaN() }, "volume_step_pct", ErrIncompleteInput},
		{"zero total", func(r *models.LadderRequest) { r.TotalNotional = 0 }, "total_notional", ErrIncompleteInput},
		{"no direction", func(r *models.LadderRequest) { r.Direction = "" }, "direction", ErrIncompleteInput},
		{"negative price step", func(r *models.LadderRequest) { r.PriceStepPct = -1 }, "price_step_pct", ErrInvalidInput},
		{"volume ratio zero", func(r *models.LadderRequest) { r.VolumeStepPct = -100 }, "volume_step_pct", ErrInvalidInput},
		{"volume ratio negative", func(r *models.LadderRequest) { r.VolumeStepPct = -150 }, "volume_step_pct", ErrInvalidInput},
		{"negative stop loss", func(r *models.LadderRequest) { r.StopLossPct = pct(-1) }, "stop_loss_pct", ErrInvalidInput},
		{"negative take profit", func(r *models.LadderRequest) { r.TakeProfitPct = pct(-2) }, "take_profit_pct", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			entries, err := Generate(req, btc(t))
			require.Error(t, err)
			assert.Nil(t, entries)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.True(t, IsValidation(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := Generate(valid, btc(t))
	assert.NoError(t, err)
}

func TestNormalizeClampsLeverage(t *testing.T) {
	inst := btc(t)

	req := Normalize(models.LadderRequest{Pair: "btc", Leverage: models.Leveraged(10)}, inst)
	assert.Equal(t, "BTC/USD", req.Pair)
	assert.Equal(t, models.Leveraged(5), req.Leverage)

	req = Normalize(models.LadderRequest{Leverage: models.Leveraged(2)}, inst)
	assert.Equal(t, models.Leveraged(2), req.Leverage)

	req = Normalize(models.LadderRequest{Leverage: models.Spot()}, inst)
	assert.True(t, req.Leverage.IsSpot())
}

func TestApplyMarketPrice(t *testing.T) {
	entries := []models.LadderEntry{{Price: 99}, {Price: 102}}

	withMarket := ApplyMarketPrice(entries, 100)
	require.Len(t, withMarket, 2)
	assert.InDelta(t, -1, withMarket[0].DistanceToReferencePct.Value, 1e-9)
	assert.InDelta(t, 2, withMarket[1].DistanceToReferencePct.Value, 1e-9)
	assert.False(t, entries[0].DistanceToReferencePct.Valid, "input is not modified")

	cleared := ApplyMarketPrice(withMarket, 0)
	assert.False(t, cleared[0].DistanceToReferencePct.Valid)
}
