package ladder

import (
	"testing"

	"kraken-ladder-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoRungs(t *testing.T, side models.Side) []models.LadderEntry {
	t.Helper()
	entries, err := Generate(models.LadderRequest{
		ReferencePrice: 100,
		Direction:      side,
		OrderCount:     2,
		PriceStepPct:   10,
		VolumeStepPct:  0,
		TotalNotional:  200,
		StopLossPct:    pct(5),
	}, btc(t))
	require.NoError(t, err)
	return entries
}

func TestPreviewLossAboveBuyLadder(t *testing.T) {
	entries := twoRungs(t, models.Buy)

	p := PreviewLoss(entries, 120, models.Buy, false, 1000)
	assert.Zero(t, p.RealizedLoss)
	assert.Zero(t, p.UnrealizedLoss)
	assert.Zero(t, p.OpenPositionSize)
	assert.Zero(t, p.ClosedPositionSize)
	assert.False(t, p.MarginCall)
}

func TestPreviewLossBuyWithStops(t *testing.T) {
	entries := twoRungs(t, models.Buy)
	// rung 0: 100 (stop 95), rung 1: 90.909 (stop 86.36)

	p := PreviewLoss(entries, 90, models.Buy, true, 1000)
	assert.InDelta(t, 5, p.RealizedLoss, 1e-9, "rung 0 stopped at 95")
	assert.InDelta(t, 1, p.ClosedPositionSize, 1e-9)
	assert.InDelta(t, (100/1.1-90)*1.1, p.UnrealizedLoss, 1e-9, "rung 1 still open")
	assert.InDelta(t, 1.1, p.OpenPositionSize, 1e-9)

	noStops := PreviewLoss(entries, 90, models.Buy, false, 1000)
	assert.Zero(t, noStops.RealizedLoss)
	assert.InDelta(t, 10+(100/1.1-90)*1.1, noStops.UnrealizedLoss, 1e-9)
	assert.InDelta(t, 2.1, noStops.OpenPositionSize, 1e-9)
}

func TestPreviewLossSellWithStops(t *testing.T) {
	entries := twoRungs(t, models.Sell)
	// rung 0: 100 (stop 105), rung 1: 110 (stop 115.5)

	p := PreviewLoss(entries, 112, models.Sell, true, 1000)
	assert.InDelta(t, 5, p.RealizedLoss, 1e-9)
	assert.InDelta(t, 1, p.ClosedPositionSize, 1e-9)
	assert.InDelta(t, 2*100.0/110, p.UnrealizedLoss, 1e-9)
	assert.InDelta(t, 100.0/110, p.OpenPositionSize, 1e-9)

	below := PreviewLoss(entries, 95, models.Sell, true, 1000)
	assert.Equal(t, models.LossPreview{HypotheticalPrice: 95}, below)
}

func TestPreviewLossMarginCall(t *testing.T) {
	entries := twoRungs(t, models.Buy)

	p := PreviewLoss(entries, 90, models.Buy, false, 0.5)
	assert.True(t, p.MarginCall)
	assert.Equal(t, 0.5, p.RealizedLoss)
	assert.Zero(t, p.UnrealizedLoss)
	assert.Zero(t, p.OpenPositionSize)
	assert.InDelta(t, 2.1, p.ClosedPositionSize, 1e-9)
}

func TestPreviewLossIsIdempotent(t *testing.T) {
	entries := twoRungs(t, models.Buy)

	first := PreviewLoss(entries, 88, models.Buy, true, 3)
	second := PreviewLoss(entries, 88, models.Buy, true, 3)
	assert.Equal(t, first, second)
}
