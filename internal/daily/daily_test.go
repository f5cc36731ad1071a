package daily

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/instruments"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
	"kraken-ladder-go/internal/submitter"
)

func pct(v float64) *float64 { return &v }

// recordingExchange counts which cancel endpoint the job used.
type recordingExchange struct {
	*exchange.PaperExchange
	singleCancels int
	batchCancels  [][]string
}

func (r *recordingExchange) CancelOrder(ctx context.Context, txid string) (*models.CancelResult, error) {
	r.singleCancels++
	return r.PaperExchange.CancelOrder(ctx, txid)
}

func (r *recordingExchange) CancelOrderBatch(ctx context.Context, txids []string) (*models.CancelResult, error) {
	r.batchCancels = append(r.batchCancels, txids)
	return r.PaperExchange.CancelOrderBatch(ctx, txids)
}

func btcPreset() models.Preset {
	return models.Preset{
		Name: "BTC", Pair: "BTC", Direction: models.Buy, OrderCount: 3,
		ReferenceOffsetPct: 3.2, PriceStepPct: 10, VolumeStepPct: 0, AllocationPct: 10,
		Leverage: models.Leveraged(5), StopLossPct: pct(5),
	}
}

func newJob(t *testing.T, restingBuys int) (*Job, *recordingExchange) {
	t.Helper()
	ctx := context.Background()
	ex := &recordingExchange{PaperExchange: exchange.NewPaperExchange(models.PaperConfig{StartingBalance: 1000}, nil)}
	ex.SetPrice("BTC/USD", 103.2)

	for i := 0; i < restingBuys; i++ {
		_, err := ex.AddOrder(ctx, "BTC/USD", models.OrderRequest{OrderType: "limit", Type: "buy", Price: "50", Volume: "0.1"}, false)
		require.NoError(t, err)
	}
	_, err := ex.AddOrder(ctx, "BTC/USD", models.OrderRequest{OrderType: "limit", Type: "sell", Price: "200", Volume: "0.1"}, false)
	require.NoError(t, err)

	job := NewJob(ex, nil, submitter.New(ex, 15, nil), instruments.Default(), models.KrakenConfig{ClientOrderIDs: true}, nil)
	return job, ex
}

func TestBuildRequest(t *testing.T) {
	inst, err := instruments.Default().Lookup("BTC")
	require.NoError(t, err)

	p := btcPreset()
	p.Leverage = models.Leveraged(10)
	req := BuildRequest(p, inst, 103.2, 1000)

	assert.Equal(t, "BTC/USD", req.Pair)
	assert.Equal(t, 100.0, req.ReferencePrice)
	assert.Equal(t, models.Leveraged(5), req.Leverage, "clamped before the total is derived")
	assert.InDelta(t, 500, req.TotalNotional, 1e-9)

	p.Direction = models.Sell
	req = BuildRequest(p, inst, 100, 1000)
	assert.Equal(t, 103.2, req.ReferencePrice)
}

func TestRunReplacesBuyLadder(t *testing.T) {
	ctx := context.Background()
	job, ex := newJob(t, 2)

	report, err := job.Run(ctx, btcPreset(), false)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, report.TradeBalance)
	assert.Equal(t, 103.2, report.LastPrice)
	assert.Equal(t, 2, report.Cancelled)
	assert.Zero(t, ex.singleCancels)
	require.Len(t, ex.batchCancels, 1)
	assert.Len(t, ex.batchCancels[0], 2)

	assert.Equal(t, 100.0, report.Request.ReferencePrice)
	assert.InDelta(t, 500, report.Request.TotalNotional, 1e-9)
	require.Len(t, report.Entries, 3)
	require.NotNil(t, report.Submit)
	assert.Zero(t, report.Submit.Failed())

	open, err := ex.OpenOrders(ctx)
	require.NoError(t, err)
	var buys, sells int
	for _, o := range open {
		if o.Descr.Type == "buy" {
			buys++
			assert.NotEqual(t, "50", o.Descr.Price)
		} else {
			sells++
		}
	}
	assert.Equal(t, 3, buys)
	assert.Equal(t, 1, sells, "orders on the other side are left alone")
}

func TestRunCancelsSingleOrderDirectly(t *testing.T) {
	job, ex := newJob(t, 1)

	report, err := job.Run(context.Background(), btcPreset(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 1, ex.singleCancels)
	assert.Empty(t, ex.batchCancels)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	job, ex := newJob(t, 2)

	report, err := job.Run(ctx, btcPreset(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Entries, 3)
	assert.Nil(t, report.Submit)
	assert.Zero(t, report.Cancelled)

	open, err := ex.OpenOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestRunKeepsOldLadderWhenNewOneFails(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		preset func() models.Preset
	}{
		{"no orders", func() models.Preset { p := btcPreset(); p.OrderCount = 0; return p }},
		{"no allocation", func() models.Preset { p := btcPreset(); p.AllocationPct = 0; return p }},
		{"no price", func() models.Preset { p := btcPreset(); p.Pair = "ETH"; return p }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, ex := newJob(t, 2)

			_, err := job.Run(ctx, tt.preset(), false)
			require.Error(t, err)
			assert.Zero(t, ex.singleCancels)
			assert.Empty(t, ex.batchCancels)

			open, err := ex.OpenOrders(ctx)
			require.NoError(t, err)
			assert.Len(t, open, 3, "resting buys and the sell are untouched")
		})
	}
}

func TestRunValidateOnlyKeepsOldLadder(t *testing.T) {
	ctx := context.Background()
	_, ex := newJob(t, 2)
	job := NewJob(ex, nil, submitter.New(ex, 15, nil), instruments.Default(), models.KrakenConfig{ValidateOnly: true}, nil)

	report, err := job.Run(ctx, btcPreset(), false)
	require.NoError(t, err)
	require.NotNil(t, report.Submit)
	assert.True(t, report.Submit.Validated)
	assert.Zero(t, report.Cancelled)
	assert.Empty(t, ex.batchCancels)

	open, err := ex.OpenOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestRunErrors(t *testing.T) {
	job, _ := newJob(t, 0)

	p := btcPreset()
	p.Pair = "FOO"
	_, err := job.Run(context.Background(), p, true)
	assert.ErrorIs(t, err, instruments.ErrUnknownInstrument)

	p = btcPreset()
	p.Pair = "ETH"
	_, err = job.Run(context.Background(), p, true)
	var krakenErr *models.KrakenError
	assert.True(t, errors.As(err, &krakenErr), "no price for ETH on the paper exchange")
}

func TestFindPreset(t *testing.T) {
	repo, err := persistence.NewInMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	stored := btcPreset()
	stored.OrderCount = 7
	require.NoError(t, repo.SavePreset(stored))

	seeds := []models.Preset{btcPreset(), {Name: "XRP", Pair: "XRP/USD"}}

	p, err := FindPreset(repo, seeds, "btc")
	require.NoError(t, err)
	assert.Equal(t, 7, p.OrderCount, "the store wins over seeds")

	p, err = FindPreset(repo, seeds, "xrp")
	require.NoError(t, err)
	assert.Equal(t, "XRP/USD", p.Pair)

	_, err = FindPreset(nil, seeds, "doge")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestListPresetsMergesSeeds(t *testing.T) {
	repo, err := persistence.NewInMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	stored := btcPreset()
	stored.OrderCount = 7
	require.NoError(t, repo.SavePreset(stored))

	presets, err := ListPresets(repo, []models.Preset{{Name: "XRP", Pair: "XRP/USD"}, btcPreset()})
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, "BTC", presets[0].Name)
	assert.Equal(t, 7, presets[0].OrderCount)
	assert.Equal(t, "XRP", presets[1].Name)
}
