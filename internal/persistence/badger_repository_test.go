package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kraken-ladder-go/internal/models"
)

func newRepo(t *testing.T) *BadgerRepository {
	t.Helper()
	repo, err := NewInMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSessionRoundTripKeepsOnlyDraft(t *testing.T) {
	repo := newRepo(t)

	loaded, err := repo.LoadState()
	require.NoError(t, err)
	assert.Nil(t, loaded, "empty database has no session")

	state := &models.SessionState{
		SessionID: "s-1",
		Version:   3,
		Request: models.LadderRequest{
			Pair: "ETH/USD", ReferencePrice: 3000, Direction: models.Sell, OrderCount: 4,
			PriceStepPct: 1, VolumeStepPct: 2, TotalNotional: 400, Leverage: models.Leveraged(3),
		},
		MarketPrice:    2990,
		AccountBalance: 800,
		Entries:        []models.LadderEntry{{Index: 0, Price: 3000}},
		Summary:        &models.LadderSummary{TotalNotional: 400},
		LastUpdateTime: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveState(state))

	loaded, err = repo.LoadState()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "s-1", loaded.SessionID)
	assert.Equal(t, state.Request, loaded.Request)
	assert.Equal(t, 2990.0, loaded.MarketPrice)
	assert.Empty(t, loaded.Entries, "computed rungs are rebuilt, not stored")
	assert.Nil(t, loaded.Summary)
	assert.True(t, state.LastUpdateTime.Equal(loaded.LastUpdateTime))
}

func TestPresets(t *testing.T) {
	repo := newRepo(t)
	sl := 5.0

	require.NoError(t, repo.SavePreset(models.Preset{Name: "xrp", Pair: "XRP/USD", Direction: models.Buy, OrderCount: 15, AllocationPct: 100}))
	require.NoError(t, repo.SavePreset(models.Preset{Name: "BTC", Pair: "BTC/USD", Direction: models.Buy, OrderCount: 15, AllocationPct: 100, Leverage: models.Leveraged(5), StopLossPct: &sl}))
	assert.Error(t, repo.SavePreset(models.Preset{Name: " "}))

	list, err := repo.ListPresets()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BTC", list[0].Name)
	assert.Equal(t, "xrp", list[1].Name)

	btc, err := repo.LoadPreset("btc")
	require.NoError(t, err)
	require.NotNil(t, btc)
	assert.Equal(t, models.Leveraged(5), btc.Leverage)
	require.NotNil(t, btc.StopLossPct)
	assert.Equal(t, 5.0, *btc.StopLossPct)

	missing, err := repo.LoadPreset("doge")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.DeletePreset("XRP"))
	assert.ErrorIs(t, repo.DeletePreset("XRP"), ErrPresetNotFound)

	list, err = repo.ListPresets()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNonceHighWaterMark(t *testing.T) {
	repo := newRepo(t)

	n, err := repo.LoadNonce()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.SaveNonce(1_700_000_000_000_000))
	require.NoError(t, repo.SaveNonce(1_600_000_000_000_000))

	n, err = repo.LoadNonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000_000_000), n, "a lower nonce never replaces a higher one")
}
