package statemanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/instruments"
	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
)

// mockStateRepository is a mock implementation of the StateRepository interface for testing.
type mockStateRepository struct {
	sync.Mutex
	savedState   *models.SessionState
	saveCount    int
	saveError    error
	saveDoneChan chan bool // Channel to signal when SaveState is done
}

func newMockStateRepository() *mockStateRepository {
	return &mockStateRepository{
		saveDoneChan: make(chan bool, 16),
	}
}

func (m *mockStateRepository) SaveState(state *models.SessionState) error {
	m.Lock()
	defer m.Unlock()

	m.saveCount++
	m.savedState = state.Draft()

	// Signal that save is complete
	m.saveDoneChan <- true

	return m.saveError
}

func (m *mockStateRepository) LoadState() (*models.SessionState, error) {
	return nil, nil
}

func (m *mockStateRepository) Close() error {
	return nil
}

func (m *mockStateRepository) getSavedState() *models.SessionState {
	m.Lock()
	defer m.Unlock()
	return m.savedState
}

func (m *mockStateRepository) waitForSave(t *testing.T) {
	t.Helper()
	select {
	case <-m.saveDoneChan:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state to be saved")
	}
}

func pct(v float64) *float64 { return &v }

func btcRequest() models.LadderRequest {
	return models.LadderRequest{
		Pair: "BTC/USD", ReferencePrice: 100, Direction: models.Buy, OrderCount: 3,
		PriceStepPct: 10, VolumeStepPct: 0, TotalNotional: 300, Leverage: models.Leveraged(3),
		StopLossPct: pct(5),
	}
}

func newStarted(t *testing.T, initial *models.SessionState) (*StateManager, *mockStateRepository) {
	t.Helper()
	repo := newMockStateRepository()
	sm := NewStateManager(initial, repo, instruments.Default(), zap.NewNop())
	sm.Start()
	t.Cleanup(sm.Stop)
	return sm, repo
}

// TestNewStateManager verifies that the StateManager is initialized correctly.
func TestNewStateManager(t *testing.T) {
	sm := NewStateManager(&models.SessionState{SessionID: "s-1", Request: btcRequest()}, nil, instruments.Default(), nil)
	require.NotNil(t, sm)

	snapshot := sm.GetStateSnapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "s-1", snapshot.SessionID)
	assert.Len(t, snapshot.Entries, 3, "a restored draft is recomputed on start")
	require.NotNil(t, snapshot.Summary)
	assert.InDelta(t, 300, snapshot.Summary.TotalNotional, 1e-9)

	assert.NotNil(t, sm.eventChannel)
	assert.NotNil(t, sm.persistenceChan)
	assert.NotNil(t, sm.stopChan)
}

func TestNewSessionGetsID(t *testing.T) {
	sm := NewStateManager(nil, nil, instruments.Default(), nil)
	snapshot := sm.GetStateSnapshot()
	assert.NotEmpty(t, snapshot.SessionID)
	assert.NotEmpty(t, snapshot.LastError, "an empty request has no result")
	assert.Empty(t, snapshot.Entries)
}

func TestParamsChangedRecomputesEverything(t *testing.T) {
	sm, repo := newStarted(t, nil)
	ctx := context.Background()

	_, err := sm.Apply(ctx, BalanceEvent, BalanceEventData{Balance: 100})
	require.NoError(t, err)
	repo.waitForSave(t)

	req := btcRequest()
	req.Leverage = models.Leveraged(20)
	state, err := sm.Apply(ctx, ParamsChangedEvent, ParamsChangedEventData{Request: req})
	require.NoError(t, err)
	repo.waitForSave(t)

	assert.Empty(t, state.LastError)
	assert.Equal(t, models.Leveraged(5), state.Request.Leverage, "leverage is clamped to the instrument maximum")
	require.Len(t, state.Entries, 3)
	assert.InDelta(t, 90.909090909, state.Entries[1].Price, 1e-6)
	require.NotNil(t, state.Summary)
	assert.True(t, state.Summary.LeverageUsed.Valid)
	assert.InDelta(t, 3.0, state.Summary.LeverageUsed.Value, 1e-9)
	assert.Equal(t, 2, state.Version)

	saved := repo.getSavedState()
	require.NotNil(t, saved)
	assert.Equal(t, req.ReferencePrice, saved.Request.ReferencePrice)
	assert.Empty(t, saved.Entries, "only the draft is persisted")
}

func TestMarketPriceFillsDistances(t *testing.T) {
	sm, _ := newStarted(t, &models.SessionState{Request: btcRequest()})
	ctx := context.Background()

	state, err := sm.Apply(ctx, MarketPriceEvent, MarketPriceEventData{Pair: "ETH/USD", Price: 3000})
	require.NoError(t, err)
	assert.Zero(t, state.MarketPrice, "price for another pair is ignored")
	assert.False(t, state.Entries[0].DistanceToReferencePct.Valid)

	state, err = sm.Apply(ctx, MarketPriceEvent, MarketPriceEventData{Pair: "BTC/USD", Price: 110})
	require.NoError(t, err)
	assert.Equal(t, 110.0, state.MarketPrice)
	require.True(t, state.Entries[0].DistanceToReferencePct.Valid)
	assert.InDelta(t, (100.0-110)/110*100, state.Entries[0].DistanceToReferencePct.Value, 1e-9)
	assert.True(t, state.Summary.AverageDistancePct.Valid)
}

func TestLossPreviewEvent(t *testing.T) {
	sm, _ := newStarted(t, &models.SessionState{Request: btcRequest(), AccountBalance: 1000})
	ctx := context.Background()

	state, err := sm.Apply(ctx, LossPreviewEvent, LossPreviewEventData{HypotheticalPrice: 80, StopLossEnabled: true})
	require.NoError(t, err)
	require.NotNil(t, state.Preview)

	entries, err := ladder.Generate(btcRequest(), instruments.Default().Default())
	require.NoError(t, err)
	want := ladder.PreviewLoss(entries, 80, models.Buy, true, 1000)
	assert.InDelta(t, want.RealizedLoss, state.Preview.RealizedLoss, 1e-9)
	assert.InDelta(t, want.UnrealizedLoss, state.Preview.UnrealizedLoss, 1e-9)

	state, err = sm.Apply(ctx, LossPreviewEvent, LossPreviewEventData{})
	require.NoError(t, err)
	assert.Nil(t, state.Preview, "zero turns the preview off")
}

func TestSessionUpdateIsOneRecomputation(t *testing.T) {
	sm, _ := newStarted(t, nil)
	before := sm.GetStateSnapshot()

	req := btcRequest()
	balance, market, hypothetical, slOn := 100.0, 110.0, 80.0, true
	state, err := sm.Apply(context.Background(), SessionUpdateEvent, SessionUpdateEventData{
		Request:           &req,
		MarketPrice:       &market,
		AccountBalance:    &balance,
		HypotheticalPrice: &hypothetical,
		StopLossEnabled:   &slOn,
	})
	require.NoError(t, err)

	assert.Equal(t, before.Version+1, state.Version)
	assert.Empty(t, state.LastError)
	require.Len(t, state.Entries, 3)
	assert.Equal(t, 110.0, state.MarketPrice)
	require.NotNil(t, state.Summary)
	assert.InDelta(t, 3.0, state.Summary.LeverageUsed.Value, 1e-9)
	require.NotNil(t, state.Preview)
	assert.Equal(t, 80.0, state.Preview.HypotheticalPrice)

	state, err = sm.Apply(context.Background(), SessionUpdateEvent, SessionUpdateEventData{MarketPrice: &hypothetical})
	require.NoError(t, err)
	assert.Equal(t, before.Version+2, state.Version)
	assert.Equal(t, 80.0, state.MarketPrice)
	assert.Equal(t, 100.0, state.AccountBalance, "absent fields keep their value")
	assert.True(t, state.StopLossEnabled)
}

func TestInvalidParamsClearPreviousResult(t *testing.T) {
	sm, _ := newStarted(t, &models.SessionState{Request: btcRequest()})

	req := btcRequest()
	req.TotalNotional = 0
	state, err := sm.Apply(context.Background(), ParamsChangedEvent, ParamsChangedEventData{Request: req})
	require.NoError(t, err)
	assert.Empty(t, state.Entries)
	assert.Nil(t, state.Summary)
	assert.Contains(t, state.LastError, "total_notional")

	req.Pair = "FOO/USD"
	req.TotalNotional = 300
	state, err = sm.Apply(context.Background(), ParamsChangedEvent, ParamsChangedEventData{Request: req})
	require.NoError(t, err)
	assert.Contains(t, state.LastError, "unknown instrument")
}

// TestStateResetEvent tests the handling of a StateResetEvent.
func TestStateResetEvent(t *testing.T) {
	sm, repo := newStarted(t, &models.SessionState{SessionID: "initial"})

	newState := &models.SessionState{
		SessionID:      "reset",
		Version:        7,
		Request:        btcRequest(),
		AccountBalance: 50,
	}
	sm.DispatchEvent(NormalizedEvent{Type: StateResetEvent, Timestamp: time.Now(), Data: newState})
	repo.waitForSave(t)

	snapshot := sm.GetStateSnapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "reset", snapshot.SessionID)
	assert.Equal(t, 8, snapshot.Version)
	assert.Equal(t, 50.0, snapshot.AccountBalance)
	assert.Len(t, snapshot.Entries, 3)

	saved := repo.getSavedState()
	require.NotNil(t, saved)
	assert.Equal(t, "reset", saved.SessionID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	sm := NewStateManager(&models.SessionState{Request: btcRequest()}, nil, instruments.Default(), nil)

	a := sm.GetStateSnapshot()
	a.Entries[0].Price = -1
	*a.Request.StopLossPct = 99
	a.Summary.TotalNotional = -1

	b := sm.GetStateSnapshot()
	assert.Equal(t, 100.0, b.Entries[0].Price)
	assert.Equal(t, 5.0, *b.Request.StopLossPct)
	assert.InDelta(t, 300, b.Summary.TotalNotional, 1e-9)
}

func TestApplyAfterStop(t *testing.T) {
	sm := NewStateManager(nil, nil, instruments.Default(), nil)
	sm.Start()
	sm.Stop()
	sm.Stop()

	_, err := sm.Apply(context.Background(), BalanceEvent, BalanceEventData{Balance: 1})
	assert.ErrorIs(t, err, ErrStopped)
}
