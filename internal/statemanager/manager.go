package statemanager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/metrics"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
)

// ErrStopped is returned by Apply after Stop.
var ErrStopped = errors.New("state manager stopped")

// EventType defines the type of a normalized event
type EventType int

const (
	ParamsChangedEvent EventType = iota
	MarketPriceEvent
	BalanceEvent
	LossPreviewEvent
	StateResetEvent
	SessionUpdateEvent
)

func (t EventType) String() string {
	switch t {
	case ParamsChangedEvent:
		return "params_changed"
	case MarketPriceEvent:
		return "market_price"
	case BalanceEvent:
		return "balance"
	case LossPreviewEvent:
		return "loss_preview"
	case StateResetEvent:
		return "state_reset"
	case SessionUpdateEvent:
		return "session_update"
	}
	return "unknown"
}

// NormalizedEvent is a standardized internal representation of an event
type NormalizedEvent struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}

	reply chan *models.SessionState
}

// ParamsChangedEventData replaces the ladder parameters.
type ParamsChangedEventData struct {
	Request models.LadderRequest
}

// MarketPriceEventData updates the market price. An empty Pair applies to any pair.
type MarketPriceEventData struct {
	Pair  string
	Price float64
}

// BalanceEventData updates the account balance.
type BalanceEventData struct {
	Balance float64
}

// LossPreviewEventData moves the hypothetical price slider. Zero turns the preview off.
type LossPreviewEventData struct {
	HypotheticalPrice float64
	StopLossEnabled   bool
}

// SessionUpdateEventData changes any subset of the session inputs in one
// recomputation. Nil fields keep their current value.
type SessionUpdateEventData struct {
	Request           *models.LadderRequest
	MarketPrice       *float64
	AccountBalance    *float64
	HypotheticalPrice *float64
	StopLossEnabled   *bool
}

// InstrumentResolver resolves a pair to its instrument.
type InstrumentResolver interface {
	Lookup(symbol string) (models.Instrument, error)
	Default() models.Instrument
}

// StateManager is responsible for all session mutations and persistence.
// Events are processed serially and every event recomputes the whole result.
type StateManager struct {
	mu              sync.RWMutex
	state           *models.SessionState
	repo            persistence.StateRepository
	instruments     InstrumentResolver
	eventChannel    chan NormalizedEvent
	persistenceChan chan *models.SessionState
	stopChan        chan struct{}
	stopOnce        sync.Once
	logger          *zap.Logger
}

// NewStateManager creates a new StateManager. A nil initial state starts an empty
// session on the default instrument.
func NewStateManager(initialState *models.SessionState, repo persistence.StateRepository, instruments InstrumentResolver, logger *zap.Logger) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initialState == nil {
		initialState = &models.SessionState{}
	}
	if initialState.SessionID == "" {
		initialState.SessionID = uuid.NewString()
	}

	sm := &StateManager{
		repo:            repo,
		instruments:     instruments,
		eventChannel:    make(chan NormalizedEvent, 1024), // Buffered channel
		persistenceChan: make(chan *models.SessionState, 128),
		stopChan:        make(chan struct{}),
		logger:          logger,
	}
	// A restored draft carries no computed fields; rebuild them.
	sm.state = sm.recompute(initialState)
	return sm
}

// Start begins the state manager's event processing and persistence loops.
func (sm *StateManager) Start() {
	go sm.eventLoop()
	go sm.persistenceLoop()
	sm.logger.Sugar().Info("StateManager started.")
}

// Stop gracefully shuts down the StateManager.
func (sm *StateManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
		sm.logger.Sugar().Info("StateManager stopped.")
	})
}

// DispatchEvent sends an event to the StateManager for processing.
func (sm *StateManager) DispatchEvent(event NormalizedEvent) {
	select {
	case sm.eventChannel <- event:
	case <-sm.stopChan:
	}
}

// Apply dispatches an event and waits for the recomputed session.
func (sm *StateManager) Apply(ctx context.Context, eventType EventType, data interface{}) (*models.SessionState, error) {
	reply := make(chan *models.SessionState, 1)
	event := NormalizedEvent{Type: eventType, Timestamp: time.Now(), Data: data, reply: reply}

	select {
	case sm.eventChannel <- event:
	case <-sm.stopChan:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-sm.stopChan:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetStateSnapshot returns a deep copy of the current state for safe, concurrent reading.
func (sm *StateManager) GetStateSnapshot() *models.SessionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return deepCopy(sm.state)
}

// deepCopy creates a deep copy of the SessionState to prevent data races.
func deepCopy(s *models.SessionState) *models.SessionState {
	if s == nil {
		return nil
	}

	stateCopy := *s

	if s.Entries != nil {
		stateCopy.Entries = make([]models.LadderEntry, len(s.Entries))
		copy(stateCopy.Entries, s.Entries)
	}
	if s.Summary != nil {
		summary := *s.Summary
		stateCopy.Summary = &summary
	}
	if s.Preview != nil {
		preview := *s.Preview
		stateCopy.Preview = &preview
	}
	if p := s.Request.StopLossPct; p != nil {
		v := *p
		stateCopy.Request.StopLossPct = &v
	}
	if p := s.Request.TakeProfitPct; p != nil {
		v := *p
		stateCopy.Request.TakeProfitPct = &v
	}
	return &stateCopy
}

// eventLoop is the core processing loop that handles all incoming events serially.
func (sm *StateManager) eventLoop() {
	for {
		select {
		case event := <-sm.eventChannel:
			sm.processEvent(event)
		case <-sm.stopChan:
			return
		}
	}
}

// persistenceLoop handles the asynchronous saving of state snapshots.
func (sm *StateManager) persistenceLoop() {
	for {
		select {
		case stateToSave := <-sm.persistenceChan:
			if sm.repo != nil {
				if err := sm.repo.SaveState(stateToSave); err != nil {
					sm.logger.Sugar().Errorf("Failed to save session: %v", err)
				}
			}
		case <-sm.stopChan:
			return
		}
	}
}

// processEvent builds the next state from the current one and swaps it in.
func (sm *StateManager) processEvent(event NormalizedEvent) {
	sm.mu.RLock()
	next := deepCopy(sm.state)
	sm.mu.RUnlock()

	switch event.Type {
	case ParamsChangedEvent:
		if data, ok := event.Data.(ParamsChangedEventData); ok {
			next.Request = data.Request
		} else {
			sm.logger.Sugar().Warnf("Received ParamsChangedEvent with unexpected data type: %T", event.Data)
		}
	case MarketPriceEvent:
		if data, ok := event.Data.(MarketPriceEventData); ok {
			if data.Pair == "" || data.Pair == next.Request.Pair {
				next.MarketPrice = data.Price
			}
		} else {
			sm.logger.Sugar().Warnf("Received MarketPriceEvent with unexpected data type: %T", event.Data)
		}
	case BalanceEvent:
		if data, ok := event.Data.(BalanceEventData); ok {
			next.AccountBalance = data.Balance
		} else {
			sm.logger.Sugar().Warnf("Received BalanceEvent with unexpected data type: %T", event.Data)
		}
	case LossPreviewEvent:
		if data, ok := event.Data.(LossPreviewEventData); ok {
			next.HypotheticalPrice = data.HypotheticalPrice
			next.StopLossEnabled = data.StopLossEnabled
		} else {
			sm.logger.Sugar().Warnf("Received LossPreviewEvent with unexpected data type: %T", event.Data)
		}
	case SessionUpdateEvent:
		if data, ok := event.Data.(SessionUpdateEventData); ok {
			if data.Request != nil {
				next.Request = *data.Request
			}
			if data.MarketPrice != nil {
				next.MarketPrice = *data.MarketPrice
			}
			if data.AccountBalance != nil {
				next.AccountBalance = *data.AccountBalance
			}
			if data.HypotheticalPrice != nil {
				next.HypotheticalPrice = *data.HypotheticalPrice
			}
			if data.StopLossEnabled != nil {
				next.StopLossEnabled = *data.StopLossEnabled
			}
		} else {
			sm.logger.Sugar().Warnf("Received SessionUpdateEvent with unexpected data type: %T", event.Data)
		}
	case StateResetEvent:
		if newState, ok := event.Data.(*models.SessionState); ok && newState != nil {
			next = deepCopy(newState)
			if next.SessionID == "" {
				next.SessionID = uuid.NewString()
			}
			sm.logger.Sugar().Info("Session has been reset.")
		} else {
			sm.logger.Sugar().Warnf("Received StateResetEvent with unexpected data type: %T", event.Data)
		}
	}

	next.Version++
	next.LastUpdateTime = time.Now()
	next = sm.recompute(next)
	metrics.SessionRecomputes.WithLabelValues(event.Type.String()).Inc()

	sm.mu.Lock()
	sm.state = next
	sm.mu.Unlock()

	snapshot := deepCopy(next)
	if event.reply != nil {
		event.reply <- snapshot
	}

	// After processing, send a copy of the new state to the persistence channel.
	select {
	case sm.persistenceChan <- deepCopy(next):
	default:
		sm.logger.Sugar().Warn("Persistence queue is full, skipping session snapshot.")
	}
}

// recompute derives entries, summary and loss preview from the inputs of s.
// Inputs that cannot produce a ladder leave the result empty with LastError set.
func (sm *StateManager) recompute(s *models.SessionState) *models.SessionState {
	s.Entries = nil
	s.Summary = nil
	s.Preview = nil
	s.LastError = ""

	if sm.instruments == nil {
		s.LastError = "no instrument catalog"
		return s
	}
	inst := sm.instruments.Default()
	if s.Request.Pair != "" {
		var err error
		if inst, err = sm.instruments.Lookup(s.Request.Pair); err != nil {
			s.LastError = err.Error()
			return s
		}
	}
	s.Request = ladder.Normalize(s.Request, inst)

	entries, err := ladder.Generate(s.Request, inst)
	if err != nil {
		s.LastError = err.Error()
		return s
	}
	entries = ladder.ApplyMarketPrice(entries, s.MarketPrice)

	summary := ladder.Summarize(entries, s.MarketPrice, s.AccountBalance, s.Request.Direction, s.Request.Leverage)
	s.Entries = entries
	s.Summary = &summary

	if s.HypotheticalPrice > 0 {
		preview := ladder.PreviewLoss(entries, s.HypotheticalPrice, s.Request.Direction, s.StopLossEnabled, s.AccountBalance)
		s.Preview = &preview
	}
	return s
}
