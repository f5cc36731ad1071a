package handlers

import (
	"net/http"

	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/statemanager"
)

// SessionHandler exposes the server-side editing session.
//
// GET /api/session
// PUT /api/session
type SessionHandler struct {
	sm *statemanager.StateManager
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sm *statemanager.StateManager) *SessionHandler {
	return &SessionHandler{sm: sm}
}

// SessionUpdate changes any subset of the session inputs. Absent fields keep
// their current value.
type SessionUpdate struct {
	Request           *models.LadderRequest `json:"request,omitempty"`
	MarketPrice       *float64              `json:"market_price,omitempty"`
	AccountBalance    *float64              `json:"account_balance,omitempty"`
	HypotheticalPrice *float64              `json:"hypothetical_price,omitempty"`
	StopLossEnabled   *bool                 `json:"stop_loss_enabled,omitempty"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sm.GetStateSnapshot())
}

// Put applies the update as one event and returns the recomputed session.
// Validation problems are reported in last_error, not as a 400.
func (h *SessionHandler) Put(w http.ResponseWriter, r *http.Request) {
	var u SessionUpdate
	if err := decodeBody(r, &u); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.sm.Apply(r.Context(), statemanager.SessionUpdateEvent, statemanager.SessionUpdateEventData{
		Request:           u.Request,
		MarketPrice:       u.MarketPrice,
		AccountBalance:    u.AccountBalance,
		HypotheticalPrice: u.HypotheticalPrice,
		StopLossEnabled:   u.StopLossEnabled,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
