package models

import "time"

// SessionState is the caller-side view of the ladder being edited: the last
// parameters plus the result computed from them. Every change replaces the
// computed part as a whole.
type SessionState struct {
	SessionID         string         `json:"session_id"`
	Version           int            `json:"version"`            // bumped on every recomputation
	Request           LadderRequest  `json:"request"`            // last parameters
	MarketPrice       float64        `json:"market_price"`       // display-only input
	AccountBalance    float64        `json:"account_balance"`    // input to liquidation and loss preview
	HypotheticalPrice float64        `json:"hypothetical_price"` // loss preview slider, 0 = off
	StopLossEnabled   bool           `json:"stop_loss_enabled"`
	Entries           []LadderEntry  `json:"entries,omitempty"`
	Summary           *LadderSummary `json:"summary,omitempty"`
	Preview           *LossPreview   `json:"preview,omitempty"`
	LastError         string         `json:"last_error,omitempty"` // why there is no result, e.g. incomplete input
	LastUpdateTime    time.Time      `json:"last_update_time"`
}

// Draft is the persisted part of a session. Computed fields are rebuilt on load.
func (s *SessionState) Draft() *SessionState {
	return &SessionState{
		SessionID:         s.SessionID,
		Version:           s.Version,
		Request:           s.Request,
		MarketPrice:       s.MarketPrice,
		AccountBalance:    s.AccountBalance,
		HypotheticalPrice: s.HypotheticalPrice,
		StopLossEnabled:   s.StopLossEnabled,
		LastUpdateTime:    s.LastUpdateTime,
	}
}

// Preset is a named parameter set for the daily ladder job. The reference price
// and total are derived at run time from the market price and the trade balance.
type Preset struct {
	Name               string   `json:"name" yaml:"name"`
	Pair               string   `json:"pair" yaml:"pair"`
	Direction          Side     `json:"direction" yaml:"direction"`
	OrderCount         int      `json:"order_count" yaml:"order_count"`
	ReferenceOffsetPct float64  `json:"reference_offset_pct" yaml:"reference_offset_pct"` // distance of rung 0 from the market price
	PriceStepPct       float64  `json:"price_step_pct" yaml:"price_step_pct"`
	VolumeStepPct      float64  `json:"volume_step_pct" yaml:"volume_step_pct"`
	AllocationPct      float64  `json:"allocation_pct" yaml:"allocation_pct"` // share of trade balance x leverage
	Leverage           Leverage `json:"leverage" yaml:"leverage"`
	StopLossPct        *float64 `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct      *float64 `json:"take_profit_pct,omitempty" yaml:"take_profit_pct,omitempty"`
}

// RungResult is the submission outcome of one rung.
type RungResult struct {
	Rung    int    `json:"rung"`
	Batch   int    `json:"batch"`
	ClOrdID string `json:"cl_ord_id,omitempty"`
	TxID    string `json:"txid,omitempty"`
	Descr   string `json:"descr,omitempty"`
	Close   string `json:"close,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the rung was accepted.
func (r RungResult) OK() bool { return r.Error == "" }

// SubmitReport is the outcome of one ladder submission, ordered by rung.
type SubmitReport struct {
	LadderID  string       `json:"ladder_id"`
	Pair      string       `json:"pair"`
	Validated bool         `json:"validated"` // validate-only run, nothing was placed
	Rungs     []RungResult `json:"rungs"`
	Submitted time.Time    `json:"submitted"`
}

// Failed counts rejected rungs.
func (r *SubmitReport) Failed() int {
	n := 0
	for _, rung := range r.Rungs {
		if !rung.OK() {
			n++
		}
	}
	return n
}
