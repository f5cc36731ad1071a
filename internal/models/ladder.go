package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Side is the direction of a ladder and of every order in it.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Instrument describes a tradable pair. Loaded once at startup, never mutated.
type Instrument struct {
	Pair          string `json:"pair" yaml:"pair"`                     // Kraken pair, e.g. "BTC/USD"
	Symbol        string `json:"symbol" yaml:"symbol"`                 // base ticker, e.g. "BTC"
	DisplayName   string `json:"name" yaml:"name"`                     // e.g. "Bitcoin"
	PriceDecimals int    `json:"price_decimals" yaml:"price_decimals"` // price rounding at the presentation boundary
	MaxLeverage   int    `json:"max_leverage" yaml:"max_leverage"`     // user leverage is clamped to this
	Default       bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Leverage is either spot (no margin) or a margin multiplier n >= 1.
// The zero value is spot.
type Leverage struct {
	margin bool
	n      int
}

// Spot returns the no-margin leverage.
func Spot() Leverage { return Leverage{} }

// Leveraged returns a margin leverage of n. Values below 1 are raised to 1.
func Leveraged(n int) Leverage {
	if n < 1 {
		n = 1
	}
	return Leverage{margin: true, n: n}
}

// IsSpot reports whether no margin is used.
func (l Leverage) IsSpot() bool { return !l.margin }

// Multiplier is 1 for spot and n for Leveraged(n).
func (l Leverage) Multiplier() int {
	if !l.margin {
		return 1
	}
	return l.n
}

// Clamp limits a margin leverage to max. Spot is returned unchanged.
func (l Leverage) Clamp(max int) Leverage {
	if !l.margin {
		return l
	}
	if max < 1 {
		max = 1
	}
	if l.n > max {
		return Leveraged(max)
	}
	return l
}

func (l Leverage) String() string {
	if !l.margin {
		return "spot"
	}
	return strconv.Itoa(l.n) + "x"
}

// ParseLeverage accepts "spot", "none", "" and "5", "5x".
func ParseLeverage(s string) (Leverage, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "spot", "none":
		return Spot(), nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(v, "x"))
	if err != nil || n < 1 {
		return Leverage{}, fmt.Errorf("invalid leverage %q", s)
	}
	return Leveraged(n), nil
}

func (l Leverage) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Leverage) UnmarshalText(text []byte) error {
	parsed, err := ParseLeverage(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON writes spot as "spot" and margin leverage as a bare number.
func (l Leverage) MarshalJSON() ([]byte, error) {
	if !l.margin {
		return []byte(`"spot"`), nil
	}
	return []byte(strconv.Itoa(l.n)), nil
}

// UnmarshalJSON accepts a number, a numeric string or "spot".
func (l *Leverage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Spot()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 1 {
			*l = Spot()
			return nil
		}
		*l = Leveraged(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("leverage must be a number or a string: %w", err)
	}
	return l.UnmarshalText([]byte(s))
}

// Optional is a number that may be "not applicable".
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Optional { return Optional{Value: v, Valid: true} }

// None is the "not applicable" value.
func None() Optional { return Optional{} }

func (o Optional) String() string {
	if !o.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// LadderRequest is the user's input for one ladder.
type LadderRequest struct {
	Pair           string   `json:"pair" yaml:"pair"`
	ReferencePrice float64  `json:"reference_price" yaml:"reference_price"` // anchor price of rung 0
	Direction      Side     `json:"direction" yaml:"direction"`
	OrderCount     int      `json:"order_count" yaml:"order_count"`
	PriceStepPct   float64  `json:"price_step_pct" yaml:"price_step_pct"`   // geometric spacing between rung prices
	VolumeStepPct  float64  `json:"volume_step_pct" yaml:"volume_step_pct"` // geometric spacing between rung notionals
	TotalNotional  float64  `json:"total_notional" yaml:"total_notional"`
	Leverage       Leverage `json:"leverage" yaml:"leverage"`
	StopLossPct    *float64 `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct  *float64 `json:"take_profit_pct,omitempty" yaml:"take_profit_pct,omitempty"`
	ReduceOnly     bool     `json:"reduce_only,omitempty" yaml:"reduce_only,omitempty"`
}

// LadderEntry is one rung. Index 0 is nearest to the reference price.
type LadderEntry struct {
	Index                  int      `json:"index"`
	Price                  float64  `json:"price"`         // full precision
	DisplayPrice           string   `json:"display_price"` // rounded to the pair's price decimals
	Volume                 float64  `json:"volume"`
	Notional               float64  `json:"notional"`
	DistanceToReferencePct Optional `json:"distance_to_market_pct"`
	StopLossPrice          Optional `json:"stop_loss_price"`
	TakeProfitPrice        Optional `json:"take_profit_price"`
}

// LadderSummary aggregates a ladder.
type LadderSummary struct {
	TotalNotional            float64  `json:"total_notional"`
	TotalVolume              float64  `json:"total_volume"`
	AveragePrice             Optional `json:"average_price"`
	AverageDistancePct       Optional `json:"average_distance_to_market_pct"`
	PriceRangePct            float64  `json:"price_range_pct"` // signed: negative for buy ladders
	LeverageUsed             Optional `json:"leverage_used"`
	LiquidationPriceEstimate Optional `json:"liquidation_price_estimate"` // balance-as-margin heuristic, not an exchange figure
}

// LossPreview splits the loss of a ladder at a hypothetical price.
type LossPreview struct {
	HypotheticalPrice  float64 `json:"hypothetical_price"`
	RealizedLoss       float64 `json:"realized_loss"`
	UnrealizedLoss     float64 `json:"unrealized_loss"`
	OpenPositionSize   float64 `json:"open_position_size"`
	ClosedPositionSize float64 `json:"closed_position_size"`
	MarginCall         bool    `json:"margin_call"` // unrealized loss exceeded the balance
}
