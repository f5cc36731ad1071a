package handlers

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
)

// flexFloat accepts a JSON number, a numeric string or an empty string.
// Set is false when the field was absent, null or blank.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	f.Value, f.Set = v, true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// LadderForm is the control panel's ladder form. Field names follow the form
// inputs and values may arrive as strings.
type LadderForm struct {
	Asset          string          `json:"asset"`
	Pair           string          `json:"pair"`
	Price          flexFloat       `json:"price"`
	Offset         flexFloat       `json:"offset"` // start price distance from market_price, used when price is blank
	Direction      string          `json:"direction"`
	NumOrders      flexFloat       `json:"numOrders"`
	Distance       flexFloat       `json:"distance"`
	VolumeDistance flexFloat       `json:"volume_distance"`
	Total          flexFloat       `json:"total"` // defaults to balance x leverage
	StopLoss       flexFloat       `json:"stop_loss"`
	TakeProfit     flexFloat       `json:"take_profit"`
	Leverage       models.Leverage `json:"leverage"`
	ReduceOnly     bool            `json:"reduce_only"`

	MarketPrice       flexFloat `json:"market_price"`
	Balance           flexFloat `json:"balance"`
	HypotheticalPrice flexFloat `json:"hypothetical_price"`
	StopLossEnabled   bool      `json:"stop_loss_enabled"`

	Validate bool `json:"validate"`
}

// Request resolves the instrument and builds a normalized ladder request.
// Missing numbers are left at zero for the generator to report.
func (f LadderForm) Request(catalog Catalog) (models.LadderRequest, models.Instrument, error) {
	symbol := strings.TrimSpace(f.Pair)
	if symbol == "" {
		symbol = strings.TrimSpace(f.Asset)
	}
	if symbol == "" {
		return models.LadderRequest{}, models.Instrument{}, badRequest("asset is required")
	}
	inst, err := catalog.Lookup(symbol)
	if err != nil {
		return models.LadderRequest{}, models.Instrument{}, err
	}

	if f.NumOrders.Set {
		n := f.NumOrders.Value
		if n != math.Trunc(n) {
			return models.LadderRequest{}, inst, badRequest("numOrders must be a whole number")
		}
		if n < 0 || n > ladder.MaxOrderCount {
			return models.LadderRequest{}, inst, badRequest(fmt.Sprintf("numOrders must be between 1 and %d", ladder.MaxOrderCount))
		}
	}

	req := models.LadderRequest{
		Pair:           inst.Pair,
		ReferencePrice: f.Price.Value,
		OrderCount:     int(f.NumOrders.Value),
		PriceStepPct:   f.Distance.Value,
		VolumeStepPct:  f.VolumeDistance.Value,
		TotalNotional:  f.Total.Value,
		Leverage:       f.Leverage,
		StopLossPct:    f.StopLoss.ptr(),
		TakeProfitPct:  f.TakeProfit.ptr(),
		ReduceOnly:     f.ReduceOnly,
	}
	if f.Direction != "" {
		side, err := models.ParseSide(f.Direction)
		if err != nil {
			return models.LadderRequest{}, inst, badRequest(err.Error())
		}
		req.Direction = side
	}
	req = ladder.Normalize(req, inst)

	if !f.Price.Set && f.Offset.Set && f.MarketPrice.Value > 0 && req.Direction != "" {
		req.ReferencePrice = ladder.OffsetReference(f.MarketPrice.Value, f.Offset.Value, req.Direction, inst.PriceDecimals)
	}
	if !f.Total.Set && f.Balance.Value > 0 {
		req.TotalNotional = ladder.DefaultTotal(f.Balance.Value, req.Leverage)
	}
	return req, inst, nil
}
