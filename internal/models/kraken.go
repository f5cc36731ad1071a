package models

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderRequest is one order in Kraken's AddOrder / AddOrderBatch schema.
type OrderRequest struct {
	OrderType   string      `json:"ordertype"`
	Type        string      `json:"type"`
	Price       string      `json:"price"`
	Volume      string      `json:"volume"`
	TimeInForce string      `json:"timeinforce,omitempty"`
	Leverage    string      `json:"leverage,omitempty"`
	ReduceOnly  bool        `json:"reduce_only,omitempty"`
	ClOrdID     string      `json:"cl_ord_id,omitempty"`
	Close       *CloseOrder `json:"close,omitempty"`

	// Rung is the ladder index this order was built from. Not sent.
	Rung int `json:"-"`
}

// CloseOrder is the conditional close attached to an order.
type CloseOrder struct {
	OrderType string `json:"ordertype"` // "stop-loss" or "take-profit"
	Price     string `json:"price"`
}

// OrderDescription is Kraken's human readable echo of an order.
type OrderDescription struct {
	Order string `json:"order"`
	Close string `json:"close,omitempty"`
}

// BatchOrderResult is one element of AddOrderBatch's result, in request order.
type BatchOrderResult struct {
	TxID    string            `json:"txid,omitempty"`
	Descr   *OrderDescription `json:"descr,omitempty"`
	ClOrdID string            `json:"cl_ord_id,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// BatchResult is the result of AddOrderBatch.
type BatchResult struct {
	Orders []BatchOrderResult `json:"orders"`
}

// AddOrderResult is the result of AddOrder.
type AddOrderResult struct {
	Descr OrderDescription `json:"descr"`
	TxID  []string         `json:"txid"`
}

// CancelResult is the result of CancelOrder, CancelOrderBatch and CancelAll.
type CancelResult struct {
	Count   int  `json:"count"`
	Pending bool `json:"pending,omitempty"`
}

// OpenOrderDescr describes an open order.
type OpenOrderDescr struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Price2    string `json:"price2"`
	Leverage  string `json:"leverage"`
	Order     string `json:"order"`
	Close     string `json:"close"`
}

// OpenOrder is an entry of the OpenOrders result, keyed by txid.
type OpenOrder struct {
	RefID   *string        `json:"refid"`
	UserRef int64          `json:"userref"`
	ClOrdID string         `json:"cl_ord_id,omitempty"`
	Status  string         `json:"status"`
	OpenTm  float64        `json:"opentm"`
	Descr   OpenOrderDescr `json:"descr"`
	Vol     string         `json:"vol"`
	VolExec string         `json:"vol_exec"`
	Cost    string         `json:"cost"`
	Fee     string         `json:"fee"`
	Price   string         `json:"price"`
	Misc    string         `json:"misc"`
	Oflags  string         `json:"oflags"`
}

// Notional is limit price times volume, or 0 when either does not parse.
func (o OpenOrder) Notional() float64 {
	price, err1 := strconv.ParseFloat(o.Descr.Price, 64)
	vol, err2 := strconv.ParseFloat(o.Vol, 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	return price * vol
}

// OpenOrdersResult is the result of OpenOrders.
type OpenOrdersResult struct {
	Open map[string]OpenOrder `json:"open"`
}

// TradeBalance is the result of TradeBalance. Kraken sends decimals as strings.
type TradeBalance struct {
	EquivalentBalance string `json:"eb"`
	TradeBalance      string `json:"tb"`
	MarginAmount      string `json:"m"`
	UnrealizedPnL     string `json:"n"`
	Cost              string `json:"c"`
	Valuation         string `json:"v"`
	Equity            string `json:"e"`
	FreeMargin        string `json:"mf"`
	MarginLevel       string `json:"ml,omitempty"`
}

// Balance parses the "tb" field.
func (t TradeBalance) Balance() (float64, error) {
	return strconv.ParseFloat(t.TradeBalance, 64)
}

// KrakenError carries the error array of a Kraken response.
type KrakenError struct {
	Endpoint string
	Messages []string
}

func (e *KrakenError) Error() string {
	return fmt.Sprintf("kraken %s: %s", e.Endpoint, strings.Join(e.Messages, ", "))
}

// Has reports whether any message starts with the given code, e.g. "EAPI:Invalid nonce".
func (e *KrakenError) Has(code string) bool {
	for _, m := range e.Messages {
		if strings.HasPrefix(m, code) {
			return true
		}
	}
	return false
}
