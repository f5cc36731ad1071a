package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"kraken-ladder-go/internal/exchange"
)

const defaultTradeBalanceAsset = "ZUSD"

// AccountHandler serves market and account reads.
//
// GET  /api/ticker/{pair}
// GET  /api/balances
// POST /api/trade-balance
type AccountHandler struct {
	exchange exchange.Exchange
	prices   exchange.PriceFeed
	catalog  Catalog
}

// NewAccountHandler creates an AccountHandler. prices defaults to the exchange's ticker.
func NewAccountHandler(ex exchange.Exchange, prices exchange.PriceFeed, catalog Catalog) *AccountHandler {
	if prices == nil {
		prices = tickerFeed{ex}
	}
	return &AccountHandler{exchange: ex, prices: prices, catalog: catalog}
}

type tickerFeed struct {
	ex exchange.Exchange
}

func (f tickerFeed) LastPrice(ctx context.Context, pair string) (float64, error) {
	return f.ex.Ticker(ctx, pair)
}

// TickerResponse is the last trade price of a pair.
type TickerResponse struct {
	Pair  string  `json:"pair"`
	Price float64 `json:"price"`
}

// Ticker returns the last price. {pair} is a catalog ticker ("BTC") or an
// exchange pair name ("XBTUSD").
func (h *AccountHandler) Ticker(w http.ResponseWriter, r *http.Request) {
	pair := strings.TrimSpace(mux.Vars(r)["pair"])
	if pair == "" {
		writeError(w, badRequest("pair is required"))
		return
	}
	if inst, ok := h.catalog.Get(pair); ok {
		pair = inst.Pair
	}
	price, err := h.prices.LastPrice(r.Context(), pair)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TickerResponse{Pair: pair, Price: price})
}

// Balances returns the asset balances of the account.
func (h *AccountHandler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.exchange.Balances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

type tradeBalanceRequest struct {
	Asset string `json:"asset"`
}

// TradeBalance returns the margin account summary in {asset}, ZUSD by default.
func (h *AccountHandler) TradeBalance(w http.ResponseWriter, r *http.Request) {
	var body tradeBalanceRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Asset == "" {
		body.Asset = defaultTradeBalanceAsset
	}
	tb, err := h.exchange.TradeBalance(r.Context(), body.Asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}
