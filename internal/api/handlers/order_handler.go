package handlers

import (
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/metrics"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/submitter"
)

// OrderHandler relays order placement and cancellation to the exchange.
//
// POST /api/batch-order
// POST /api/cancel-order
// POST /api/cancel-all
// GET  /api/open-orders
type OrderHandler struct {
	exchange       exchange.Exchange
	submitter      *submitter.Submitter
	catalog        Catalog
	validateOnly   bool
	clientOrderIDs bool
	logger         *zap.Logger
}

// NewOrderHandler creates an OrderHandler. validateOnly forces every
// submission to be validated by the exchange without placing it.
func NewOrderHandler(ex exchange.Exchange, sub *submitter.Submitter, catalog Catalog, validateOnly, clientOrderIDs bool, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		exchange:       ex,
		submitter:      sub,
		catalog:        catalog,
		validateOnly:   validateOnly,
		clientOrderIDs: clientOrderIDs,
		logger:         logger,
	}
}

// BatchOrder regenerates the ladder from the submitted parameters and sends it.
// Client-computed prices are never trusted.
func (h *OrderHandler) BatchOrder(w http.ResponseWriter, r *http.Request) {
	var form LadderForm
	if err := decodeBody(r, &form); err != nil {
		writeError(w, err)
		return
	}
	req, inst, err := form.Request(h.catalog)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := ladder.Generate(req, inst)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.LaddersGenerated.WithLabelValues(string(req.Direction)).Inc()

	plan := submitter.NewPlan(req, inst, entries, h.clientOrderIDs)
	h.logger.Info("submitting ladder",
		zap.String("ladder_id", plan.LadderID.String()),
		zap.String("pair", inst.Pair),
		zap.String("direction", string(req.Direction)),
		zap.Int("orders", len(plan.Orders)),
		zap.Float64("total", req.TotalNotional))

	report, err := h.submitter.Submit(r.Context(), plan, form.Validate || h.validateOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type cancelOrderRequest struct {
	TxID string `json:"txid"`
}

// CancelOrder cancels one order by txid.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var body cancelOrderRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	body.TxID = strings.TrimSpace(body.TxID)
	if body.TxID == "" {
		writeError(w, badRequest("txid is required"))
		return
	}
	res, err := h.exchange.CancelOrder(r.Context(), body.TxID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelAll cancels every open order on the account.
func (h *OrderHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.exchange.CancelAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("cancelled all open orders", zap.Int("count", res.Count))
	writeJSON(w, http.StatusOK, res)
}

// OpenOrderView is an open order with its txid and notional.
type OpenOrderView struct {
	TxID string `json:"txid"`
	models.OpenOrder
	Notional float64 `json:"notional"`
}

// OpenOrdersResponse lists open orders oldest first.
type OpenOrdersResponse struct {
	Orders        []OpenOrderView `json:"orders"`
	TotalNotional float64         `json:"total_notional"`
}

// OpenOrders lists open orders with the notional of each.
func (h *OrderHandler) OpenOrders(w http.ResponseWriter, r *http.Request) {
	open, err := h.exchange.OpenOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, openOrdersView(open))
}

func openOrdersView(open map[string]models.OpenOrder) OpenOrdersResponse {
	resp := OpenOrdersResponse{Orders: make([]OpenOrderView, 0, len(open))}
	for txid, o := range open {
		v := OpenOrderView{TxID: txid, OpenOrder: o, Notional: o.Notional()}
		resp.Orders = append(resp.Orders, v)
		resp.TotalNotional += v.Notional
	}
	sort.Slice(resp.Orders, func(i, j int) bool {
		a, b := resp.Orders[i], resp.Orders[j]
		if a.OpenTm != b.OpenTm {
			return a.OpenTm < b.OpenTm
		}
		return a.TxID < b.TxID
	})
	return resp
}
