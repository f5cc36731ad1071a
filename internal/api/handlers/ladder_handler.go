package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/metrics"
	"kraken-ladder-go/internal/models"
)

// LadderHandler computes ladders without touching the exchange.
//
// POST /api/preview
// GET  /api/instruments
type LadderHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewLadderHandler creates a LadderHandler.
func NewLadderHandler(catalog Catalog, logger *zap.Logger) *LadderHandler {
	return &LadderHandler{catalog: catalog, logger: logger}
}

// PreviewResponse is the computed ladder for one form submission.
type PreviewResponse struct {
	Instrument models.Instrument    `json:"instrument"`
	Request    models.LadderRequest `json:"request"`
	Entries    []models.LadderEntry `json:"entries"`
	Summary    models.LadderSummary `json:"summary"`
	Loss       *models.LossPreview  `json:"loss,omitempty"`
}

// Preview generates the ladder, its summary and, when hypothetical_price is
// set, the loss preview.
func (h *LadderHandler) Preview(w http.ResponseWriter, r *http.Request) {
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

	entries = ladder.ApplyMarketPrice(entries, form.MarketPrice.Value)
	resp := PreviewResponse{
		Instrument: inst,
		Request:    req,
		Entries:    entries,
		Summary:    ladder.Summarize(entries, form.MarketPrice.Value, form.Balance.Value, req.Direction, req.Leverage),
	}
	if form.HypotheticalPrice.Value > 0 {
		loss := ladder.PreviewLoss(entries, form.HypotheticalPrice.Value, req.Direction, form.StopLossEnabled, form.Balance.Value)
		resp.Loss = &loss
	}
	writeJSON(w, http.StatusOK, resp)
}

// Instruments lists the catalog, default first.
func (h *LadderHandler) Instruments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}
