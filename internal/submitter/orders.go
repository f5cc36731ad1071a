package submitter

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"

	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
)

// Plan is a generated ladder ready to be sent to the exchange.
type Plan struct {
	LadderID   uuid.UUID
	Instrument models.Instrument
	Request    models.LadderRequest
	Entries    []models.LadderEntry
	Orders     []models.OrderRequest
}

// NewPlan assigns a ladder id and builds one order per entry.
func NewPlan(req models.LadderRequest, inst models.Instrument, entries []models.LadderEntry, clientOrderIDs bool) *Plan {
	p := &Plan{
		LadderID:   uuid.New(),
		Instrument: inst,
		Request:    req,
		Entries:    entries,
	}
	p.Orders = BuildOrders(entries, inst, req, p.LadderID, clientOrderIDs)
	return p
}

// ClientOrderID is the cl_ord_id of one rung: the first 8 bytes of the ladder
// id in base62, then the rung index. Fits the 18 character free-text form.
func ClientOrderID(ladderID uuid.UUID, rung int) string {
	return fmt.Sprintf("%s-%d", base62.EncodeToString(ladderID[:8]), rung)
}

// BuildOrders maps rungs to Kraken limit orders. A positive stop-loss wins over
// a take-profit, since Kraken attaches at most one close order.
func BuildOrders(entries []models.LadderEntry, inst models.Instrument, req models.LadderRequest, ladderID uuid.UUID, clientOrderIDs bool) []models.OrderRequest {
	orders := make([]models.OrderRequest, 0, len(entries))
	for _, e := range entries {
		o := models.OrderRequest{
			OrderType:   "limit",
			Type:        string(req.Direction),
			Price:       ladder.FormatPrice(e.Price, inst.PriceDecimals),
			Volume:      ladder.FormatVolume(e.Volume),
			TimeInForce: "GTC",
			ReduceOnly:  req.ReduceOnly,
			Rung:        e.Index,
		}
		if !req.Leverage.IsSpot() {
			o.Leverage = strconv.Itoa(req.Leverage.Multiplier())
		}

		switch {
		case req.StopLossPct != nil && *req.StopLossPct > 0 && e.StopLossPrice.Valid:
			o.Close = &models.CloseOrder{OrderType: "stop-loss", Price: ladder.FormatPrice(e.StopLossPrice.Value, inst.PriceDecimals)}
		case req.TakeProfitPct != nil && *req.TakeProfitPct > 0 && e.TakeProfitPrice.Valid:
			o.Close = &models.CloseOrder{OrderType: "take-profit", Price: ladder.FormatPrice(e.TakeProfitPrice.Value, inst.PriceDecimals)}
		}

		if clientOrderIDs {
			o.ClOrdID = ClientOrderID(ladderID, e.Index)
		}
		orders = append(orders, o)
	}
	return orders
}

// Batches splits orders into consecutive chunks of at most size, keeping order.
func Batches(orders []models.OrderRequest, size int) [][]models.OrderRequest {
	if size < 1 {
		size = 1
	}
	var out [][]models.OrderRequest
	for start := 0; start < len(orders); start += size {
		end := start + size
		if end > len(orders) {
			end = len(orders)
		}
		out = append(out, orders[start:end])
	}
	return out
}
