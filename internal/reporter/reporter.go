package reporter

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func rightAligned(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{Number: c, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	return cfgs
}

func pctString(o models.Optional) string {
	if !o.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", o.Value)
}

// WriteLadder 打印阶梯订单明细。
func WriteLadder(w io.Writer, inst models.Instrument, req models.LadderRequest, entries []models.LadderEntry) {
	t := newTable(w, fmt.Sprintf("%s %s ladder (%s)", inst.Pair, req.Direction, req.Leverage))
	t.AppendHeader(table.Row{"#", "Price", "Volume", "Notional", "Dist. to market", "Stop loss", "Take profit"})
	var notional, volume float64
	for _, e := range entries {
		notional += e.Notional
		volume += e.Volume
		t.AppendRow(table.Row{
			e.Index + 1,
			e.DisplayPrice,
			ladder.FormatVolume(e.Volume),
			fmt.Sprintf("%.2f", e.Notional),
			pctString(e.DistanceToReferencePct),
			ladder.FormatOptional(e.StopLossPrice, inst.PriceDecimals),
			ladder.FormatOptional(e.TakeProfitPrice, inst.PriceDecimals),
		})
	}
	t.AppendFooter(table.Row{"", "Total", ladder.FormatVolume(volume), fmt.Sprintf("%.2f", notional), "", "", ""})
	t.SetColumnConfigs(rightAligned(2, 3, 4, 5, 6, 7))
	t.Render()
}

// WriteSummary 打印阶梯汇总。
func WriteSummary(w io.Writer, inst models.Instrument, s models.LadderSummary) {
	t := newTable(w, "Summary")
	leverage := "N/A"
	if s.LeverageUsed.Valid {
		leverage = fmt.Sprintf("%.2fx", s.LeverageUsed.Value)
	}
	t.AppendRows([]table.Row{
		{"Total notional", fmt.Sprintf("%.2f", s.TotalNotional)},
		{"Total volume", ladder.FormatVolume(s.TotalVolume)},
		{"Average price", ladder.FormatOptional(s.AveragePrice, inst.PriceDecimals)},
		{"Average distance to market", pctString(s.AverageDistancePct)},
		{"Price range", fmt.Sprintf("%.2f%%", s.PriceRangePct)},
		{"Leverage used", leverage},
		{"Liquidation estimate", ladder.FormatOptional(s.LiquidationPriceEstimate, inst.PriceDecimals)},
	})
	t.SetColumnConfigs(rightAligned(2))
	t.Render()
}

// WriteLossPreview 打印假设价格下的亏损拆分。
func WriteLossPreview(w io.Writer, p models.LossPreview) {
	t := newTable(w, fmt.Sprintf("Loss at %s", strconv.FormatFloat(p.HypotheticalPrice, 'f', -1, 64)))
	t.AppendRows([]table.Row{
		{"Realized loss", fmt.Sprintf("%.2f", p.RealizedLoss)},
		{"Unrealized loss", fmt.Sprintf("%.2f", p.UnrealizedLoss)},
		{"Open position", ladder.FormatVolume(p.OpenPositionSize)},
		{"Closed position", ladder.FormatVolume(p.ClosedPositionSize)},
	})
	if p.MarginCall {
		t.AppendFooter(table.Row{"MARGIN CALL", "balance exhausted"})
	}
	t.SetColumnConfigs(rightAligned(2))
	t.Render()
}

// WriteSubmitReport 打印每个阶梯订单的提交结果。
func WriteSubmitReport(w io.Writer, r *models.SubmitReport) {
	title := fmt.Sprintf("Ladder %s on %s", r.LadderID, r.Pair)
	if r.Validated {
		title += " (validate only)"
	}
	t := newTable(w, title)
	t.AppendHeader(table.Row{"#", "Batch", "Client id", "Txid", "Order", "Result"})
	for _, rung := range r.Rungs {
		result := "ok"
		if !rung.OK() {
			result = rung.Error
		}
		order := rung.Descr
		if rung.Close != "" {
			order += ", " + rung.Close
		}
		t.AppendRow(table.Row{rung.Rung + 1, rung.Batch + 1, rung.ClOrdID, rung.TxID, order, result})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Failed", fmt.Sprintf("%d / %d", r.Failed(), len(r.Rungs))})
	t.Render()
}

// WriteOpenOrders 打印挂单列表，按开单时间排序。
func WriteOpenOrders(w io.Writer, open map[string]models.OpenOrder) {
	ids := make([]string, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if open[ids[i]].OpenTm != open[ids[j]].OpenTm {
			return open[ids[i]].OpenTm < open[ids[j]].OpenTm
		}
		return ids[i] < ids[j]
	})

	t := newTable(w, "Open orders")
	t.AppendHeader(table.Row{"Txid", "Pair", "Side", "Type", "Price", "Volume", "Notional", "Close"})
	var total float64
	for _, id := range ids {
		o := open[id]
		total += o.Notional()
		t.AppendRow(table.Row{id, o.Descr.Pair, o.Descr.Type, o.Descr.OrderType, o.Descr.Price, o.Vol, fmt.Sprintf("%.2f", o.Notional()), o.Descr.Close})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%.2f", total), ""})
	t.SetColumnConfigs(rightAligned(5, 6, 7))
	t.Render()
}

// PaperMetrics 汇总模拟账户的表现。
type PaperMetrics struct {
	InitialBalance float64
	Cash           float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	Equity         float64
	Fills          int
	StopFills      int
}

// CalculatePaperMetrics 根据模拟账户计算各项指标。
func CalculatePaperMetrics(pe *exchange.PaperExchange, tb *models.TradeBalance) PaperMetrics {
	m := PaperMetrics{InitialBalance: pe.InitialBalance}
	if tb != nil {
		m.Cash, _ = strconv.ParseFloat(tb.TradeBalance, 64)
		m.UnrealizedPnL, _ = strconv.ParseFloat(tb.UnrealizedPnL, 64)
		m.Equity, _ = strconv.ParseFloat(tb.Equity, 64)
	}
	m.RealizedPnL = m.Cash - m.InitialBalance
	for _, f := range pe.Fills() {
		m.Fills++
		if f.Kind == "stop-loss" {
			m.StopFills++
		}
	}
	return m
}

// WritePaperReport 打印模拟账户报告。
func WritePaperReport(w io.Writer, m PaperMetrics) {
	t := newTable(w, "Paper account")
	t.AppendRows([]table.Row{
		{"Initial balance", fmt.Sprintf("%.2f", m.InitialBalance)},
		{"Cash", fmt.Sprintf("%.2f", m.Cash)},
		{"Realized PnL", fmt.Sprintf("%.2f", m.RealizedPnL)},
		{"Unrealized PnL", fmt.Sprintf("%.2f", m.UnrealizedPnL)},
		{"Equity", fmt.Sprintf("%.2f", m.Equity)},
		{"Fills", m.Fills},
		{"Stop-loss fills", m.StopFills},
	})
	t.SetColumnConfigs(rightAligned(2))
	t.Render()
}

// WritePresets 打印每日任务的预设。
func WritePresets(w io.Writer, presets []models.Preset) {
	t := newTable(w, "Presets")
	t.AppendHeader(table.Row{"Name", "Pair", "Side", "Orders", "Offset", "Step", "Vol. step", "Allocation", "Leverage", "SL", "TP"})
	opt := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f%%", *p)
	}
	for _, p := range presets {
		t.AppendRow(table.Row{
			p.Name, p.Pair, p.Direction, p.OrderCount,
			fmt.Sprintf("%.2f%%", p.ReferenceOffsetPct),
			fmt.Sprintf("%.2f%%", p.PriceStepPct),
			fmt.Sprintf("%.2f%%", p.VolumeStepPct),
			fmt.Sprintf("%.0f%%", p.AllocationPct),
			p.Leverage,
			opt(p.StopLossPct), opt(p.TakeProfitPct),
		})
	}
	t.Render()
}
