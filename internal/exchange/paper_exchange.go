package exchange

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/models"
)

const epsilon = 1e-9

// PaperFill 记录一次模拟成交。
type PaperFill struct {
	TxID   string
	Pair   string
	Side   models.Side
	Kind   string // limit、stop-loss 或 take-profit
	Price  float64
	Volume float64
	Time   time.Time
}

type paperOrder struct {
	seq     int64
	txid    string
	pair    string
	side    models.Side
	kind    string
	price   float64
	volume  float64
	req     models.OrderRequest
	opened  time.Time
	closeOf string // 已激活的平仓单所属的父订单 txid
}

// PaperExchange 实现了 Exchange 接口，在内存中模拟 Kraken 的下单行为。
// 限价单在 SetPrice 穿价时成交，成交后挂出附带的止损/止盈平仓单。
// 账户按保证金模式记账：Cash 为已实现余额，持仓按最新价计算未实现盈亏。
type PaperExchange struct {
	mu sync.Mutex

	QuoteAsset     string
	InitialBalance float64
	Cash           float64

	prices        map[string]float64
	positions     map[string]float64 // 带符号的持仓数量，空头为负
	avgEntryPrice map[string]float64
	orders        map[string]*paperOrder
	fills         []PaperFill
	nextSeq       int64
	now           func() time.Time
	logger        *zap.Logger
}

// NewPaperExchange 创建一个新的 PaperExchange 实例。
func NewPaperExchange(cfg models.PaperConfig, logger *zap.Logger) *PaperExchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "ZUSD"
	}
	return &PaperExchange{
		QuoteAsset:     quote,
		InitialBalance: cfg.StartingBalance,
		Cash:           cfg.StartingBalance,
		prices:         make(map[string]float64),
		positions:      make(map[string]float64),
		avgEntryPrice:  make(map[string]float64),
		orders:         make(map[string]*paperOrder),
		now:            time.Now,
		logger:         logger,
	}
}

// SetPrice 更新交易对的最新价，并检查挂单是否可以成交。
func (e *PaperExchange) SetPrice(pair string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prices[pair] = price

	// 按下单顺序检查，保证同一价格下先挂的单先成交
	pending := make([]*paperOrder, 0, len(e.orders))
	for _, o := range e.orders {
		if o.pair == pair {
			pending = append(pending, o)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })

	for _, o := range pending {
		if _, still := e.orders[o.txid]; !still {
			continue
		}
		if triggered(o.kind, o.side, o.price, price) {
			e.fill(o, price)
		}
	}
}

// triggered 判断指定类型和方向的订单在 price 下是否成交。
func triggered(kind string, side models.Side, trigger, price float64) bool {
	switch kind {
	case "stop-loss":
		if side == models.Sell {
			return price <= trigger
		}
		return price >= trigger
	case "take-profit":
		if side == models.Sell {
			return price >= trigger
		}
		return price <= trigger
	default: // 限价单
		if side == models.Buy {
			return price <= trigger
		}
		return price >= trigger
	}
}

// fill 处理一个已成交的订单。必须在持有锁的情况下调用。
func (e *PaperExchange) fill(o *paperOrder, market float64) {
	delete(e.orders, o.txid)

	execPrice := o.price
	if o.kind != "limit" {
		// 触发单按市价成交
		execPrice = market
	}

	qty := o.volume
	if o.side == models.Sell {
		qty = -qty
	}
	realized := e.applyFill(o.pair, qty, execPrice)

	at := e.now()
	e.fills = append(e.fills, PaperFill{
		TxID: o.txid, Pair: o.pair, Side: o.side, Kind: o.kind,
		Price: execPrice, Volume: o.volume, Time: at,
	})

	e.logger.Info("[paper] 订单成交",
		zap.String("txid", o.txid),
		zap.String("pair", o.pair),
		zap.String("side", string(o.side)),
		zap.String("kind", o.kind),
		zap.Float64("price", execPrice),
		zap.Float64("volume", o.volume),
		zap.Float64("realized", realized),
		zap.Float64("position", e.positions[o.pair]),
		zap.Float64("cash", e.Cash))

	if o.req.Close == nil || o.closeOf != "" {
		return
	}
	trigger, err := strconv.ParseFloat(o.req.Close.Price, 64)
	if err != nil || trigger <= 0 {
		e.logger.Warn("[paper] 平仓单价格无效，未挂出", zap.String("txid", o.txid), zap.String("price", o.req.Close.Price))
		return
	}
	closeSide := models.Sell
	if o.side == models.Sell {
		closeSide = models.Buy
	}
	e.insert(&paperOrder{
		pair:    o.pair,
		side:    closeSide,
		kind:    o.req.Close.OrderType,
		price:   trigger,
		volume:  o.volume,
		req:     models.OrderRequest{OrderType: o.req.Close.OrderType, Type: string(closeSide), Price: o.req.Close.Price, Volume: o.req.Volume},
		closeOf: o.txid,
	})
}

// applyFill 更新持仓和均价，返回已实现盈亏。必须在持有锁的情况下调用。
func (e *PaperExchange) applyFill(pair string, qty, price float64) float64 {
	pos := e.positions[pair]
	avg := e.avgEntryPrice[pair]

	if math.Abs(pos) < epsilon || (pos > 0) == (qty > 0) {
		newPos := pos + qty
		e.avgEntryPrice[pair] = (avg*math.Abs(pos) + price*math.Abs(qty)) / math.Abs(newPos)
		e.positions[pair] = newPos
		return 0
	}

	closing := math.Min(math.Abs(qty), math.Abs(pos))
	direction := 1.0
	if pos < 0 {
		direction = -1
	}
	realized := (price - avg) * closing * direction
	e.Cash += realized

	newPos := pos + qty
	switch {
	case math.Abs(newPos) < epsilon:
		newPos = 0
		e.avgEntryPrice[pair] = 0
	case (newPos > 0) != (pos > 0):
		// 反手，剩余部分以成交价开新仓
		e.avgEntryPrice[pair] = price
	}
	e.positions[pair] = newPos
	return realized
}

func (e *PaperExchange) insert(o *paperOrder) {
	e.nextSeq++
	o.seq = e.nextSeq
	o.txid = newTxID()
	o.opened = e.now()
	e.orders[o.txid] = o
}

// newTxID 生成 Kraken 风格的订单号，例如 "O3K2ZD-QWERT-ABCDEF"。
func newTxID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "O" + id[:5] + "-" + id[5:10] + "-" + id[10:16]
}

// unrealized 必须在持有锁的情况下调用。
func (e *PaperExchange) unrealized() float64 {
	var pnl float64
	for pair, pos := range e.positions {
		if last, ok := e.prices[pair]; ok && pos != 0 {
			pnl += (last - e.avgEntryPrice[pair]) * pos
		}
	}
	return pnl
}

func (e *PaperExchange) place(pair string, req models.OrderRequest, validate bool) (*paperOrder, *models.OrderDescription, error) {
	side, err := models.ParseSide(req.Type)
	if err != nil {
		return nil, nil, &models.KrakenError{Endpoint: "AddOrder", Messages: []string{"EGeneral:Invalid arguments:type"}}
	}
	if req.OrderType != "limit" {
		return nil, nil, &models.KrakenError{Endpoint: "AddOrder", Messages: []string{"EGeneral:Invalid arguments:ordertype"}}
	}
	price, err := strconv.ParseFloat(req.Price, 64)
	if err != nil || price <= 0 {
		return nil, nil, &models.KrakenError{Endpoint: "AddOrder", Messages: []string{"EGeneral:Invalid arguments:price"}}
	}
	volume, err := strconv.ParseFloat(req.Volume, 64)
	if err != nil || volume <= 0 {
		return nil, nil, &models.KrakenError{Endpoint: "AddOrder", Messages: []string{"EGeneral:Invalid arguments:volume"}}
	}
	if req.Close != nil && req.Close.OrderType != "stop-loss" && req.Close.OrderType != "take-profit" {
		return nil, nil, &models.KrakenError{Endpoint: "AddOrder", Messages: []string{"EGeneral:Invalid arguments:close[ordertype]"}}
	}
	if e.Cash <= 0 {
		return nil, nil, &models.KrakenError{Endpoint: "AddOrder", Messages: []string{"EOrder:Insufficient funds"}}
	}

	descr := &models.OrderDescription{Order: describe(pair, req)}
	if req.Close != nil {
		descr.Close = fmt.Sprintf("close position @ %s %s", req.Close.OrderType, req.Close.Price)
	}
	if validate {
		return nil, descr, nil
	}

	o := &paperOrder{pair: pair, side: side, kind: "limit", price: price, volume: volume, req: req}
	e.insert(o)
	return o, descr, nil
}

func describe(pair string, req models.OrderRequest) string {
	s := fmt.Sprintf("%s %s %s @ limit %s", req.Type, req.Volume, strings.ReplaceAll(pair, "/", ""), req.Price)
	if req.Leverage != "" && req.Leverage != "none" {
		s += " with " + req.Leverage + ":1 leverage"
	}
	return s
}

// Fills 返回模拟成交记录的副本。
func (e *PaperExchange) Fills() []PaperFill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PaperFill(nil), e.fills...)
}

// Position 返回带符号的持仓数量及其开仓均价。
func (e *PaperExchange) Position(pair string) (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions[pair], e.avgEntryPrice[pair]
}

// --- Exchange 接口实现 ---

// Ticker 返回 SetPrice 设置的最新价。
func (e *PaperExchange) Ticker(_ context.Context, pair string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[pair]
	if !ok {
		return 0, &models.KrakenError{Endpoint: "Ticker", Messages: []string{"EQuery:Unknown asset pair"}}
	}
	return price, nil
}

// LastPrice 使 PaperExchange 实现 PriceFeed。
func (e *PaperExchange) LastPrice(ctx context.Context, pair string) (float64, error) {
	return e.Ticker(ctx, pair)
}

// Balances 返回计价资产余额和各基础资产的持仓。
func (e *PaperExchange) Balances(_ context.Context) (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := map[string]string{e.QuoteAsset: strconv.FormatFloat(e.Cash, 'f', 4, 64)}
	for pair, pos := range e.positions {
		if pos == 0 {
			continue
		}
		base := pair
		if i := strings.Index(pair, "/"); i > 0 {
			base = pair[:i]
		}
		out[base] = strconv.FormatFloat(pos, 'f', 8, 64)
	}
	return out, nil
}

// TradeBalance 汇总保证金账户。
func (e *PaperExchange) TradeBalance(_ context.Context, _ string) (*models.TradeBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cost, valuation float64
	for pair, pos := range e.positions {
		cost += math.Abs(pos) * e.avgEntryPrice[pair]
		valuation += math.Abs(pos) * e.prices[pair]
	}
	pnl := e.unrealized()
	equity := e.Cash + pnl

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	return &models.TradeBalance{
		EquivalentBalance: f(e.Cash),
		TradeBalance:      f(e.Cash),
		MarginAmount:      f(0),
		UnrealizedPnL:     f(pnl),
		Cost:              f(cost),
		Valuation:         f(valuation),
		Equity:            f(equity),
		FreeMargin:        f(equity),
	}, nil
}

// OpenOrders 返回所有挂单，包括已挂出的平仓单。
func (e *PaperExchange) OpenOrders(_ context.Context) (map[string]models.OpenOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]models.OpenOrder, len(e.orders))
	for txid, o := range e.orders {
		oo := models.OpenOrder{
			ClOrdID: o.req.ClOrdID,
			Status:  "open",
			OpenTm:  float64(o.opened.UnixNano()) / 1e9,
			Descr: models.OpenOrderDescr{
				Pair:      strings.ReplaceAll(o.pair, "/", ""),
				Type:      string(o.side),
				OrderType: o.kind,
				Price:     o.req.Price,
				Price2:    "0",
				Leverage:  o.req.Leverage,
				Order:     describe(o.pair, o.req),
			},
			Vol:     o.req.Volume,
			VolExec: "0.00000000",
			Cost:    "0.00000",
			Fee:     "0.00000",
			Price:   "0.00000",
		}
		if oo.Descr.Leverage == "" {
			oo.Descr.Leverage = "none"
		}
		if o.req.Close != nil && o.closeOf == "" {
			oo.Descr.Close = fmt.Sprintf("close position @ %s %s", o.req.Close.OrderType, o.req.Close.Price)
		}
		out[txid] = oo
	}
	return out, nil
}

// AddOrderBatch 批量下单。任意一笔校验失败时整批拒绝。
func (e *PaperExchange) AddOrderBatch(_ context.Context, pair string, orders []models.OrderRequest, validate bool) (*models.BatchResult, error) {
	if err := checkBatchSize(len(orders)); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// 先整体校验，再落单
	for _, o := range orders {
		if _, _, err := e.place(pair, o, true); err != nil {
			err.(*models.KrakenError).Endpoint = "AddOrderBatch"
			return nil, err
		}
	}

	res := &models.BatchResult{Orders: make([]models.BatchOrderResult, 0, len(orders))}
	for _, o := range orders {
		placed, descr, _ := e.place(pair, o, validate)
		r := models.BatchOrderResult{Descr: descr, ClOrdID: o.ClOrdID}
		if placed != nil {
			r.TxID = placed.txid
		}
		res.Orders = append(res.Orders, r)
	}
	return res, nil
}

// AddOrder 下单。
func (e *PaperExchange) AddOrder(_ context.Context, pair string, order models.OrderRequest, validate bool) (*models.AddOrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	placed, descr, err := e.place(pair, order, validate)
	if err != nil {
		return nil, err
	}
	res := &models.AddOrderResult{Descr: *descr}
	if placed != nil {
		res.TxID = []string{placed.txid}
	}
	return res, nil
}

// CancelOrder 取消订单。
func (e *PaperExchange) CancelOrder(_ context.Context, txid string) (*models.CancelResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[txid]; !ok {
		return nil, &models.KrakenError{Endpoint: "CancelOrder", Messages: []string{"EOrder:Unknown order"}}
	}
	delete(e.orders, txid)
	return &models.CancelResult{Count: 1}, nil
}

// CancelOrderBatch 取消列出的订单，忽略未知的 txid。
func (e *PaperExchange) CancelOrderBatch(_ context.Context, txids []string) (*models.CancelResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, id := range txids {
		if _, ok := e.orders[id]; ok {
			delete(e.orders, id)
			count++
		}
	}
	return &models.CancelResult{Count: count}, nil
}

// CancelAll 取消所有挂单。
func (e *PaperExchange) CancelAll(_ context.Context) (*models.CancelResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := len(e.orders)
	e.orders = make(map[string]*paperOrder)
	return &models.CancelResult{Count: count}, nil
}

// markFeed 从真实行情源取价，并用它更新模拟账本。
type markFeed struct {
	feed  PriceFeed
	paper *PaperExchange
}

// Follow 返回一个读取 feed 的 PriceFeed，每次取到的价格都会写入模拟交易所，
// 使模拟订单跟随真实行情成交。
func (e *PaperExchange) Follow(feed PriceFeed) PriceFeed {
	return markFeed{feed: feed, paper: e}
}

func (m markFeed) LastPrice(ctx context.Context, pair string) (float64, error) {
	price, err := m.feed.LastPrice(ctx, pair)
	if err != nil {
		return 0, err
	}
	m.paper.SetPrice(pair, price)
	return price, nil
}
