package daily

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
	"kraken-ladder-go/internal/submitter"
)

const (
	// QuoteAsset 是交易余额的计价资产。
	QuoteAsset = "ZUSD"

	// Kraken CancelOrderBatch 的单批上限。
	maxCancelBatch = 50
)

// ErrUnknownPreset 表示存储和种子配置中都找不到该预设。
var ErrUnknownPreset = errors.New("unknown preset")

// Resolver 将预设的交易对解析为对应的交易品种。
type Resolver interface {
	Lookup(symbol string) (models.Instrument, error)
}

// Report 描述任务的一次执行结果。
type Report struct {
	Preset       models.Preset        `json:"preset"`
	Instrument   models.Instrument    `json:"instrument"`
	TradeBalance float64              `json:"trade_balance"`
	LastPrice    float64              `json:"last_price"`
	Cancelled    int                  `json:"cancelled"`
	Request      models.LadderRequest `json:"request"`
	Entries      []models.LadderEntry `json:"entries"`
	Submit       *models.SubmitReport `json:"submit,omitempty"`
	DryRun       bool                 `json:"dry_run"`
}

// Job 按预设重建阶梯: 以最新价重新定位，撤掉旧阶梯未成交的挂单，再提交新阶梯。
// 新阶梯生成失败时不撤任何单。
type Job struct {
	exchange       exchange.Exchange
	prices         exchange.PriceFeed
	submitter      *submitter.Submitter
	instruments    Resolver
	clientOrderIDs bool
	validate       bool
	logger         *zap.Logger
}

// NewJob 创建 Job。prices 为 nil 时使用交易所的行情接口。
func NewJob(ex exchange.Exchange, prices exchange.PriceFeed, sub *submitter.Submitter, instruments Resolver, kraken models.KrakenConfig, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		exchange:       ex,
		prices:         prices,
		submitter:      sub,
		instruments:    instruments,
		clientOrderIDs: kraken.ClientOrderIDs,
		validate:       kraken.ValidateOnly,
		logger:         logger,
	}
}

// Run 对单个预设执行任务。dryRun 时按实时余额和价格计算阶梯，但不撤单也不下单。
func (j *Job) Run(ctx context.Context, preset models.Preset, dryRun bool) (*Report, error) {
	inst, err := j.instruments.Lookup(preset.Pair)
	if err != nil {
		return nil, err
	}
	report := &Report{Preset: preset, Instrument: inst, DryRun: dryRun}

	tb, err := j.exchange.TradeBalance(ctx, QuoteAsset)
	if err != nil {
		return nil, fmt.Errorf("获取交易余额失败: %w", err)
	}
	if report.TradeBalance, err = tb.Balance(); err != nil {
		return nil, fmt.Errorf("无法解析交易余额 %q: %w", tb.TradeBalance, err)
	}
	j.logger.Info("交易余额", zap.String("asset", QuoteAsset), zap.Float64("balance", report.TradeBalance))

	if report.LastPrice, err = j.lastPrice(ctx, inst.Pair); err != nil {
		return nil, fmt.Errorf("获取 %s 最新价格失败: %w", inst.Pair, err)
	}

	report.Request = BuildRequest(preset, inst, report.LastPrice, report.TradeBalance)
	if report.Entries, err = ladder.Generate(report.Request, inst); err != nil {
		return nil, err
	}
	j.logger.Info("阶梯已生成",
		zap.String("preset", preset.Name),
		zap.String("pair", inst.Pair),
		zap.Float64("last_price", report.LastPrice),
		zap.Float64("reference_price", report.Request.ReferencePrice),
		zap.Float64("total", report.Request.TotalNotional),
		zap.Int("orders", len(report.Entries)),
		zap.Bool("dry_run", dryRun))

	if dryRun {
		return report, nil
	}

	// 新阶梯已生成，才撤掉旧阶梯；仅校验时不撤单
	if !j.validate {
		if report.Cancelled, err = j.cancelSide(ctx, preset.Direction); err != nil {
			return nil, err
		}
	}

	plan := submitter.NewPlan(report.Request, inst, report.Entries, j.clientOrderIDs)
	if report.Submit, err = j.submitter.Submit(ctx, plan, j.validate); err != nil {
		return nil, err
	}
	return report, nil
}

// BuildRequest 由预设推导阶梯请求: 第 0 档距最新价 ReferenceOffsetPct，
// 总量为交易余额按预设杠杆折算后的指定比例。
func BuildRequest(p models.Preset, inst models.Instrument, lastPrice, tradeBalance float64) models.LadderRequest {
	factor := 1 + p.ReferenceOffsetPct/100
	reference := lastPrice * factor
	if p.Direction == models.Buy {
		reference = lastPrice / factor
	}

	req := models.LadderRequest{
		Pair:           inst.Pair,
		ReferencePrice: ladder.RoundPrice(reference, inst.PriceDecimals),
		Direction:      p.Direction,
		OrderCount:     p.OrderCount,
		PriceStepPct:   p.PriceStepPct,
		VolumeStepPct:  p.VolumeStepPct,
		Leverage:       p.Leverage,
		StopLossPct:    p.StopLossPct,
		TakeProfitPct:  p.TakeProfitPct,
	}
	req = ladder.Normalize(req, inst)
	req.TotalNotional = ladder.DefaultTotal(tradeBalance, req.Leverage) * p.AllocationPct / 100
	return req
}

func (j *Job) lastPrice(ctx context.Context, pair string) (float64, error) {
	if j.prices != nil {
		return j.prices.LastPrice(ctx, pair)
	}
	return j.exchange.Ticker(ctx, pair)
}

// cancelSide 撤掉 side 方向的全部挂单，多于一笔时分批撤单。
func (j *Job) cancelSide(ctx context.Context, side models.Side) (int, error) {
	open, err := j.exchange.OpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取挂单失败: %w", err)
	}

	var txids []string
	for txid, o := range open {
		if strings.EqualFold(o.Descr.Type, string(side)) {
			txids = append(txids, txid)
		}
	}
	sort.Strings(txids)

	switch len(txids) {
	case 0:
		j.logger.Info("没有需要取消的挂单", zap.String("side", string(side)))
		return 0, nil
	case 1:
		res, err := j.exchange.CancelOrder(ctx, txids[0])
		if err != nil {
			return 0, fmt.Errorf("取消订单 %s 失败: %w", txids[0], err)
		}
		j.logger.Info("已取消挂单", zap.String("txid", txids[0]))
		return res.Count, nil
	}

	cancelled := 0
	for start := 0; start < len(txids); start += maxCancelBatch {
		end := start + maxCancelBatch
		if end > len(txids) {
			end = len(txids)
		}
		res, err := j.exchange.CancelOrderBatch(ctx, txids[start:end])
		if err != nil {
			return cancelled, fmt.Errorf("批量取消订单失败: %w", err)
		}
		cancelled += res.Count
	}
	j.logger.Info("已批量取消挂单", zap.String("side", string(side)), zap.Int("count", cancelled))
	return cancelled, nil
}

// FindPreset 先在存储中查找预设，再查找配置中的种子预设。
func FindPreset(repo persistence.PresetRepository, seeds []models.Preset, name string) (models.Preset, error) {
	if repo != nil {
		p, err := repo.LoadPreset(name)
		if err != nil {
			return models.Preset{}, err
		}
		if p != nil {
			return *p, nil
		}
	}
	for _, p := range seeds {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return models.Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
}

// ListPresets 返回已存储的预设，以及未被存储覆盖的种子预设，按名称排序。
func ListPresets(repo persistence.PresetRepository, seeds []models.Preset) ([]models.Preset, error) {
	var presets []models.Preset
	if repo != nil {
		stored, err := repo.ListPresets()
		if err != nil {
			return nil, err
		}
		presets = append(presets, stored...)
	}
	for _, seed := range seeds {
		shadowed := false
		for _, p := range presets {
			if strings.EqualFold(p.Name, seed.Name) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			presets = append(presets, seed)
		}
	}
	sort.Slice(presets, func(i, k int) bool { return presets[i].Name < presets[k].Name })
	return presets, nil
}
