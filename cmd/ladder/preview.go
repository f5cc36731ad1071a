package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kraken-ladder-go/internal/instruments"
	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/logger"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/reporter"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print a ladder without touching the exchange",
	Long: `Compute a ladder and print its rungs, summary and optional loss preview.

The start price is --price, or --offset away from the market price when
--price is not given. The total defaults to balance x leverage.

Example:
  ladder preview --pair BTC --direction buy --orders 15 --step 1.2 \
    --volume-step 8.7 --offset 3.2 --live-price --balance 1000 --leverage 5`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

var previewFlags struct {
	pair              string
	direction         string
	price             float64
	offset            float64
	marketPrice       float64
	livePrice         bool
	orders            int
	step              float64
	volumeStep        float64
	total             float64
	balance           float64
	leverage          string
	stopLoss          float64
	takeProfit        float64
	hypotheticalPrice float64
	stopLossEnabled   bool
}

func init() {
	rootCmd.AddCommand(previewCmd)

	f := previewCmd.Flags()
	f.StringVar(&previewFlags.pair, "pair", "", "pair or base asset (default: the catalog default)")
	f.StringVar(&previewFlags.direction, "direction", "buy", "buy or sell")
	f.Float64Var(&previewFlags.price, "price", 0, "start price of rung 0")
	f.Float64Var(&previewFlags.offset, "offset", 0, "start price distance from the market price, in percent")
	f.Float64Var(&previewFlags.marketPrice, "market-price", 0, "market price used for distances, offset and liquidation")
	f.BoolVar(&previewFlags.livePrice, "live-price", false, "fetch the market price from the configured price source")
	f.IntVar(&previewFlags.orders, "orders", 15, "number of rungs")
	f.Float64Var(&previewFlags.step, "step", 1, "price distance between rungs, in percent")
	f.Float64Var(&previewFlags.volumeStep, "volume-step", 0, "growth of each rung's notional, in percent")
	f.Float64Var(&previewFlags.total, "total", 0, "total notional (default: balance x leverage)")
	f.Float64Var(&previewFlags.balance, "balance", 0, "account balance")
	f.StringVar(&previewFlags.leverage, "leverage", "spot", "spot or a multiplier such as 5x")
	f.Float64Var(&previewFlags.stopLoss, "stop-loss", 0, "stop loss distance from each entry, in percent")
	f.Float64Var(&previewFlags.takeProfit, "take-profit", 0, "take profit distance from each entry, in percent")
	f.Float64Var(&previewFlags.hypotheticalPrice, "hypothetical-price", 0, "print the loss preview at this price")
	f.BoolVar(&previewFlags.stopLossEnabled, "stop-loss-enabled", false, "assume stop losses are attached in the loss preview")
}

func runPreview(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := instruments.New(cfg.Instruments)
	if err != nil {
		return err
	}

	inst := catalog.Default()
	if previewFlags.pair != "" {
		if inst, err = catalog.Lookup(previewFlags.pair); err != nil {
			return err
		}
	}
	side, err := models.ParseSide(previewFlags.direction)
	if err != nil {
		return err
	}
	lev, err := models.ParseLeverage(previewFlags.leverage)
	if err != nil {
		return err
	}

	market := previewFlags.marketPrice
	if previewFlags.livePrice {
		feed, err := newPriceFeed(cfg, false, logger.L())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		if market, err = feed.LastPrice(ctx, inst.Pair); err != nil {
			return fmt.Errorf("获取 %s 最新价格失败: %w", inst.Pair, err)
		}
	}

	req := ladder.Normalize(models.LadderRequest{
		ReferencePrice: previewFlags.price,
		Direction:      side,
		OrderCount:     previewFlags.orders,
		PriceStepPct:   previewFlags.step,
		VolumeStepPct:  previewFlags.volumeStep,
		TotalNotional:  previewFlags.total,
		Leverage:       lev,
	}, inst)
	flags := cmd.Flags()
	if flags.Changed("stop-loss") {
		req.StopLossPct = &previewFlags.stopLoss
	}
	if flags.Changed("take-profit") {
		req.TakeProfitPct = &previewFlags.takeProfit
	}
	if !flags.Changed("price") && flags.Changed("offset") && market > 0 {
		req.ReferencePrice = ladder.OffsetReference(market, previewFlags.offset, side, inst.PriceDecimals)
	}
	if !flags.Changed("total") && previewFlags.balance > 0 {
		req.TotalNotional = ladder.DefaultTotal(previewFlags.balance, req.Leverage)
	}

	entries, err := ladder.Generate(req, inst)
	if err != nil {
		return err
	}
	entries = ladder.ApplyMarketPrice(entries, market)

	reporter.WriteLadder(os.Stdout, inst, req, entries)
	reporter.WriteSummary(os.Stdout, inst, ladder.Summarize(entries, market, previewFlags.balance, side, req.Leverage))
	if previewFlags.hypotheticalPrice > 0 {
		reporter.WriteLossPreview(os.Stdout,
			ladder.PreviewLoss(entries, previewFlags.hypotheticalPrice, side, previewFlags.stopLossEnabled, previewFlags.balance))
	}
	return nil
}
