package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kraken-ladder-go/internal/config"
	"kraken-ladder-go/internal/daily"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/reporter"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage the presets used by daily",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored and configured presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		presets, err := daily.ListPresets(a.repo, a.cfg.Presets)
		if err != nil {
			return err
		}
		reporter.WritePresets(os.Stdout, presets)
		return nil
	},
}

var presetFlags struct {
	pair       string
	direction  string
	orders     int
	offset     float64
	step       float64
	volumeStep float64
	allocation float64
	leverage   string
	stopLoss   float64
	takeProfit float64
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Create or replace a preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetsSave,
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		name := strings.ToUpper(args[0])
		if err := a.repo.DeletePreset(name); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "deleted preset %s\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd, presetsSaveCmd, presetsDeleteCmd)

	f := presetsSaveCmd.Flags()
	f.StringVar(&presetFlags.pair, "pair", "", "pair or base asset (required)")
	f.StringVar(&presetFlags.direction, "direction", "buy", "buy or sell")
	f.IntVar(&presetFlags.orders, "orders", 15, "number of rungs")
	f.Float64Var(&presetFlags.offset, "offset", 0, "rung 0 distance from the last price, in percent")
	f.Float64Var(&presetFlags.step, "step", 1, "price distance between rungs, in percent")
	f.Float64Var(&presetFlags.volumeStep, "volume-step", 0, "growth of each rung's notional, in percent")
	f.Float64Var(&presetFlags.allocation, "allocation", 100, "share of trade balance x leverage, in percent")
	f.StringVar(&presetFlags.leverage, "leverage", "spot", "spot or a multiplier such as 5x")
	f.Float64Var(&presetFlags.stopLoss, "stop-loss", 0, "stop loss distance from each entry, in percent")
	f.Float64Var(&presetFlags.takeProfit, "take-profit", 0, "take profit distance from each entry, in percent")
	presetsSaveCmd.MarkFlagRequired("pair")
}

func runPresetsSave(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	inst, err := a.catalog.Lookup(presetFlags.pair)
	if err != nil {
		return err
	}
	side, err := models.ParseSide(presetFlags.direction)
	if err != nil {
		return err
	}
	lev, err := models.ParseLeverage(presetFlags.leverage)
	if err != nil {
		return err
	}

	p := models.Preset{
		Name:               strings.ToUpper(args[0]),
		Pair:               inst.Pair,
		Direction:          side,
		OrderCount:         presetFlags.orders,
		ReferenceOffsetPct: presetFlags.offset,
		PriceStepPct:       presetFlags.step,
		VolumeStepPct:      presetFlags.volumeStep,
		AllocationPct:      presetFlags.allocation,
		Leverage:           lev.Clamp(inst.MaxLeverage),
	}
	if cmd.Flags().Changed("stop-loss") {
		p.StopLossPct = &presetFlags.stopLoss
	}
	if cmd.Flags().Changed("take-profit") {
		p.TakeProfitPct = &presetFlags.takeProfit
	}
	if err := config.ValidatePreset(p); err != nil {
		return err
	}
	if err := a.repo.SavePreset(p); err != nil {
		return err
	}
	reporter.WritePresets(os.Stdout, []models.Preset{p})
	return nil
}
