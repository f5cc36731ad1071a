package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/daily"
	"kraken-ladder-go/internal/reporter"
)

var dailyDryRun bool

var dailyCmd = &cobra.Command{
	Use:   "daily [coin]",
	Short: "Rebuild a preset's ladder from the current price and balance",
	Long: `Cancel the unfilled orders on the preset's side, re-anchor the ladder on
the last price and submit it. The coin names a preset (default BTC).

Meant to run once a day from cron:
  0 0 * * * ladder daily BTC --config /etc/ladder.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
	dailyCmd.Flags().BoolVar(&dailyDryRun, "dry-run", false, "compute and print the ladder without cancelling or placing orders")
}

func runDaily(cmd *cobra.Command, args []string) error {
	name := "BTC"
	if len(args) == 1 {
		name = strings.ToUpper(args[0])
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	preset, err := daily.FindPreset(a.repo, a.cfg.Presets, name)
	if err != nil {
		return err
	}
	a.logger.Info("开始执行每日阶梯任务", zap.String("preset", preset.Name), zap.Bool("dry_run", dailyDryRun))

	job := daily.NewJob(a.exchange, a.prices, a.submitter, a.catalog, a.cfg.Kraken, a.logger)
	report, err := job.Run(cmd.Context(), preset, dailyDryRun)
	if err != nil {
		return err
	}

	reporter.WriteLadder(os.Stdout, report.Instrument, report.Request, report.Entries)
	if report.Submit != nil {
		reporter.WriteSubmitReport(os.Stdout, report.Submit)
	}
	a.logger.Info("每日阶梯任务完成",
		zap.String("preset", preset.Name),
		zap.Int("cancelled", report.Cancelled),
		zap.Int("orders", len(report.Entries)))
	return nil
}
