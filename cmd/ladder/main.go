package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"kraken-ladder-go/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ladder",
	Short: "Laddered limit orders on Kraken",
	Long: `ladder computes geometric ladders of limit orders and relays them to Kraken.

It provides:
  serve       the HTTP relay used by the control panel
  preview     print a ladder without touching the exchange
  daily       rebuild a preset's ladder from the current price and balance
  presets     manage the presets used by daily
  cancel-all  cancel every open order

Credentials are read from KRAKEN_API_KEY and KRAKEN_API_SECRET (a .env file is loaded when present).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file (YAML or JSON)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.S().Error(err)
		os.Exit(1)
	}
}
