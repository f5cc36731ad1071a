package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/reporter"
)

var cancelAllCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "Cancel every open order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.exchange.CancelAll(cmd.Context())
		if err != nil {
			return err
		}
		a.logger.Info("已取消全部挂单", zap.Int("count", res.Count))
		return nil
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List open orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		open, err := a.exchange.OpenOrders(cmd.Context())
		if err != nil {
			return err
		}
		reporter.WriteOpenOrders(os.Stdout, open)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelAllCmd, ordersCmd)
}
