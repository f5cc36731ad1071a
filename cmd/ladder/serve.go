package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/api"
	"kraken-ladder-go/internal/daily"
	"kraken-ladder-go/internal/reporter"
	"kraken-ladder-go/internal/statemanager"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP relay",
	Long: `Run the HTTP relay for the control panel.

The relay computes ladders, forwards orders to Kraken (or the paper exchange
with mode: paper) and keeps the editing session in the database. SIGINT and
SIGTERM shut it down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initial, err := a.repo.LoadState()
	if err != nil {
		log.Warn("无法加载会话状态，将以全新状态启动", zap.Error(err))
		initial = nil
	}
	sm := statemanager.NewStateManager(initial, a.repo, a.catalog, log)
	sm.Start()
	defer sm.Stop()

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("行情 WebSocket 已退出", zap.Error(err))
			}
		}()
		go a.forwardPrices(ctx, sm)
	}

	router := api.SetupRoutes(&api.Dependencies{
		Exchange:  a.exchange,
		Prices:    a.prices,
		Submitter: a.submitter,
		Catalog:   a.catalog,
		Presets:   a.repo,
		Session:   sm,
		Server:    a.cfg.Server,
		Kraken:    a.cfg.Kraken,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("中继服务已启动", zap.String("addr", srv.Addr), zap.String("mode", a.cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("收到退出信号，正在关闭中继服务...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("中继服务关闭失败", zap.Error(err))
	}

	if a.paper != nil {
		tb, err := a.paper.TradeBalance(shutdownCtx, daily.QuoteAsset)
		if err == nil {
			reporter.WritePaperReport(os.Stdout, reporter.CalculatePaperMetrics(a.paper, tb))
		}
	}
	log.Info("中继服务已停止。")
	return nil
}

// forwardPrices 用推送的每个价格更新模拟账本，并把正在编辑的交易对的价格写入会话。
func (a *app) forwardPrices(ctx context.Context, sm *statemanager.StateManager) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-a.stream.Updates():
			if a.paper != nil {
				a.paper.SetPrice(u.Pair, u.Price)
			}
			if u.Pair != sm.GetStateSnapshot().Request.Pair {
				continue
			}
			sm.DispatchEvent(statemanager.NormalizedEvent{
				Type:      statemanager.MarketPriceEvent,
				Timestamp: u.Time,
				Data:      statemanager.MarketPriceEventData{Pair: u.Pair, Price: u.Price},
			})
		}
	}
}
