package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/config"
	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/instruments"
	"kraken-ladder-go/internal/logger"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
	"kraken-ladder-go/internal/submitter"
)

// loadConfig 加载 .env 与配置文件，并用配置重新初始化日志。
func loadConfig() (*models.Config, error) {
	// 在读取配置之前就需要日志，先用默认配置初始化
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Debug("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("无法加载配置文件: %w", err)
	}
	config.ApplyEnv(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger.InitLogger(cfg.LogConfig)
	return cfg, nil
}

// newPriceFeed 构建公共行情源。调用方应改用行情流时返回 nil；
// 一次性命令总是使用 REST 行情源。
func newPriceFeed(cfg *models.Config, streaming bool, log *zap.Logger) (exchange.PriceFeed, error) {
	switch cfg.PriceSource {
	case config.PriceSourceBinance:
		return exchange.NewBinancePriceFeed(cfg.BinanceAPIURL), nil
	case config.PriceSourceKrakenWS:
		if streaming {
			return nil, nil
		}
	}
	return exchange.NewKrakenExchange(cfg.Kraken, "", "", nil, log)
}

// app 保存与交易所交互的命令共用的依赖。
type app struct {
	cfg       *models.Config
	catalog   *instruments.Catalog
	repo      *persistence.BadgerRepository
	exchange  exchange.Exchange
	paper     *exchange.PaperExchange // 实盘模式下为 nil
	prices    exchange.PriceFeed
	stream    *exchange.TickerStream // price_source 为 kraken_ws 时由 serve 设置
	submitter *submitter.Submitter
	logger    *zap.Logger
}

func openApp(streaming bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.L()

	catalog, err := instruments.New(cfg.Instruments)
	if err != nil {
		return nil, err
	}

	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库 %s 失败: %w", cfg.DBPath, err)
	}
	a := &app{cfg: cfg, catalog: catalog, repo: repo, logger: log}

	feed, err := newPriceFeed(cfg, streaming, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if feed == nil {
		var pairs []string
		for _, inst := range catalog.List() {
			pairs = append(pairs, inst.Pair)
		}
		a.stream = exchange.NewTickerStream(cfg.Kraken.WSURL, pairs,
			time.Duration(cfg.Kraken.WebSocketPingIntervalSec)*time.Second, log)
		feed = a.stream
	}

	switch cfg.Mode {
	case config.ModePaper:
		log.Info("使用模拟交易所", zap.Float64("starting_balance", cfg.Paper.StartingBalance))
		a.paper = exchange.NewPaperExchange(cfg.Paper, log)
		a.exchange = a.paper
		a.prices = a.paper.Follow(feed)
	default:
		if err := config.RequireCredentials(cfg); err != nil {
			a.Close()
			return nil, err
		}
		nonces := exchange.NewNonceGenerator(repo, log)
		kraken, err := exchange.NewKrakenExchange(cfg.Kraken, cfg.APIKey, cfg.APISecret, nonces, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("使用 Kraken 交易所", zap.String("url", cfg.Kraken.RESTURL), zap.Bool("validate_only", cfg.Kraken.ValidateOnly))
		a.exchange = kraken
		a.prices = feed
	}

	a.submitter = submitter.New(a.exchange, cfg.Kraken.BatchSize, log)
	return a, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("关闭数据库失败", zap.Error(err))
	}
	a.logger.Sync()
}
