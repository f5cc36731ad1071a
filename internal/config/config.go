package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
)

const (
	ModeLive  = "live"
	ModePaper = "paper"

	PriceSourceKraken   = "kraken"
	PriceSourceKrakenWS = "kraken_ws"
	PriceSourceBinance  = "binance"

	// Kraken accepts at most 15 orders per AddOrderBatch.
	MaxBatchSize = 15
)

func floatPtr(v float64) *float64 { return &v }

// Default returns a configuration that runs without a config file.
func Default() *models.Config {
	return &models.Config{
		Mode:          ModeLive,
		DBPath:        "data/ladder.db",
		PriceSource:   PriceSourceKraken,
		BinanceAPIURL: "https://api.binance.com",
		Server: models.ServerConfig{
			Addr:            ":3000",
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 30,
			AllowedOrigin:   "*",
		},
		Kraken: models.KrakenConfig{
			RESTURL:                  "https://api.kraken.com",
			WSURL:                    "wss://ws.kraken.com/v2",
			TimeoutSec:               10,
			BatchSize:                MaxBatchSize,
			DeadlineSec:              30,
			ClientOrderIDs:           true,
			RetryAttempts:            3,
			RetryInitialDelayMs:      250,
			WebSocketPingIntervalSec: 20,
		},
		Paper: models.PaperConfig{
			StartingBalance: 10000,
			QuoteAsset:      "ZUSD",
		},
		LogConfig: models.LogConfig{
			Level:      "info",
			Output:     "console",
			File:       "logs/ladder.log",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Presets: []models.Preset{
			{
				Name: "BTC", Pair: "BTC/USD", Direction: models.Buy, OrderCount: 15,
				ReferenceOffsetPct: 3.2, PriceStepPct: 1.2, VolumeStepPct: 8.7, AllocationPct: 100,
				Leverage: models.Leveraged(5), StopLossPct: floatPtr(5), TakeProfitPct: floatPtr(10),
			},
			{
				Name: "XRP", Pair: "XRP/USD", Direction: models.Buy, OrderCount: 15,
				ReferenceOffsetPct: 6.5, PriceStepPct: 1.5, VolumeStepPct: 8.7, AllocationPct: 100,
				Leverage: models.Leveraged(5), StopLossPct: floatPtr(7.5), TakeProfitPct: floatPtr(15),
			},
		},
	}
}

// LoadConfig reads a YAML (.yaml/.yml) or JSON file over Default(). A missing
// file is not an error when path is empty.
func LoadConfig(path string) (*models.Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse json config %s: %w", path, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv copies credentials and a few overrides from the environment.
func ApplyEnv(cfg *models.Config) {
	cfg.APIKey = os.Getenv("KRAKEN_API_KEY")
	cfg.APISecret = os.Getenv("KRAKEN_API_SECRET")
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if mode := os.Getenv("LADDER_MODE"); mode != "" {
		cfg.Mode = strings.ToLower(mode)
	}
}

// Validate checks ranges and enumerations.
func Validate(cfg *models.Config) error {
	var errs []error

	switch cfg.Mode {
	case ModeLive, ModePaper:
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeLive, ModePaper, cfg.Mode))
	}
	switch cfg.PriceSource {
	case PriceSourceKraken, PriceSourceKrakenWS, PriceSourceBinance:
	default:
		errs = append(errs, fmt.Errorf("unknown price_source %q", cfg.PriceSource))
	}
	if cfg.Kraken.BatchSize < 1 || cfg.Kraken.BatchSize > MaxBatchSize {
		errs = append(errs, fmt.Errorf("kraken.batch_size must be between 1 and %d", MaxBatchSize))
	}
	if cfg.Kraken.TimeoutSec <= 0 {
		errs = append(errs, errors.New("kraken.timeout_sec must be positive"))
	}
	if cfg.Kraken.DeadlineSec < 0 {
		errs = append(errs, errors.New("kraken.deadline_sec must not be negative"))
	}
	if cfg.Kraken.RetryAttempts < 0 {
		errs = append(errs, errors.New("kraken.retry_attempts must not be negative"))
	}
	if cfg.Mode == ModePaper && cfg.Paper.StartingBalance <= 0 {
		errs = append(errs, errors.New("paper.starting_balance must be positive"))
	}
	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	names := make(map[string]bool, len(cfg.Presets))
	for _, p := range cfg.Presets {
		key := strings.ToUpper(p.Name)
		if p.Name == "" {
			errs = append(errs, errors.New("preset without a name"))
			continue
		}
		if names[key] {
			errs = append(errs, fmt.Errorf("preset %s defined twice", p.Name))
		}
		names[key] = true
		if err := ValidatePreset(p); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ValidatePreset checks the fields the daily job cannot derive.
func ValidatePreset(p models.Preset) error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("preset without a name")
	}
	if p.OrderCount < 1 {
		errs = append(errs, fmt.Errorf("preset %s: order_count must be at least 1", p.Name))
	}
	if p.OrderCount > ladder.MaxOrderCount {
		errs = append(errs, fmt.Errorf("preset %s: order_count must not exceed %d", p.Name, ladder.MaxOrderCount))
	}
	if p.Direction != models.Buy && p.Direction != models.Sell {
		errs = append(errs, fmt.Errorf("preset %s: direction must be buy or sell", p.Name))
	}
	if p.AllocationPct <= 0 {
		errs = append(errs, fmt.Errorf("preset %s: allocation_pct must be positive", p.Name))
	}
	if p.PriceStepPct < 0 {
		errs = append(errs, fmt.Errorf("preset %s: price_step_pct must not be negative", p.Name))
	}
	if p.ReferenceOffsetPct < 0 {
		errs = append(errs, fmt.Errorf("preset %s: reference_offset_pct must not be negative", p.Name))
	}
	return errors.Join(errs...)
}

// RequireCredentials fails when live mode has no API key pair.
func RequireCredentials(cfg *models.Config) error {
	if cfg.Mode != ModeLive {
		return nil
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return errors.New("KRAKEN_API_KEY and KRAKEN_API_SECRET must be set")
	}
	return nil
}
