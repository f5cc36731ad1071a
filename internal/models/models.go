package models

// Config holds every setting of the relay, the CLI and the daily ladder job.
type Config struct {
	Mode          string       `json:"mode" yaml:"mode"`                       // "live" or "paper"
	DBPath        string       `json:"db_path" yaml:"db_path"`                 // badger directory for session, presets and nonce
	PriceSource   string       `json:"price_source" yaml:"price_source"`       // "kraken", "kraken_ws" or "binance"
	BinanceAPIURL string       `json:"binance_api_url" yaml:"binance_api_url"` // only used when price_source is "binance"
	Server        ServerConfig `json:"server" yaml:"server"`
	Kraken        KrakenConfig `json:"kraken" yaml:"kraken"`
	Paper         PaperConfig  `json:"paper" yaml:"paper"`
	LogConfig     LogConfig    `json:"log" yaml:"log"`
	Instruments   []Instrument `json:"instruments,omitempty" yaml:"instruments,omitempty"` // extra pairs or overrides of the built-in catalog
	Presets       []Preset     `json:"presets,omitempty" yaml:"presets,omitempty"`         // seed presets for the daily ladder job

	// Credentials never come from the config file.
	APIKey    string `json:"-" yaml:"-"`
	APISecret string `json:"-" yaml:"-"`
}

// ServerConfig configures the HTTP relay.
type ServerConfig struct {
	Addr            string `json:"addr" yaml:"addr"`
	ReadTimeoutSec  int    `json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `json:"write_timeout_sec" yaml:"write_timeout_sec"`
	StaticDir       string `json:"static_dir,omitempty" yaml:"static_dir,omitempty"` // control panel assets, served with no-cache headers
	AllowedOrigin   string `json:"allowed_origin" yaml:"allowed_origin"`
}

// KrakenConfig configures the private and public Kraken APIs.
type KrakenConfig struct {
	RESTURL                  string `json:"rest_url" yaml:"rest_url"`
	WSURL                    string `json:"ws_url" yaml:"ws_url"`
	TimeoutSec               int    `json:"timeout_sec" yaml:"timeout_sec"`
	BatchSize                int    `json:"batch_size" yaml:"batch_size"`                       // orders per AddOrderBatch call, 2..15
	DeadlineSec              int    `json:"deadline_sec" yaml:"deadline_sec"`                   // AddOrderBatch deadline relative to now
	ValidateOnly             bool   `json:"validate_only" yaml:"validate_only"`                 // ask Kraken to validate without placing
	ClientOrderIDs           bool   `json:"client_order_ids" yaml:"client_order_ids"`           // attach cl_ord_id to every rung
	RetryAttempts            int    `json:"retry_attempts" yaml:"retry_attempts"`               // retries on transport errors and pre-acceptance rejections
	RetryInitialDelayMs      int    `json:"retry_initial_delay_ms" yaml:"retry_initial_delay_ms"` // first backoff step
	WebSocketPingIntervalSec int    `json:"websocket_ping_interval_sec" yaml:"websocket_ping_interval_sec"`
}

// PaperConfig configures the in-memory exchange used with mode "paper".
type PaperConfig struct {
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance"`
	QuoteAsset      string  `json:"quote_asset" yaml:"quote_asset"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`             // debug, info, warn or error
	Output     string `json:"output" yaml:"output"`           // console, file or both
	File       string `json:"file" yaml:"file"`               // log file path
	MaxSize    int    `json:"max_size" yaml:"max_size"`       // megabytes per file before rotation
	MaxBackups int    `json:"max_backups" yaml:"max_backups"` // rotated files to keep
	MaxAge     int    `json:"max_age" yaml:"max_age"`         // days to keep rotated files
	Compress   bool   `json:"compress" yaml:"compress"`       // gzip rotated files
}
