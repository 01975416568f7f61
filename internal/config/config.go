package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"stratum/internal/logging"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Feed drivers.
const (
	FeedHTTP      = "http"
	FeedChainlink = "chainlink"
)

// MinPollInterval is the shortest polling cadence accepted.
const MinPollInterval = 250 * time.Millisecond

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Trend     TrendConfig     `mapstructure:"trend"`
	Candles   CandleConfig    `mapstructure:"candles"`
	Chart     ChartConfig     `mapstructure:"chart"`
	Sparkline SparklineConfig `mapstructure:"sparkline"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// FeedConfig selects and parameterises the price feed.
type FeedConfig struct {
	Driver    string          `mapstructure:"driver"`
	HTTP      HTTPFeedConfig  `mapstructure:"http"`
	Chainlink ChainlinkConfig `mapstructure:"chainlink"`
}

// HTTPFeedConfig covers the REST price table service.
type HTTPFeedConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	PricesPath      string        `mapstructure:"prices_path"`
	InstrumentsPath string        `mapstructure:"instruments_path"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// ChainlinkConfig covers on-chain aggregator access.
type ChainlinkConfig struct {
	RPCURL         string                `mapstructure:"rpc_url"`
	RequestTimeout time.Duration         `mapstructure:"request_timeout"`
	Feeds          []ChainlinkInstrument `mapstructure:"feeds"`
}

// ChainlinkInstrument maps an instrument to its aggregator contract.
type ChainlinkInstrument struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
}

// StorageConfig selects the key-value durability backend.
type StorageConfig struct {
	Driver     string         `mapstructure:"driver"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// TrendConfig sizes the per-instrument trend buffers.
type TrendConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// CandleConfig controls candle aggregation.
type CandleConfig struct {
	Capacity int           `mapstructure:"capacity"`
	Mode     string        `mapstructure:"mode"`
	Interval time.Duration `mapstructure:"interval"`
}

// PaddingConfig insets the plotting area, in CSS pixels.
type PaddingConfig struct {
	Top    float64 `mapstructure:"top"`
	Right  float64 `mapstructure:"right"`
	Bottom float64 `mapstructure:"bottom"`
	Left   float64 `mapstructure:"left"`
}

// ChartConfig parameterises the candlestick renderer.
type ChartConfig struct {
	Width           float64       `mapstructure:"width"`
	Height          float64       `mapstructure:"height"`
	DPR             float64       `mapstructure:"dpr"`
	Padding         PaddingConfig `mapstructure:"padding"`
	PaddingRatio    float64       `mapstructure:"padding_ratio"`
	CandleWidth     float64       `mapstructure:"candle_width"`
	CandleGap       float64       `mapstructure:"candle_gap"`
	GridLines       int           `mapstructure:"grid_lines"`
	SmoothingFactor float64       `mapstructure:"smoothing_factor"`
	AnchorMode      string        `mapstructure:"anchor_mode"`
	VisibleCount    int           `mapstructure:"visible_count"`
	FontSize        float64       `mapstructure:"font_size"`
	FrameInterval   time.Duration `mapstructure:"frame_interval"`
	Colors          ColorConfig   `mapstructure:"colors"`
}

// ColorConfig holds hex colors for chart elements.
type ColorConfig struct {
	Up         string `mapstructure:"up"`
	Down       string `mapstructure:"down"`
	Grid       string `mapstructure:"grid"`
	Label      string `mapstructure:"label"`
	Marker     string `mapstructure:"marker"`
	Background string `mapstructure:"background"`
}

// SparklineConfig sizes the trend polyline.
type SparklineConfig struct {
	Width    float64 `mapstructure:"width"`
	Height   float64 `mapstructure:"height"`
	PaddingX float64 `mapstructure:"padding_x"`
	PaddingY float64 `mapstructure:"padding_y"`
	Up       string  `mapstructure:"up"`
	Down     string  `mapstructure:"down"`
}

// ServerConfig controls the optional view server.
type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	IconsDir string `mapstructure:"icons_dir"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRATUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stratum")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1s")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("feed.driver", FeedHTTP)
	v.SetDefault("feed.http.base_url", "https://main-crypto.onrender.com")
	v.SetDefault("feed.http.prices_path", "/price")
	v.SetDefault("feed.http.instruments_path", "/coins")
	v.SetDefault("feed.http.request_timeout", "5s")
	v.SetDefault("feed.http.user_agent", "stratum/1.0")
	v.SetDefault("feed.chainlink.request_timeout", "10s")

	v.SetDefault("storage.driver", StorageSQLite)
	v.SetDefault("storage.sqlite_path", "data/stratum.db")
	v.SetDefault("storage.postgres.max_open_conns", 5)
	v.SetDefault("storage.postgres.max_idle_conns", 1)
	v.SetDefault("storage.postgres.conn_max_lifetime", "30m")

	v.SetDefault("trend.capacity", 50)

	v.SetDefault("candles.capacity", 30)
	v.SetDefault("candles.mode", "tick")
	v.SetDefault("candles.interval", "1m")

	v.SetDefault("chart.width", 500.0)
	v.SetDefault("chart.height", 400.0)
	v.SetDefault("chart.dpr", 1.0)
	v.SetDefault("chart.padding.top", 20.0)
	v.SetDefault("chart.padding.right", 60.0)
	v.SetDefault("chart.padding.bottom", 30.0)
	v.SetDefault("chart.padding.left", 50.0)
	v.SetDefault("chart.padding_ratio", 0.05)
	v.SetDefault("chart.candle_width", 8.0)
	v.SetDefault("chart.candle_gap", 4.0)
	v.SetDefault("chart.grid_lines", 6)
	v.SetDefault("chart.smoothing_factor", 0.3)
	v.SetDefault("chart.anchor_mode", "right")
	v.SetDefault("chart.visible_count", 30)
	v.SetDefault("chart.font_size", 10.0)
	v.SetDefault("chart.frame_interval", "50ms")
	v.SetDefault("chart.colors.up", "10b981")
	v.SetDefault("chart.colors.down", "ef4444")
	v.SetDefault("chart.colors.grid", "1f2937")
	v.SetDefault("chart.colors.label", "999999")
	v.SetDefault("chart.colors.marker", "ffffff")
	v.SetDefault("chart.colors.background", "111827")

	v.SetDefault("sparkline.width", 100.0)
	v.SetDefault("sparkline.height", 60.0)
	v.SetDefault("sparkline.padding_x", 5.0)
	v.SetDefault("sparkline.padding_y", 5.0)
	v.SetDefault("sparkline.up", "22c55e")
	v.SetDefault("sparkline.down", "ef4444")

	v.SetDefault("server.listen", "")
	v.SetDefault("server.icons_dir", "icons")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval < MinPollInterval {
		return fmt.Errorf("scheduler.interval must be at least %s", MinPollInterval)
	}
	switch c.Feed.Driver {
	case FeedHTTP:
		if c.Feed.HTTP.BaseURL == "" {
			return fmt.Errorf("feed.http.base_url is required")
		}
	case FeedChainlink:
		if c.Feed.Chainlink.RPCURL == "" {
			return fmt.Errorf("feed.chainlink.rpc_url is required")
		}
		if len(c.Feed.Chainlink.Feeds) == 0 {
			return fmt.Errorf("feed.chainlink.feeds 至少需要一个合约")
		}
	default:
		return fmt.Errorf("unknown feed.driver %q", c.Feed.Driver)
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Trend.Capacity <= 0 {
		return fmt.Errorf("trend.capacity must be greater than zero")
	}
	if c.Candles.Capacity <= 0 {
		return fmt.Errorf("candles.capacity must be greater than zero")
	}
	if c.Candles.Mode != "tick" && c.Candles.Mode != "interval" {
		return fmt.Errorf("candles.mode must be tick or interval")
	}
	if c.Candles.Mode == "interval" && c.Candles.Interval <= 0 {
		return fmt.Errorf("candles.interval must be greater than zero")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 || c.Chart.DPR <= 0 {
		return fmt.Errorf("chart width, height and dpr must be positive")
	}
	if c.Chart.FrameInterval < 0 {
		return fmt.Errorf("chart.frame_interval must not be negative")
	}
	if c.Chart.SmoothingFactor < 0 || c.Chart.SmoothingFactor >= 1 {
		return fmt.Errorf("chart.smoothing_factor must be in [0,1)")
	}
	if c.Chart.AnchorMode != "right" && c.Chart.AnchorMode != "left" {
		return fmt.Errorf("chart.anchor_mode must be right or left")
	}
	if c.Chart.GridLines <= 0 {
		return fmt.Errorf("chart.grid_lines must be greater than zero")
	}
	return nil
}

// AggressivePolling reports whether the interval is below the recommended 500ms floor.
func (c *Config) AggressivePolling() bool {
	return c.Scheduler.Interval < 2*MinPollInterval
}
