// Package config loads and validates the bot configuration. Settings are
// environment-first under the ZO_ prefix (ZO_EXCHANGE_SECRET_KEY,
// ZO_GRID_TOTAL_ORDERS, …) with an optional YAML file layered underneath
// when ZO_CONFIG points at one.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"zo-gridbot/internal/exchange"
	"zo-gridbot/internal/risk"
	"zo-gridbot/internal/strategy"
)

// Exchange is the venue connection block.
type Exchange struct {
	APIURL    string `mapstructure:"api_url"`
	SecretKey string `mapstructure:"secret_key"`
	MarketID  uint32 `mapstructure:"market_id"`
	Symbol    string `mapstructure:"symbol"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// Grid holds the ladder parameters. Decimal-valued settings are strings
// so exact values survive into the planner's arithmetic.
type Grid struct {
	TotalOrders     int    `mapstructure:"total_orders"`
	WindowPercent   string `mapstructure:"window_percent"`
	OrderSize       string `mapstructure:"order_size"`
	Offset          string `mapstructure:"offset"`
	Step            string `mapstructure:"step"`
	MaxMultiplier   string `mapstructure:"max_multiplier"`
	MinValidPrice   string `mapstructure:"min_valid_price"`
	InitialPosition string `mapstructure:"initial_position"`
}

// Risk is the regime-gate block.
type Risk struct {
	RSILow          float64 `mapstructure:"rsi_low"`
	RSIHigh         float64 `mapstructure:"rsi_high"`
	ADXTrend        float64 `mapstructure:"adx_trend"`
	ADXStrong       float64 `mapstructure:"adx_strong"`
	CooldownMinutes int     `mapstructure:"cooldown_minutes"`
}

// Feed selects the candle source for the indicators.
type Feed struct {
	Mode     string `mapstructure:"mode"` // "rest" or "ws"
	Symbol   string `mapstructure:"symbol"`
	Interval string `mapstructure:"interval"`
	Period   int    `mapstructure:"period"`
}

// Engine is the control-loop block.
type Engine struct {
	TickSeconds         int  `mapstructure:"tick_seconds"`
	CooldownTickSeconds int  `mapstructure:"cooldown_tick_seconds"`
	FlattenOnCooldown   bool `mapstructure:"flatten_on_cooldown"`
	FlattenOnExit       bool `mapstructure:"flatten_on_exit"`
}

// Log is the logging block.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Config is the root.
type Config struct {
	Exchange Exchange `mapstructure:"exchange"`
	Grid     Grid     `mapstructure:"grid"`
	Risk     Risk     `mapstructure:"risk"`
	Feed     Feed     `mapstructure:"feed"`
	Engine   Engine   `mapstructure:"engine"`
	Log      Log      `mapstructure:"log"`
}

// Load reads defaults, the optional YAML file from ZO_CONFIG, and the
// environment, in ascending precedence. It does not validate.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ZO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("ZO_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key; AutomaticEnv only surfaces variables
// for keys viper already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.api_url", "https://zo-mainnet.n1.xyz")
	v.SetDefault("exchange.secret_key", "")
	v.SetDefault("exchange.market_id", 1)
	v.SetDefault("exchange.symbol", "BTC-PERP")
	v.SetDefault("exchange.dry_run", false)

	v.SetDefault("grid.total_orders", 18)
	v.SetDefault("grid.window_percent", "0.12")
	v.SetDefault("grid.order_size", "0.001")
	v.SetDefault("grid.offset", "5")
	v.SetDefault("grid.step", "10")
	v.SetDefault("grid.max_multiplier", "15")
	v.SetDefault("grid.min_valid_price", "0")
	v.SetDefault("grid.initial_position", "0")

	v.SetDefault("risk.rsi_low", 30.0)
	v.SetDefault("risk.rsi_high", 70.0)
	v.SetDefault("risk.adx_trend", 25.0)
	v.SetDefault("risk.adx_strong", 30.0)
	v.SetDefault("risk.cooldown_minutes", 15)

	v.SetDefault("feed.mode", "rest")
	v.SetDefault("feed.symbol", "BTCUSDT")
	v.SetDefault("feed.interval", "15m")
	v.SetDefault("feed.period", 14)

	v.SetDefault("engine.tick_seconds", 30)
	v.SetDefault("engine.cooldown_tick_seconds", 30)
	v.SetDefault("engine.flatten_on_cooldown", true)
	v.SetDefault("engine.flatten_on_exit", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks every constraint the bot relies on. Any failure here is
// fatal at boot.
func (c *Config) Validate() error {
	if c.Exchange.APIURL == "" {
		return fmt.Errorf("exchange.api_url is required")
	}
	if c.Exchange.SecretKey == "" {
		return fmt.Errorf("exchange.secret_key is required")
	}
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}

	if c.Grid.TotalOrders < 2 {
		return fmt.Errorf("grid.total_orders must be at least 2, got %d", c.Grid.TotalOrders)
	}
	for key, val := range map[string]string{
		"grid.window_percent": c.Grid.WindowPercent,
		"grid.order_size":     c.Grid.OrderSize,
		"grid.offset":         c.Grid.Offset,
		"grid.step":           c.Grid.Step,
		"grid.max_multiplier": c.Grid.MaxMultiplier,
	} {
		d, err := decimal.NewFromString(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if !d.IsPositive() {
			return fmt.Errorf("%s must be positive, got %s", key, val)
		}
	}
	if w, _ := decimal.NewFromString(c.Grid.WindowPercent); w.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("grid.window_percent must be below 1, got %s", c.Grid.WindowPercent)
	}
	if _, err := decimal.NewFromString(c.Grid.MinValidPrice); err != nil {
		return fmt.Errorf("grid.min_valid_price: %w", err)
	}
	if _, err := decimal.NewFromString(c.Grid.InitialPosition); err != nil {
		return fmt.Errorf("grid.initial_position: %w", err)
	}

	if c.Risk.RSILow <= 0 || c.Risk.RSIHigh >= 100 || c.Risk.RSILow >= c.Risk.RSIHigh {
		return fmt.Errorf("risk RSI bounds must satisfy 0 < low < high < 100")
	}
	if c.Risk.ADXTrend <= 0 || c.Risk.ADXTrend >= c.Risk.ADXStrong {
		return fmt.Errorf("risk ADX thresholds must satisfy 0 < trend < strong")
	}
	if c.Risk.CooldownMinutes <= 0 {
		return fmt.Errorf("risk.cooldown_minutes must be positive")
	}

	switch c.Feed.Mode {
	case "rest", "ws":
	default:
		return fmt.Errorf("feed.mode must be rest or ws, got %q", c.Feed.Mode)
	}
	if c.Feed.Symbol == "" || c.Feed.Interval == "" {
		return fmt.Errorf("feed.symbol and feed.interval are required")
	}
	if c.Feed.Period < 2 {
		return fmt.Errorf("feed.period must be at least 2, got %d", c.Feed.Period)
	}

	if c.Engine.TickSeconds <= 0 || c.Engine.CooldownTickSeconds <= 0 {
		return fmt.Errorf("engine tick intervals must be positive")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// GridParams converts the validated grid block into planner parameters.
func (c *Config) GridParams() strategy.Params {
	return strategy.Params{
		TotalOrders:   c.Grid.TotalOrders,
		Window:        decimal.RequireFromString(c.Grid.WindowPercent),
		OrderSize:     decimal.RequireFromString(c.Grid.OrderSize),
		Offset:        decimal.RequireFromString(c.Grid.Offset),
		Step:          decimal.RequireFromString(c.Grid.Step),
		MaxMultiplier: decimal.RequireFromString(c.Grid.MaxMultiplier),
		MinValidPrice: decimal.RequireFromString(c.Grid.MinValidPrice),
	}
}

// InitialPosition returns the configured starting position.
func (c *Config) InitialPosition() decimal.Decimal {
	return decimal.RequireFromString(c.Grid.InitialPosition)
}

// Thresholds converts the risk block for the gate.
func (c *Config) Thresholds() risk.Thresholds {
	return risk.Thresholds{
		RSILow:    c.Risk.RSILow,
		RSIHigh:   c.Risk.RSIHigh,
		TrendADX:  c.Risk.ADXTrend,
		StrongADX: c.Risk.ADXStrong,
		Cooldown:  time.Duration(c.Risk.CooldownMinutes) * time.Minute,
	}
}

// ExchangeConfig converts the exchange block for the adapter.
func (c *Config) ExchangeConfig() exchange.Config {
	return exchange.Config{
		BaseURL:   c.Exchange.APIURL,
		SecretKey: c.Exchange.SecretKey,
		MarketID:  c.Exchange.MarketID,
		Symbol:    c.Exchange.Symbol,
		DryRun:    c.Exchange.DryRun,
	}
}

// ParseLevel maps the config level string onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q not recognized", s)
	}
}
