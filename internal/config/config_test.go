package config

import (
	"testing"
)

func validConfig() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	cfg.Exchange.SecretKey = "not-a-real-key"
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults plus secret key fail validation: %v", err)
	}

	p := cfg.GridParams()
	if p.TotalOrders != 18 {
		t.Errorf("TotalOrders = %d, want 18", p.TotalOrders)
	}
	if p.Window.String() != "0.12" {
		t.Errorf("Window = %s, want 0.12", p.Window)
	}
	if !cfg.InitialPosition().IsZero() {
		t.Errorf("InitialPosition = %s, want 0", cfg.InitialPosition())
	}

	th := cfg.Thresholds()
	if th.TrendADX != 25 || th.StrongADX != 30 {
		t.Errorf("ADX thresholds = %v/%v, want 25/30", th.TrendADX, th.StrongADX)
	}
	if th.Cooldown.Minutes() != 15 {
		t.Errorf("Cooldown = %v, want 15m", th.Cooldown)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ZO_GRID_TOTAL_ORDERS", "24")
	t.Setenv("ZO_EXCHANGE_DRY_RUN", "true")
	t.Setenv("ZO_RISK_ADX_STRONG", "35")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.TotalOrders != 24 {
		t.Errorf("TotalOrders = %d, want 24 from env", cfg.Grid.TotalOrders)
	}
	if !cfg.Exchange.DryRun {
		t.Error("DryRun not set from env")
	}
	if cfg.Risk.ADXStrong != 35 {
		t.Errorf("ADXStrong = %v, want 35 from env", cfg.Risk.ADXStrong)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret key", func(c *Config) { c.Exchange.SecretKey = "" }},
		{"one order", func(c *Config) { c.Grid.TotalOrders = 1 }},
		{"negative size", func(c *Config) { c.Grid.OrderSize = "-0.001" }},
		{"unparseable step", func(c *Config) { c.Grid.Step = "ten" }},
		{"window at 1", func(c *Config) { c.Grid.WindowPercent = "1" }},
		{"inverted RSI bounds", func(c *Config) { c.Risk.RSILow, c.Risk.RSIHigh = 70, 30 }},
		{"trend above strong", func(c *Config) { c.Risk.ADXTrend = 40 }},
		{"zero cooldown", func(c *Config) { c.Risk.CooldownMinutes = 0 }},
		{"bad feed mode", func(c *Config) { c.Feed.Mode = "csv" }},
		{"tiny period", func(c *Config) { c.Feed.Period = 1 }},
		{"zero tick", func(c *Config) { c.Engine.TickSeconds = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
