package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/pricegen"
)

// EnvPrefix is the prefix of environment overrides, e.g. GRIDLAB_SERVER_ADDR.
const EnvPrefix = "GRIDLAB"

// Config stores all configuration for the commands.
// Values are read by viper from a config file and environment variables.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"`
	Grid       GridConfig       `mapstructure:"grid"`
	Scenarios  []ScenarioConfig `mapstructure:"scenarios"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// SimulationConfig mirrors domain.SimulationConfig.
type SimulationConfig struct {
	DurationMinutes  float64 `mapstructure:"duration_minutes" json:"duration_minutes"`
	TimeAcceleration float64 `mapstructure:"time_acceleration" json:"time_acceleration"`
	Volatility       float64 `mapstructure:"volatility" json:"volatility"`
	TrendBias        float64 `mapstructure:"trend_bias" json:"trend_bias"`
	MarketCondition  string  `mapstructure:"market_condition" json:"market_condition"`
	Scenario         string  `mapstructure:"scenario" json:"scenario"`
	SlippageRate     float64 `mapstructure:"slippage_rate" json:"slippage_rate"`
	FeeRate          float64 `mapstructure:"fee_rate" json:"fee_rate"`
	InitialPrice     float64 `mapstructure:"initial_price" json:"initial_price"`
	BaseVolume       float64 `mapstructure:"base_volume" json:"base_volume"`
	TokenID          string  `mapstructure:"token_id" json:"token_id"`
	Seed             uint64  `mapstructure:"seed" json:"seed"`
	RiskFreeRate     float64 `mapstructure:"risk_free_rate" json:"risk_free_rate"`
}

// PortfolioConfig is the starting portfolio of a session.
type PortfolioConfig struct {
	BaseCurrency string             `mapstructure:"base_currency" json:"base_currency"`
	BaseBalance  float64            `mapstructure:"base_balance" json:"base_balance"`
	Holdings     map[string]float64 `mapstructure:"holdings" json:"holdings"`
}

// GridConfig is the grid placed by the headless runner. The price range
// is centered on the initial price, RangePercent wide on each side.
type GridConfig struct {
	Count        int     `mapstructure:"count"`
	BaseAmount   float64 `mapstructure:"base_amount"`
	OrderCount   int     `mapstructure:"order_count"`
	RangePercent float64 `mapstructure:"range_percent"`
}

// ScenarioConfig registers a custom market scenario.
type ScenarioConfig struct {
	Name            string  `mapstructure:"name"`
	Volatility      float64 `mapstructure:"volatility"`
	Trend           float64 `mapstructure:"trend"`
	MeanReversion   float64 `mapstructure:"mean_reversion"`
	JumpProbability float64 `mapstructure:"jump_probability"`
	JumpMagnitude   float64 `mapstructure:"jump_magnitude"`
	MomentumDecay   float64 `mapstructure:"momentum_decay"`
}

// StorageConfig holds archive connection settings. Empty DSNs disable
// the corresponding store.
type StorageConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	Migrate       bool   `mapstructure:"migrate"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPrefix   string        `mapstructure:"metrics_prefix"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Load reads configuration from path (or ./config.yaml when path is
// empty) and GRIDLAB_* environment variables. A missing default config
// file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := domain.DefaultSimulationConfig()

	// Simulation
	v.SetDefault("simulation.duration_minutes", d.DurationMinutes)
	v.SetDefault("simulation.time_acceleration", d.TimeAcceleration)
	v.SetDefault("simulation.volatility", d.Volatility)
	v.SetDefault("simulation.trend_bias", d.TrendBias)
	v.SetDefault("simulation.market_condition", string(d.MarketCondition))
	v.SetDefault("simulation.scenario", "")
	v.SetDefault("simulation.slippage_rate", d.SlippageRate)
	v.SetDefault("simulation.fee_rate", d.FeeRate)
	v.SetDefault("simulation.initial_price", d.InitialPrice)
	v.SetDefault("simulation.base_volume", d.BaseVolume)
	v.SetDefault("simulation.token_id", d.TokenID)
	v.SetDefault("simulation.seed", d.Seed)
	v.SetDefault("simulation.risk_free_rate", d.RiskFreeRate)

	// Portfolio
	v.SetDefault("portfolio.base_currency", "USD")
	v.SetDefault("portfolio.base_balance", 10000.0)

	// Grid
	v.SetDefault("grid.count", 1)
	v.SetDefault("grid.base_amount", 1000.0)
	v.SetDefault("grid.order_count", 10)
	v.SetDefault("grid.range_percent", 0.2)

	// Storage
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.migrate", true)

	// Server
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tick_interval", "1s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.metrics_prefix", "grid_trading_lab")

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the sections that are not validated by domain types.
func (c *Config) Validate() error {
	if _, err := c.SimulationConfig(); err != nil {
		return err
	}
	if c.Portfolio.BaseBalance < 0 {
		return fmt.Errorf("%w: portfolio base balance must be >= 0", domain.ErrInvalidConfiguration)
	}
	if c.Portfolio.BaseCurrency == "" {
		return fmt.Errorf("%w: portfolio base currency is required", domain.ErrInvalidConfiguration)
	}
	if c.Grid.Count < 0 {
		return fmt.Errorf("%w: grid count must be >= 0", domain.ErrInvalidConfiguration)
	}
	if c.Grid.RangePercent <= 0 || c.Grid.RangePercent >= 1 {
		return fmt.Errorf("%w: grid range percent must be in (0,1), got %v", domain.ErrInvalidConfiguration, c.Grid.RangePercent)
	}
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("%w: server tick interval must be positive", domain.ErrInvalidConfiguration)
	}
	for _, s := range c.Scenarios {
		if err := s.Scenario().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SimulationConfig returns the validated domain config.
func (c *Config) SimulationConfig() (domain.SimulationConfig, error) {
	s := c.Simulation
	cfg := domain.SimulationConfig{
		DurationMinutes:  s.DurationMinutes,
		TimeAcceleration: s.TimeAcceleration,
		Volatility:       s.Volatility,
		TrendBias:        s.TrendBias,
		MarketCondition:  domain.MarketCondition(strings.ToLower(s.MarketCondition)),
		Scenario:         s.Scenario,
		SlippageRate:     s.SlippageRate,
		FeeRate:          s.FeeRate,
		InitialPrice:     s.InitialPrice,
		BaseVolume:       s.BaseVolume,
		TokenID:          s.TokenID,
		Seed:             s.Seed,
		RiskFreeRate:     s.RiskFreeRate,
	}
	if err := cfg.Validate(); err != nil {
		return domain.SimulationConfig{}, err
	}
	return cfg, nil
}

// InitialPortfolio builds the starting portfolio.
func (c *Config) InitialPortfolio() *domain.Portfolio {
	p := domain.NewPortfolio(c.Portfolio.BaseCurrency, c.Portfolio.BaseBalance)
	for token, amount := range c.Portfolio.Holdings {
		p.Holdings[token] = amount
	}
	return p
}

// GridConfigs returns the grids to place at the given price.
func (c *Config) GridConfigs(tokenID string, price float64) []domain.GridConfig {
	out := make([]domain.GridConfig, 0, c.Grid.Count)
	for i := 0; i < c.Grid.Count; i++ {
		out = append(out, domain.GridConfig{
			TokenID:    tokenID,
			BaseAmount: c.Grid.BaseAmount,
			OrderCount: c.Grid.OrderCount,
			PriceRange: domain.PriceRange{
				Min: price * (1 - c.Grid.RangePercent),
				Max: price * (1 + c.Grid.RangePercent),
			},
		})
	}
	return out
}

// Scenario converts the entry to a domain scenario.
func (s ScenarioConfig) Scenario() domain.MarketScenario {
	return domain.MarketScenario{
		Name:            s.Name,
		Volatility:      s.Volatility,
		Trend:           s.Trend,
		MeanReversion:   s.MeanReversion,
		JumpProbability: s.JumpProbability,
		JumpMagnitude:   s.JumpMagnitude,
		MomentumDecay:   s.MomentumDecay,
	}
}

// Registry returns the preset registry plus the configured scenarios.
func (c *Config) Registry() (*pricegen.Registry, error) {
	r := pricegen.NewRegistry()
	for _, s := range c.Scenarios {
		if err := r.Register(s.Scenario()); err != nil {
			return nil, fmt.Errorf("register scenario %q: %w", s.Name, err)
		}
	}
	return r, nil
}
