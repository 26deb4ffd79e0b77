package domain

import (
	"fmt"
	"math"
	"time"
)

// MarketCondition tags the preset scenario a session runs under.
type MarketCondition string

// Market condition constants
const (
	MarketBull     MarketCondition = "bull"
	MarketBear     MarketCondition = "bear"
	MarketSideways MarketCondition = "sideways"
	MarketVolatile MarketCondition = "volatile"
)

// Valid reports whether c is one of the known market conditions.
func (c MarketCondition) Valid() bool {
	switch c {
	case MarketBull, MarketBear, MarketSideways, MarketVolatile:
		return true
	default:
		return false
	}
}

// SimulationConfig is the immutable configuration of one session.
type SimulationConfig struct {
	DurationMinutes  float64         // simulated duration before auto-stop
	TimeAcceleration float64         // a tick advances 1 minute / TimeAcceleration
	Volatility       float64         // volatility level, >= 0
	TrendBias        float64         // added to the scenario trend
	MarketCondition  MarketCondition // selects the preset scenario
	Scenario         string          // optional custom scenario name, overrides MarketCondition
	SlippageRate     float64         // max adverse slippage per fill, [0,1)
	FeeRate          float64         // fee per unit amount, [0,1)

	InitialPrice float64 // starting price and mean-reversion level
	BaseVolume   float64 // volume scale
	TokenID      string  // simulated asset
	Seed         uint64  // seeds the default random sources
	RiskFreeRate float64 // annual rate used by performance reports
}

// DefaultSimulationConfig returns a one-hour sideways session at 1.0.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		DurationMinutes:  60,
		TimeAcceleration: 1,
		Volatility:       0.5,
		TrendBias:        0,
		MarketCondition:  MarketSideways,
		SlippageRate:     0.001,
		FeeRate:          0.002,
		InitialPrice:     1.0,
		BaseVolume:       1000,
		TokenID:          "token",
		Seed:             1,
		RiskFreeRate:     0.02,
	}
}

// Validate checks the invariants of the config.
func (c SimulationConfig) Validate() error {
	if !finite(c.DurationMinutes) || c.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfiguration, c.DurationMinutes)
	}
	if !finite(c.TimeAcceleration) || c.TimeAcceleration <= 0 {
		return fmt.Errorf("%w: time acceleration must be positive, got %v", ErrInvalidConfiguration, c.TimeAcceleration)
	}
	if !finite(c.Volatility) || c.Volatility < 0 {
		return fmt.Errorf("%w: volatility must be >= 0, got %v", ErrInvalidConfiguration, c.Volatility)
	}
	if !finite(c.TrendBias) {
		return fmt.Errorf("%w: trend bias must be finite", ErrInvalidConfiguration)
	}
	if c.Scenario == "" && !c.MarketCondition.Valid() {
		return fmt.Errorf("%w: unknown market condition %q", ErrInvalidConfiguration, c.MarketCondition)
	}
	if !rateInRange(c.SlippageRate) {
		return fmt.Errorf("%w: slippage rate must be in [0,1), got %v", ErrInvalidConfiguration, c.SlippageRate)
	}
	if !rateInRange(c.FeeRate) {
		return fmt.Errorf("%w: fee rate must be in [0,1), got %v", ErrInvalidConfiguration, c.FeeRate)
	}
	if !finite(c.InitialPrice) || c.InitialPrice <= 0 {
		return fmt.Errorf("%w: initial price must be positive, got %v", ErrInvalidConfiguration, c.InitialPrice)
	}
	if !finite(c.BaseVolume) || c.BaseVolume < 0 {
		return fmt.Errorf("%w: base volume must be >= 0, got %v", ErrInvalidConfiguration, c.BaseVolume)
	}
	if c.TokenID == "" {
		return fmt.Errorf("%w: token id is required", ErrInvalidConfiguration)
	}
	if !finite(c.RiskFreeRate) {
		return fmt.Errorf("%w: risk-free rate must be finite", ErrInvalidConfiguration)
	}
	return nil
}

// TickStep is the simulated time covered by one tick.
func (c SimulationConfig) TickStep() time.Duration {
	return time.Duration(float64(time.Minute) / c.TimeAcceleration)
}

// TotalDuration is the simulated time after which a session stops.
func (c SimulationConfig) TotalDuration() time.Duration {
	return time.Duration(c.DurationMinutes * float64(time.Minute))
}

// ScenarioName resolves the scenario lookup key.
func (c SimulationConfig) ScenarioName() string {
	if c.Scenario != "" {
		return c.Scenario
	}
	return string(c.MarketCondition)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func rateInRange(v float64) bool {
	return finite(v) && v >= 0 && v < 1
}
