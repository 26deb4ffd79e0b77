package domain

import "fmt"

// MarketScenario parameterizes the price process.
type MarketScenario struct {
	Name            string
	Volatility      float64 // scales GARCH volatility
	Trend           float64 // drift per day
	MeanReversion   float64 // pull strength toward the reversion level
	JumpProbability float64 // per-step jump probability, [0,1]
	JumpMagnitude   float64 // base jump size in log-return units
	MomentumDecay   float64 // smoothing factor of the momentum average, [0,1)
}

// Validate checks scenario parameter ranges.
func (s MarketScenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: scenario name is required", ErrInvalidConfiguration)
	}
	for name, v := range map[string]float64{
		"volatility":     s.Volatility,
		"mean reversion": s.MeanReversion,
		"jump magnitude": s.JumpMagnitude,
	} {
		if !finite(v) || v < 0 {
			return fmt.Errorf("%w: scenario %s %s must be >= 0, got %v", ErrInvalidConfiguration, s.Name, name, v)
		}
	}
	if !finite(s.Trend) {
		return fmt.Errorf("%w: scenario %s trend must be finite", ErrInvalidConfiguration, s.Name)
	}
	if !finite(s.JumpProbability) || s.JumpProbability < 0 || s.JumpProbability > 1 {
		return fmt.Errorf("%w: scenario %s jump probability must be in [0,1], got %v", ErrInvalidConfiguration, s.Name, s.JumpProbability)
	}
	if !rateInRange(s.MomentumDecay) {
		return fmt.Errorf("%w: scenario %s momentum decay must be in [0,1), got %v", ErrInvalidConfiguration, s.Name, s.MomentumDecay)
	}
	return nil
}

// ScenarioBull is the preset for a rising market.
func ScenarioBull() MarketScenario {
	return MarketScenario{
		Name:            string(MarketBull),
		Volatility:      0.3,
		Trend:           0.05,
		MeanReversion:   0.01,
		JumpProbability: 0.01,
		JumpMagnitude:   0.03,
		MomentumDecay:   0.9,
	}
}

// ScenarioBear is the preset for a falling market.
func ScenarioBear() MarketScenario {
	return MarketScenario{
		Name:            string(MarketBear),
		Volatility:      0.4,
		Trend:           -0.05,
		MeanReversion:   0.01,
		JumpProbability: 0.015,
		JumpMagnitude:   0.04,
		MomentumDecay:   0.9,
	}
}

// ScenarioSideways is the preset for a range-bound market.
func ScenarioSideways() MarketScenario {
	return MarketScenario{
		Name:            string(MarketSideways),
		Volatility:      0.2,
		Trend:           0,
		MeanReversion:   0.1,
		JumpProbability: 0.005,
		JumpMagnitude:   0.02,
		MomentumDecay:   0.8,
	}
}

// ScenarioVolatile is the preset for a high-volatility market.
func ScenarioVolatile() MarketScenario {
	return MarketScenario{
		Name:            string(MarketVolatile),
		Volatility:      0.8,
		Trend:           0,
		MeanReversion:   0.02,
		JumpProbability: 0.03,
		JumpMagnitude:   0.08,
		MomentumDecay:   0.95,
	}
}

// PresetScenarios returns the preset scenarios, freshly built on each call.
func PresetScenarios() []MarketScenario {
	return []MarketScenario{ScenarioBull(), ScenarioBear(), ScenarioSideways(), ScenarioVolatile()}
}
