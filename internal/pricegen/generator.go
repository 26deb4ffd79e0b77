// Package pricegen generates synthetic price and volume samples.
//
// The process is Markov: each sample depends on the current price and the
// generator's rolling state (GARCH variance, momentum, last return).
package pricegen

import (
	"fmt"
	"math"
	"time"

	"grid-trading-lab/internal/domain"
)

// GARCH(1,1) coefficients.
const (
	garchOmega = 0.000001
	garchAlpha = 0.1
	garchBeta  = 0.85
)

const (
	// historyWindow bounds the retained return history.
	historyWindow = 100

	// momentumWeight scales the momentum contribution.
	momentumWeight = 0.3

	// priceFloorRatio is the lowest next price as a fraction of the current one.
	priceFloorRatio = 0.01

	// volumeVolatilityScale ties volume to realized volatility.
	volumeVolatilityScale = 10
)

// Sample is one generated step.
type Sample struct {
	Price      float64
	Volume     float64
	Return     float64 // log return actually applied
	Volatility float64 // realized per-step volatility
	Jumped     bool
}

// Generator holds the rolling state of one price path.
type Generator struct {
	rng            Rand
	reversionLevel float64

	variance   float64
	volatility float64
	momentum   float64
	lastReturn float64
	returns    []float64
}

// GeneratorOptions contains configuration for creating a Generator.
type GeneratorOptions struct {
	Rand           Rand    // required
	ReversionLevel float64 // price the mean-reversion term pulls toward, > 0
}

// NewGenerator creates a generator at the GARCH long-run variance.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	if opts.Rand == nil {
		return nil, fmt.Errorf("%w: generator requires a random source", domain.ErrInvalidConfiguration)
	}
	if !(opts.ReversionLevel > 0) || math.IsInf(opts.ReversionLevel, 0) {
		return nil, fmt.Errorf("%w: reversion level must be positive, got %v", domain.ErrInvalidConfiguration, opts.ReversionLevel)
	}

	variance := garchOmega / (1 - garchAlpha - garchBeta)
	return &Generator{
		rng:            opts.Rand,
		reversionLevel: opts.ReversionLevel,
		variance:       variance,
		volatility:     math.Sqrt(variance),
		returns:        make([]float64, 0, historyWindow),
	}, nil
}

// Next produces the sample following current. step is the simulated time
// between samples.
func (g *Generator) Next(current float64, step time.Duration, cfg domain.SimulationConfig, sc domain.MarketScenario) (Sample, error) {
	if !(current > 0) || math.IsInf(current, 0) {
		return Sample{}, fmt.Errorf("%w: current price must be positive and finite, got %v", domain.ErrInvalidConfiguration, current)
	}
	dt := step.Hours() / 24

	g.variance = garchOmega + garchAlpha*g.lastReturn*g.lastReturn + garchBeta*g.variance
	vol := math.Sqrt(g.variance) * (1 + sc.Volatility*cfg.Volatility)
	g.volatility = vol

	drift := (sc.Trend + cfg.TrendBias) * dt
	shock := standardNormal(g.rng) * math.Sqrt(dt) * cfg.Volatility
	reversion := -sc.MeanReversion * math.Log(current/g.reversionLevel) * dt

	g.momentum = g.momentum*sc.MomentumDecay + g.lastReturn*(1-sc.MomentumDecay)
	momentum := g.momentum * dt * momentumWeight

	jump, jumped := g.jump(sc)

	ret := (drift + shock + reversion + momentum + jump) * math.Sqrt(vol)

	next := clampPrice(current, current*math.Exp(ret))

	applied := math.Log(next / current)
	g.record(applied)

	volume := cfg.BaseVolume * (1 + volumeVolatilityScale*vol) * (0.5 + 1.5*g.rng.Float64())

	return Sample{
		Price:      next,
		Volume:     volume,
		Return:     applied,
		Volatility: vol,
		Jumped:     jumped,
	}, nil
}

// clampPrice returns next, or the floor below current when next is not a
// finite price at or above it. The floor never underflows to zero.
func clampPrice(current, next float64) float64 {
	floor := math.Max(current*priceFloorRatio, math.SmallestNonzeroFloat64)
	if !(next > 0) || math.IsInf(next, 0) || next < floor {
		return floor
	}
	return next
}

// jump draws the optional jump term.
func (g *Generator) jump(sc domain.MarketScenario) (float64, bool) {
	if g.rng.Float64() >= sc.JumpProbability {
		return 0, false
	}
	sign := 1.0
	if g.rng.Float64() < 0.5 {
		sign = -1.0
	}
	return sign * sc.JumpMagnitude * (0.5 + 1.5*g.rng.Float64()), true
}

func (g *Generator) record(ret float64) {
	g.lastReturn = ret
	if len(g.returns) == historyWindow {
		copy(g.returns, g.returns[1:])
		g.returns = g.returns[:historyWindow-1]
	}
	g.returns = append(g.returns, ret)
}

// Volatility returns the realized volatility of the last step.
func (g *Generator) Volatility() float64 {
	return g.volatility
}

// Momentum returns the smoothed momentum state.
func (g *Generator) Momentum() float64 {
	return g.momentum
}

// RecentReturns returns a copy of the bounded return history, oldest first.
func (g *Generator) RecentReturns() []float64 {
	out := make([]float64, len(g.returns))
	copy(out, g.returns)
	return out
}

// GeneratePath runs the generator for n steps from start and returns the
// n generated prices.
func (g *Generator) GeneratePath(start float64, n int, step time.Duration, cfg domain.SimulationConfig, sc domain.MarketScenario) ([]float64, error) {
	prices := make([]float64, 0, n)
	price := start
	for i := 0; i < n; i++ {
		s, err := g.Next(price, step, cfg, sc)
		if err != nil {
			return nil, err
		}
		price = s.Price
		prices = append(prices, price)
	}
	return prices, nil
}
