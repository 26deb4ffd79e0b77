package pricegen

import (
	"fmt"
	"math"
	"time"

	"grid-trading-lab/internal/domain"
)

// choleskyTolerance absorbs rounding in symmetry and semidefinite checks.
const choleskyTolerance = 1e-9

// Cholesky returns the lower-triangular L with L·Lᵀ = m for any symmetric
// positive semidefinite m; a zero pivot yields a zero column.
// GenerateCorrelatedPaths additionally requires a correlation matrix.
func Cholesky(m [][]float64) ([][]float64, error) {
	n := len(m)
	if n == 0 {
		return nil, fmt.Errorf("%w: correlation matrix is empty", domain.ErrInvalidConfiguration)
	}
	for i, row := range m {
		if len(row) != n {
			return nil, fmt.Errorf("%w: correlation matrix is not square (row %d has %d columns, want %d)", domain.ErrInvalidConfiguration, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: correlation matrix has non-finite entry at (%d,%d)", domain.ErrInvalidConfiguration, i, j)
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			if math.Abs(m[i][j]-m[j][i]) > choleskyTolerance {
				return nil, fmt.Errorf("%w: correlation matrix is not symmetric at (%d,%d)", domain.ErrInvalidConfiguration, i, j)
			}
		}
	}

	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}

	for j := 0; j < n; j++ {
		d := m[j][j]
		for k := 0; k < j; k++ {
			d -= l[j][k] * l[j][k]
		}
		if d < -choleskyTolerance {
			return nil, fmt.Errorf("%w: correlation matrix is not positive semidefinite (pivot %d = %v)", domain.ErrInvalidConfiguration, j, d)
		}
		if d <= choleskyTolerance {
			// Zero pivot: the rest of the column must also vanish.
			for i := j + 1; i < n; i++ {
				s := m[i][j]
				for k := 0; k < j; k++ {
					s -= l[i][k] * l[j][k]
				}
				if math.Abs(s) > choleskyTolerance {
					return nil, fmt.Errorf("%w: correlation matrix is not decomposable at column %d", domain.ErrInvalidConfiguration, j)
				}
			}
			continue
		}

		l[j][j] = math.Sqrt(d)
		for i := j + 1; i < n; i++ {
			s := m[i][j]
			for k := 0; k < j; k++ {
				s -= l[i][k] * l[j][k]
			}
			l[i][j] = s / l[j][j]
		}
	}
	return l, nil
}

// validateCorrelation checks the unit diagonal and |ρ| ≤ 1. Shape,
// symmetry and definiteness are left to Cholesky.
func validateCorrelation(m [][]float64) error {
	for i, row := range m {
		for j, v := range row {
			if i == j && math.Abs(v-1) > choleskyTolerance {
				return fmt.Errorf("%w: correlation matrix diagonal (%d,%d) must be 1, got %v", domain.ErrInvalidConfiguration, i, j, v)
			}
			if !(math.Abs(v) <= 1+choleskyTolerance) {
				return fmt.Errorf("%w: correlation (%d,%d) must be in [-1,1], got %v", domain.ErrInvalidConfiguration, i, j, v)
			}
		}
	}
	return nil
}

// MultiAssetConfig describes a correlated multi-asset path.
type MultiAssetConfig struct {
	Correlation [][]float64   // N×N
	StartPrices []float64     // len N, each > 0
	Steps       int           // samples per asset
	Step        time.Duration // simulated time per sample
	Volatility  float64       // per-day volatility
	Trend       float64       // per-day drift
}

// GenerateCorrelatedPaths draws N independent standard-normal series,
// correlates them through the Cholesky factor of the correlation matrix
// and maps each to a price path with the exponential-return rule.
// paths[i][t] is the price of asset i after step t.
func GenerateCorrelatedPaths(rng Rand, cfg MultiAssetConfig) ([][]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", domain.ErrInvalidConfiguration)
	}
	if err := validateCorrelation(cfg.Correlation); err != nil {
		return nil, err
	}
	l, err := Cholesky(cfg.Correlation)
	if err != nil {
		return nil, err
	}
	n := len(l)
	if len(cfg.StartPrices) != n {
		return nil, fmt.Errorf("%w: %d start prices for %d assets", domain.ErrInvalidConfiguration, len(cfg.StartPrices), n)
	}
	for i, p := range cfg.StartPrices {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: start price %d must be positive", domain.ErrInvalidConfiguration, i)
		}
	}
	if cfg.Steps < 0 || cfg.Volatility < 0 {
		return nil, fmt.Errorf("%w: steps and volatility must be >= 0", domain.ErrInvalidConfiguration)
	}

	dt := cfg.Step.Hours() / 24
	paths := make([][]float64, n)
	prices := make([]float64, n)
	copy(prices, cfg.StartPrices)
	for i := range paths {
		paths[i] = make([]float64, 0, cfg.Steps)
	}

	z := make([]float64, n)
	for t := 0; t < cfg.Steps; t++ {
		for i := range z {
			z[i] = standardNormal(rng)
		}
		for i := 0; i < n; i++ {
			corr := 0.0
			for k := 0; k <= i; k++ {
				corr += l[i][k] * z[k]
			}
			ret := cfg.Trend*dt + cfg.Volatility*math.Sqrt(dt)*corr
			next := clampPrice(prices[i], prices[i]*math.Exp(ret))
			prices[i] = next
			paths[i] = append(paths[i], next)
		}
	}
	return paths, nil
}
