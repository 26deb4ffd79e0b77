package performance

import (
	"math"
	"time"

	"grid-trading-lab/internal/domain"
)

// tradingDaysPerYear annualizes per-sample statistics.
const tradingDaysPerYear = 252

// computeMean calculates the arithmetic mean.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be ascending.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// periodReturns converts a value series into simple per-sample returns.
// A non-positive previous value yields a zero return.
func periodReturns(values []domain.ValuePoint) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1].Value
		if prev > 0 {
			out[i-1] = values[i].Value/prev - 1
		}
	}
	return out
}

// computeSharpe annualizes (mean - rf/252) / stddev by √252.
func computeSharpe(returns []float64, riskFreeRate float64) float64 {
	mean := computeMean(returns)
	std := computeStddev(returns, mean)
	if std == 0 {
		return 0
	}
	return finiteOrZero((mean - riskFreeRate/tradingDaysPerYear) / std * math.Sqrt(tradingDaysPerYear))
}

// computeVolatility is the annualized sample standard deviation.
func computeVolatility(returns []float64) float64 {
	return computeStddev(returns, computeMean(returns)) * math.Sqrt(tradingDaysPerYear)
}

// computeSortino divides excess return by downside deviation.
func computeSortino(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	target := riskFreeRate / tradingDaysPerYear
	sumSq := 0.0
	for _, r := range returns {
		if d := r - target; d < 0 {
			sumSq += d * d
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return finiteOrZero((computeMean(returns) - target) / downside * math.Sqrt(tradingDaysPerYear))
}

// computeMaxDrawdown returns the worst peak-to-trough decline as a fraction
// of the peak, and the time from that peak until recovery (or the last
// sample when unrecovered). Values must be in chronological order.
func computeMaxDrawdown(values []domain.ValuePoint) (float64, time.Duration) {
	if len(values) == 0 {
		return 0, 0
	}

	peak := values[0]
	maxDD := 0.0
	var maxDuration time.Duration
	var worstPeak time.Time
	worstOpen := false

	for _, v := range values {
		if v.Value >= peak.Value {
			if worstOpen && worstPeak.Equal(peak.Timestamp) {
				maxDuration = v.Timestamp.Sub(worstPeak)
				worstOpen = false
			}
			peak = v
			continue
		}
		if peak.Value <= 0 {
			continue
		}
		if dd := (peak.Value - v.Value) / peak.Value; dd > maxDD {
			maxDD = dd
			worstPeak = peak.Timestamp
			worstOpen = true
		}
	}
	if worstOpen {
		maxDuration = values[len(values)-1].Timestamp.Sub(worstPeak)
	}
	return maxDD, maxDuration
}

// computeValueAtRisk returns the empirical VaR and CVaR at confidence c,
// both as positive loss fractions. sorted must be ascending.
func computeValueAtRisk(sorted []float64, c float64) (float64, float64) {
	n := len(sorted)
	if n == 0 {
		return 0, 0
	}
	idx := int(math.Floor((1 - c) * float64(n)))
	if idx > n-1 {
		idx = n - 1
	}
	return -sorted[idx], -computeMean(sorted[:idx+1])
}

// annualize compounds totalReturn over a year. Non-finite results, which
// occur for very short sessions, are reported as 0.
func annualize(totalReturn float64, elapsed time.Duration) float64 {
	days := elapsed.Hours() / 24
	if days <= 0 || totalReturn <= -1 {
		return 0
	}
	return finiteOrZero(math.Pow(1+totalReturn, 365/days) - 1)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
