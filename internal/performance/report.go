package performance

import (
	"sort"
	"time"

	"grid-trading-lab/internal/domain"
)

// Report extends Summary with tail risk, drawdown and period breakdowns.
type Report struct {
	Summary

	VaR95        float64 // positive loss fraction per sample
	VaR99        float64
	CVaR95       float64
	CVaR99       float64
	SortinoRatio float64
	CalmarRatio  float64

	Trades          []TradeResult
	DrawdownPeriods []DrawdownPeriod // deepest first
	MonthlyReturns  []MonthlyReturn  // chronological
	Rolling         []RollingPoint
	RollingWindow   int
}

// DrawdownPeriod is one excursion below a running peak.
type DrawdownPeriod struct {
	Start    time.Time  // peak
	Trough   time.Time
	Recovery *time.Time // nil while unrecovered
	Depth    float64    // fraction of the peak
	Duration time.Duration
}

// MonthlyReturn is the equity change within one calendar month (UTC).
type MonthlyReturn struct {
	Year   int
	Month  time.Month
	Return float64
}

// RollingPoint holds statistics over the window ending at Timestamp.
type RollingPoint struct {
	Timestamp   time.Time
	Sharpe      float64
	Volatility  float64
	MaxDrawdown float64
}

// GenerateComprehensiveReport computes the full report.
func GenerateComprehensiveReport(in Input) Report {
	r := Report{Summary: Calculate(in)}

	returns := periodReturns(in.Values)
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	r.VaR95, r.CVaR95 = computeValueAtRisk(sorted, 0.95)
	r.VaR99, r.CVaR99 = computeValueAtRisk(sorted, 0.99)

	r.SortinoRatio = computeSortino(returns, in.RiskFreeRate)
	if r.MaxDrawdown > 0 {
		r.CalmarRatio = finiteOrZero(r.AnnualizedReturn / r.MaxDrawdown)
	}

	r.Trades = realizedTrades(in.Executions)
	r.DrawdownPeriods = drawdownPeriods(in.Values)
	r.MonthlyReturns = monthlyReturns(in.Values)

	r.RollingWindow = in.RollingWindow
	if r.RollingWindow <= 0 {
		r.RollingWindow = DefaultRollingWindow
	}
	r.Rolling = rolling(in.Values, returns, r.RollingWindow, in.RiskFreeRate)
	return r
}

// drawdownPeriods enumerates every excursion below a running peak, sorted
// by depth, deepest first.
func drawdownPeriods(values []domain.ValuePoint) []DrawdownPeriod {
	if len(values) == 0 {
		return nil
	}
	var (
		periods []DrawdownPeriod
		current *DrawdownPeriod
		peak    = values[0]
	)
	for _, v := range values[1:] {
		if v.Value >= peak.Value {
			if current != nil {
				t := v.Timestamp
				current.Recovery = &t
				current.Duration = t.Sub(current.Start)
				periods = append(periods, *current)
				current = nil
			}
			peak = v
			continue
		}
		if peak.Value <= 0 {
			continue
		}
		depth := (peak.Value - v.Value) / peak.Value
		if current == nil {
			current = &DrawdownPeriod{Start: peak.Timestamp}
		}
		if depth > current.Depth {
			current.Depth = depth
			current.Trough = v.Timestamp
		}
	}
	if current != nil {
		current.Duration = values[len(values)-1].Timestamp.Sub(current.Start)
		periods = append(periods, *current)
	}

	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Depth > periods[j].Depth
	})
	return periods
}

// monthlyReturns buckets the series by calendar month. Each month is
// measured from the previous month's last value; the first month from
// its own first value.
func monthlyReturns(values []domain.ValuePoint) []MonthlyReturn {
	if len(values) == 0 {
		return nil
	}
	var out []MonthlyReturn
	base := values[0].Value
	last := values[0]
	flush := func() {
		ts := last.Timestamp.UTC()
		m := MonthlyReturn{Year: ts.Year(), Month: ts.Month()}
		if base > 0 {
			m.Return = last.Value/base - 1
		}
		out = append(out, m)
		base = last.Value
	}
	for _, v := range values[1:] {
		if !sameMonth(v.Timestamp, last.Timestamp) {
			flush()
		}
		last = v
	}
	flush()
	return out
}

func sameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// rolling computes window statistics for every full window of returns.
// Point i covers returns[i-window:i], i.e. values[i-window:i+1].
func rolling(values []domain.ValuePoint, returns []float64, window int, riskFreeRate float64) []RollingPoint {
	if len(returns) < window {
		return nil
	}
	out := make([]RollingPoint, 0, len(returns)-window+1)
	for i := window; i <= len(returns); i++ {
		w := returns[i-window : i]
		dd, _ := computeMaxDrawdown(values[i-window : i+1])
		out = append(out, RollingPoint{
			Timestamp:   values[i].Timestamp,
			Sharpe:      computeSharpe(w, riskFreeRate),
			Volatility:  computeVolatility(w),
			MaxDrawdown: dd,
		})
	}
	return out
}
