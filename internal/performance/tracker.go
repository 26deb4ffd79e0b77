// Package performance computes return, risk and trade-quality statistics
// over a session's equity series and execution log.
//
// All functions are pure and read only the slices they are given, so they
// can run against a copy of an in-progress session.
package performance

import (
	"math"
	"sort"
	"time"

	"grid-trading-lab/internal/domain"
)

// DefaultRollingWindow is the rolling statistics window in samples.
const DefaultRollingWindow = 30

// Input is the data a report is computed from.
type Input struct {
	Values        []domain.ValuePoint      // equity series, chronological
	Executions    []*domain.OrderExecution // execution log, in log order
	Ticks         []domain.PriceTick       // price history
	StartTime     time.Time                // defaults to the first value timestamp
	RiskFreeRate  float64                  // annual
	RollingWindow int                      // defaults to DefaultRollingWindow
}

// InputFromSnapshot builds an Input from a stopped session.
func InputFromSnapshot(s *domain.SessionSnapshot) Input {
	return Input{
		Values:       s.ValueSeries,
		Executions:   s.Executions,
		Ticks:        s.Ticks,
		StartTime:    s.SimulatedStart,
		RiskFreeRate: s.Config.RiskFreeRate,
	}
}

// Summary holds the headline statistics.
type Summary struct {
	InitialValue     float64
	FinalValue       float64
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	Volatility       float64 // annualized
	MaxDrawdown      float64 // fraction of peak
	MaxDrawdownTime  time.Duration

	TotalExecutions      int
	SuccessfulExecutions int
	FailedExecutions     int
	TradeCount           int // realized sells
	WinRate              float64
	ProfitFactor         float64 // +Inf with profits and no losses
	AverageWin           float64 // mean return of winning trades
	AverageLoss          float64 // mean return of losing trades, <= 0
	MedianTradeReturn    float64

	CurrentWinStreak  int
	CurrentLossStreak int
	MaxWinStreak      int
	MaxLossStreak     int

	TotalFees     float64
	TotalSlippage float64 // base-currency slippage cost

	PriceChange float64 // last tick price / first tick price - 1
}

// Calculate computes the summary statistics.
func Calculate(in Input) Summary {
	var s Summary
	if len(in.Values) > 0 {
		s.InitialValue = in.Values[0].Value
		s.FinalValue = in.Values[len(in.Values)-1].Value
		if s.InitialValue > 0 {
			s.TotalReturn = s.FinalValue/s.InitialValue - 1
		}
		s.AnnualizedReturn = annualize(s.TotalReturn, elapsed(in))
	}

	returns := periodReturns(in.Values)
	s.SharpeRatio = computeSharpe(returns, in.RiskFreeRate)
	s.Volatility = computeVolatility(returns)
	s.MaxDrawdown, s.MaxDrawdownTime = computeMaxDrawdown(in.Values)

	for _, e := range in.Executions {
		s.TotalExecutions++
		if !e.Success {
			s.FailedExecutions++
			continue
		}
		s.SuccessfulExecutions++
		s.TotalFees += e.Fee
		s.TotalSlippage += e.SlippageCost()
	}

	trades := realizedTrades(in.Executions)
	s.TradeCount = len(trades)
	applyTradeStats(&s, trades)

	if n := len(in.Ticks); n > 0 && in.Ticks[0].Price > 0 {
		s.PriceChange = in.Ticks[n-1].Price/in.Ticks[0].Price - 1
	}
	return s
}

func applyTradeStats(s *Summary, trades []TradeResult) {
	if len(trades) == 0 {
		return
	}
	var wins, losses []float64
	var profit, loss float64
	tradeReturns := make([]float64, 0, len(trades))
	for _, t := range trades {
		tradeReturns = append(tradeReturns, t.Return)
		if t.PnL > 0 {
			wins = append(wins, t.Return)
			profit += t.PnL
		} else {
			losses = append(losses, t.Return)
			loss -= t.PnL
		}
	}

	s.WinRate = float64(len(wins)) / float64(len(trades))
	s.AverageWin = computeMean(wins)
	s.AverageLoss = computeMean(losses)
	s.ProfitFactor = profitFactor(profit, loss)

	sort.Float64s(tradeReturns)
	s.MedianTradeReturn = computePercentile(tradeReturns, 0.5)

	s.CurrentWinStreak, s.CurrentLossStreak, s.MaxWinStreak, s.MaxLossStreak = streaks(trades)
}

// profitFactor is gross profit over gross loss: +Inf with profits and no
// losses, 0 with neither.
func profitFactor(profit, loss float64) float64 {
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

func elapsed(in Input) time.Duration {
	if len(in.Values) == 0 {
		return 0
	}
	start := in.StartTime
	if start.IsZero() {
		start = in.Values[0].Timestamp
	}
	return in.Values[len(in.Values)-1].Timestamp.Sub(start)
}
