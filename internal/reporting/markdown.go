package reporting

import (
	"fmt"
	"strings"
	"time"
)

// maxDrawdownRows bounds the drawdown table.
const maxDrawdownRows = 5

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Session
	p := r.Performance

	// Header
	sb.WriteString("# Grid Simulation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Session: %s | Scenario: %s | Seed: %d\n\n", s.SessionID, s.Scenario, s.Seed))

	// Session
	sb.WriteString("## Session\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Token | %s |\n", s.TokenID))
	sb.WriteString(fmt.Sprintf("| Base Currency | %s |\n", s.BaseCurrency))
	sb.WriteString(fmt.Sprintf("| Simulated Start | %s |\n", s.SimulatedStart.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Simulated End | %s |\n", s.SimulatedEnd.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Time Acceleration | %.2f |\n", s.TimeAcceleration))
	sb.WriteString(fmt.Sprintf("| Ticks | %d |\n", s.TickCount))
	sb.WriteString(fmt.Sprintf("| Initial Price | %.6f |\n", s.InitialPrice))
	sb.WriteString(fmt.Sprintf("| Final Price | %.6f |\n", s.FinalPrice))
	sb.WriteString(fmt.Sprintf("| Price Change | %.4f |\n", p.PriceChange))
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Value | %.2f |\n", p.InitialValue))
	sb.WriteString(fmt.Sprintf("| Final Value | %.2f |\n", p.FinalValue))
	sb.WriteString(fmt.Sprintf("| Total Return | %.4f |\n", p.TotalReturn))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %.4f |\n", p.AnnualizedReturn))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", p.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Sortino Ratio | %.4f |\n", p.SortinoRatio))
	sb.WriteString(fmt.Sprintf("| Calmar Ratio | %.4f |\n", p.CalmarRatio))
	sb.WriteString(fmt.Sprintf("| Volatility | %.4f |\n", p.Volatility))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", p.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max Drawdown Time | %s |\n", p.MaxDrawdownTime))
	sb.WriteString(fmt.Sprintf("| VaR 95 / 99 | %.4f / %.4f |\n", p.VaR95, p.VaR99))
	sb.WriteString(fmt.Sprintf("| CVaR 95 / 99 | %.4f / %.4f |\n", p.CVaR95, p.CVaR99))
	sb.WriteString("\n")

	// Trading
	sb.WriteString("## Trading\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Executions (ok / failed) | %d (%d / %d) |\n",
		p.TotalExecutions, p.SuccessfulExecutions, p.FailedExecutions))
	sb.WriteString(fmt.Sprintf("| Realized Trades | %d |\n", p.TradeCount))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", p.WinRate))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %.4f |\n", p.ProfitFactor))
	sb.WriteString(fmt.Sprintf("| Average Win / Loss | %.4f / %.4f |\n", p.AverageWin, p.AverageLoss))
	sb.WriteString(fmt.Sprintf("| Median Trade Return | %.4f |\n", p.MedianTradeReturn))
	sb.WriteString(fmt.Sprintf("| Max Win / Loss Streak | %d / %d |\n", p.MaxWinStreak, p.MaxLossStreak))
	sb.WriteString(fmt.Sprintf("| Total Fees | %.6f |\n", p.TotalFees))
	sb.WriteString(fmt.Sprintf("| Total Slippage | %.6f |\n", p.TotalSlippage))
	sb.WriteString("\n")

	// Grids
	sb.WriteString("## Grids\n\n")
	if len(r.Grids) > 0 {
		sb.WriteString("| Grid | Status | Range | Base | Orders | Filled | Cancelled | PnL | Fees | AvgSlip | WinRate |\n")
		sb.WriteString("|------|--------|-------|------|--------|--------|-----------|-----|------|---------|---------|\n")
		for _, g := range r.Grids {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f-%.4f | %.2f | %d | %d | %d | %.4f | %.4f | %.6f | %.4f |\n",
				g.GridID, g.Status, g.PriceMin, g.PriceMax, g.BaseAmount,
				g.Orders, g.Filled, g.Cancelled, g.PnL, g.TotalFees, g.AverageSlippage, g.WinRate))
		}
	} else {
		sb.WriteString("No grids created.\n")
	}
	sb.WriteString("\n")

	// Drawdowns
	sb.WriteString("## Drawdown Periods\n\n")
	if len(p.DrawdownPeriods) > 0 {
		sb.WriteString("| Peak | Trough | Recovery | Depth | Duration |\n")
		sb.WriteString("|------|--------|----------|-------|----------|\n")
		for i, d := range p.DrawdownPeriods {
			if i == maxDrawdownRows {
				break
			}
			recovery := "-"
			if d.Recovery != nil {
				recovery = d.Recovery.Format(time.RFC3339)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %s |\n",
				d.Start.Format(time.RFC3339), d.Trough.Format(time.RFC3339), recovery, d.Depth, d.Duration))
		}
	} else {
		sb.WriteString("No drawdowns.\n")
	}
	sb.WriteString("\n")

	// Monthly
	if len(p.MonthlyReturns) > 0 {
		sb.WriteString("## Monthly Returns\n\n")
		sb.WriteString("| Month | Return |\n")
		sb.WriteString("|-------|--------|\n")
		for _, m := range p.MonthlyReturns {
			sb.WriteString(fmt.Sprintf("| %04d-%02d | %.4f |\n", m.Year, int(m.Month), m.Return))
		}
		sb.WriteString("\n")
	}

	// Replay
	sb.WriteString("## Replay Check\n\n")
	if r.Replay.Match {
		sb.WriteString(fmt.Sprintf("**Match.** %d executions replayed onto the initial portfolio reproduce the final portfolio.\n\n",
			r.Replay.ReplayedExecutions))
	} else {
		sb.WriteString("**Divergent.**\n\n")
		for _, d := range r.Replay.Divergences {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
