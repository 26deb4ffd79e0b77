package reporting

import (
	"fmt"
	"strings"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/performance"
)

// RenderCSV renders the grid table as CSV string.
func RenderCSV(grids []GridRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("grid_id,status,price_min,price_max,base_amount,orders,filled,cancelled,")
	sb.WriteString("pnl,total_fees,average_slippage,win_rate\n")

	// Rows
	for _, g := range grids {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%.6f,%.6f,%d,%d,%d,%.6f,%.6f,%.6f,%.6f\n",
			g.GridID,
			g.Status,
			g.PriceMin,
			g.PriceMax,
			g.BaseAmount,
			g.Orders,
			g.Filled,
			g.Cancelled,
			g.PnL,
			g.TotalFees,
			g.AverageSlippage,
			g.WinRate,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders realized trades as CSV string.
func RenderTradesCSV(trades []performance.TradeResult) string {
	var sb strings.Builder

	sb.WriteString("execution_id,grid_id,amount,cost_basis,proceeds,pnl,return\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%.8f,%.8f,%.8f,%.8f,%.6f\n",
			t.ExecutionID, t.GridID, t.Amount, t.CostBasis, t.Proceeds, t.PnL, t.Return))
	}

	return sb.String()
}

// RenderEquityCSV renders the equity series as CSV string.
func RenderEquityCSV(values []domain.ValuePoint) string {
	var sb strings.Builder

	sb.WriteString("timestamp_ns,value\n")
	for _, v := range values {
		sb.WriteString(fmt.Sprintf("%d,%.8f\n", v.Timestamp.UnixNano(), v.Value))
	}

	return sb.String()
}
