package api

import (
	"math"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/performance"
	"grid-trading-lab/internal/session"
	"grid-trading-lab/internal/storage"
	"grid-trading-lab/internal/stream"
)

type portfolioView struct {
	BaseCurrency string             `json:"base_currency"`
	BaseBalance  float64            `json:"base_balance"`
	Holdings     map[string]float64 `json:"holdings"`
}

func newPortfolioView(p *domain.Portfolio) *portfolioView {
	if p == nil {
		return nil
	}
	holdings := make(map[string]float64, len(p.Holdings))
	for k, v := range p.Holdings {
		holdings[k] = v
	}
	return &portfolioView{BaseCurrency: p.BaseCurrency, BaseBalance: p.BaseBalance, Holdings: holdings}
}

type sessionView struct {
	ID               string         `json:"id"`
	State            string         `json:"state"`
	Scenario         string         `json:"scenario"`
	MarketCondition  string         `json:"market_condition"`
	TokenID          string         `json:"token_id"`
	DurationMinutes  float64        `json:"duration_minutes"`
	TimeAcceleration float64        `json:"time_acceleration"`
	StartedAt        time.Time      `json:"started_at"`
	SimulatedTime    time.Time      `json:"simulated_time"`
	TickCount        int            `json:"tick_count"`
	CurrentPrice     float64        `json:"current_price"`
	Equity           float64        `json:"equity"`
	Reserved         float64        `json:"reserved"`
	GridCount        int            `json:"grid_count"`
	Portfolio        *portfolioView `json:"portfolio"`
}

func newSessionView(info session.Info) sessionView {
	return sessionView{
		ID:               info.ID,
		State:            string(info.State),
		Scenario:         info.Scenario,
		MarketCondition:  string(info.Config.MarketCondition),
		TokenID:          info.Config.TokenID,
		DurationMinutes:  info.Config.DurationMinutes,
		TimeAcceleration: info.Config.TimeAcceleration,
		StartedAt:        info.StartedAt,
		SimulatedTime:    info.SimulatedTime,
		TickCount:        info.TickCount,
		CurrentPrice:     info.CurrentPrice,
		Equity:           info.Equity,
		Reserved:         info.Reserved,
		GridCount:        info.GridCount,
		Portfolio:        newPortfolioView(info.Portfolio),
	}
}

type orderView struct {
	ID         string     `json:"id"`
	Side       string     `json:"side"`
	Amount     float64    `json:"amount"`
	LimitPrice float64    `json:"limit_price"`
	Status     string     `json:"status"`
	FillPrice  float64    `json:"fill_price,omitempty"`
	Fee        float64    `json:"fee,omitempty"`
	FilledAt   *time.Time `json:"filled_at,omitempty"`
}

type gridView struct {
	stream.GridData
	TokenID    string      `json:"token_id"`
	BaseAmount float64     `json:"base_amount"`
	PriceMin   float64     `json:"price_min"`
	PriceMax   float64     `json:"price_max"`
	WinRate    float64     `json:"win_rate"`
	CreatedAt  time.Time   `json:"created_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	Orders     []orderView `json:"orders,omitempty"`
}

func newGridView(g *domain.SimulatedGrid, withOrders bool) gridView {
	v := gridView{
		GridData:   stream.GridPayload(g),
		TokenID:    g.Config.TokenID,
		BaseAmount: g.Config.BaseAmount,
		PriceMin:   g.Config.PriceRange.Min,
		PriceMax:   g.Config.PriceRange.Max,
		WinRate:    g.Metrics.WinRate,
		CreatedAt:  g.CreatedAt,
		ClosedAt:   g.ClosedAt,
	}
	if !withOrders {
		return v
	}
	v.Orders = make([]orderView, 0, len(g.Orders))
	for _, o := range g.Orders {
		ov := orderView{
			ID:         o.ID,
			Side:       string(o.Side),
			Amount:     o.Amount,
			LimitPrice: o.LimitPrice,
			Status:     string(o.Status),
		}
		if o.Fill != nil {
			at := o.Fill.FilledAt
			ov.FillPrice = o.Fill.Price
			ov.Fee = o.Fill.Fee
			ov.FilledAt = &at
		}
		v.Orders = append(v.Orders, ov)
	}
	return v
}

// summaryView is performance.Summary with non-finite ratios made JSON-safe.
type summaryView struct {
	InitialValue         float64 `json:"initial_value"`
	FinalValue           float64 `json:"final_value"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	Volatility           float64 `json:"volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxDrawdownSeconds   float64 `json:"max_drawdown_seconds"`
	TotalExecutions      int     `json:"total_executions"`
	SuccessfulExecutions int     `json:"successful_executions"`
	FailedExecutions     int     `json:"failed_executions"`
	TradeCount           int     `json:"trade_count"`
	WinRate              float64 `json:"win_rate"`
	ProfitFactor         any     `json:"profit_factor"`
	AverageWin           float64 `json:"average_win"`
	AverageLoss          float64 `json:"average_loss"`
	MaxWinStreak         int     `json:"max_win_streak"`
	MaxLossStreak        int     `json:"max_loss_streak"`
	TotalFees            float64 `json:"total_fees"`
	TotalSlippage        float64 `json:"total_slippage"`
	PriceChange          float64 `json:"price_change"`
}

func newSummaryView(s performance.Summary) summaryView {
	return summaryView{
		InitialValue:         s.InitialValue,
		FinalValue:           s.FinalValue,
		TotalReturn:          s.TotalReturn,
		AnnualizedReturn:     s.AnnualizedReturn,
		SharpeRatio:          s.SharpeRatio,
		Volatility:           s.Volatility,
		MaxDrawdown:          s.MaxDrawdown,
		MaxDrawdownSeconds:   s.MaxDrawdownTime.Seconds(),
		TotalExecutions:      s.TotalExecutions,
		SuccessfulExecutions: s.SuccessfulExecutions,
		FailedExecutions:     s.FailedExecutions,
		TradeCount:           s.TradeCount,
		WinRate:              s.WinRate,
		ProfitFactor:         jsonFloat(s.ProfitFactor),
		AverageWin:           s.AverageWin,
		AverageLoss:          s.AverageLoss,
		MaxWinStreak:         s.MaxWinStreak,
		MaxLossStreak:        s.MaxLossStreak,
		TotalFees:            s.TotalFees,
		TotalSlippage:        s.TotalSlippage,
		PriceChange:          s.PriceChange,
	}
}

// jsonFloat encodes infinities as strings.
func jsonFloat(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return nil
	default:
		return v
	}
}

type sessionRecordView struct {
	SessionID      string    `json:"session_id"`
	Scenario       string    `json:"scenario"`
	TokenID        string    `json:"token_id"`
	StartedAt      time.Time `json:"started_at"`
	StoppedAt      time.Time `json:"stopped_at"`
	TickCount      int       `json:"tick_count"`
	ExecutionCount int       `json:"execution_count"`
	FinalPrice     float64   `json:"final_price"`
	InitialEquity  float64   `json:"initial_equity"`
	FinalEquity    float64   `json:"final_equity"`
}

func newSessionRecordView(r *storage.SessionRecord) sessionRecordView {
	v := sessionRecordView{
		SessionID:      r.SessionID,
		Scenario:       r.Scenario.Name,
		TokenID:        r.Config.TokenID,
		StartedAt:      r.StartedAt,
		StoppedAt:      r.StoppedAt,
		TickCount:      r.TickCount,
		ExecutionCount: r.ExecutionCount,
		FinalPrice:     r.FinalPrice,
	}
	token := r.Config.TokenID
	if r.InitialPortfolio != nil {
		v.InitialEquity = r.InitialPortfolio.TotalValue(map[string]float64{token: r.Config.InitialPrice})
	}
	if r.FinalPortfolio != nil {
		v.FinalEquity = r.FinalPortfolio.TotalValue(map[string]float64{token: r.FinalPrice})
	}
	return v
}
