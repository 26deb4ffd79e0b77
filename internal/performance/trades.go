package performance

import "grid-trading-lab/internal/domain"

// TradeResult is one realized round trip: a sell measured against its
// grid's running average cost basis.
type TradeResult struct {
	ExecutionID string
	GridID      string
	Amount      float64
	CostBasis   float64 // base currency spent on the sold amount, fees included
	Proceeds    float64 // sell notional minus fee
	PnL         float64
	Return      float64 // PnL / CostBasis
}

type costBasis struct {
	qty  float64
	cost float64
}

// realizedTrades walks successful executions in log order. Sells without
// a cost basis in their grid are ignored.
func realizedTrades(execs []*domain.OrderExecution) []TradeResult {
	books := make(map[string]*costBasis)
	var out []TradeResult
	for _, e := range execs {
		if !e.Success {
			continue
		}
		book, ok := books[e.GridID]
		if !ok {
			book = &costBasis{}
			books[e.GridID] = book
		}

		switch e.Side {
		case domain.SideBuy:
			book.qty += e.Amount
			book.cost += e.Notional() + e.Fee
		case domain.SideSell:
			if book.qty <= 0 {
				continue
			}
			amount := e.Amount
			if amount > book.qty {
				amount = book.qty
			}
			basis := book.cost / book.qty * amount
			proceeds := amount*e.Price - e.Fee
			book.qty -= amount
			book.cost -= basis

			r := TradeResult{
				ExecutionID: e.ID,
				GridID:      e.GridID,
				Amount:      amount,
				CostBasis:   basis,
				Proceeds:    proceeds,
				PnL:         proceeds - basis,
			}
			if basis > 0 {
				r.Return = r.PnL / basis
			}
			out = append(out, r)
		}
	}
	return out
}

// streaks returns the current win and loss streaks (one of them is 0)
// and the longest of each. A trade with PnL <= 0 counts as a loss.
func streaks(trades []TradeResult) (curWin, curLoss, maxWin, maxLoss int) {
	for _, t := range trades {
		if t.PnL > 0 {
			curWin++
			curLoss = 0
			if curWin > maxWin {
				maxWin = curWin
			}
		} else {
			curLoss++
			curWin = 0
			if curLoss > maxLoss {
				maxLoss = curLoss
			}
		}
	}
	return curWin, curLoss, maxWin, maxLoss
}
