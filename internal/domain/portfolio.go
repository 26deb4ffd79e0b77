package domain

import (
	"fmt"
	"sort"
)

// settleEpsilon absorbs float rounding when a fill spends the exact balance.
const settleEpsilon = 1e-9

// Portfolio is a base-currency balance plus token holdings.
type Portfolio struct {
	BaseCurrency string
	BaseBalance  float64
	Holdings     map[string]float64 // token id -> amount
}

// NewPortfolio creates a portfolio holding only base currency.
func NewPortfolio(baseCurrency string, balance float64) *Portfolio {
	return &Portfolio{
		BaseCurrency: baseCurrency,
		BaseBalance:  balance,
		Holdings:     make(map[string]float64),
	}
}

// Holding returns the held amount of a token.
func (p *Portfolio) Holding(tokenID string) float64 {
	return p.Holdings[tokenID]
}

// TotalValue is base balance plus holdings marked at the given prices.
// Tokens without a price contribute nothing.
func (p *Portfolio) TotalValue(prices map[string]float64) float64 {
	total := p.BaseBalance
	for _, token := range p.Tokens() {
		total += p.Holdings[token] * prices[token]
	}
	return total
}

// Tokens returns held token ids sorted for deterministic iteration.
func (p *Portfolio) Tokens() []string {
	tokens := make([]string, 0, len(p.Holdings))
	for t := range p.Holdings {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Withdraw removes base currency. It never partially deducts.
func (p *Portfolio) Withdraw(amount float64) error {
	if amount > p.BaseBalance {
		return fmt.Errorf("%w: need %.8f %s, have %.8f", ErrInsufficientFunds, amount, p.BaseCurrency, p.BaseBalance)
	}
	p.BaseBalance -= amount
	return nil
}

// Deposit adds base currency.
func (p *Portfolio) Deposit(amount float64) {
	p.BaseBalance += amount
}

// CanSettle reports whether Settle would succeed for e.
func (p *Portfolio) CanSettle(e *OrderExecution) error {
	switch e.Side {
	case SideBuy:
		cost := e.Amount*e.Price + e.Fee
		if cost > p.BaseBalance+settleEpsilon {
			return fmt.Errorf("%w: buy needs %.8f %s, have %.8f", ErrInsufficientFunds, cost, p.BaseCurrency, p.BaseBalance)
		}
	case SideSell:
		if e.Amount > p.Holdings[e.TokenID]+settleEpsilon {
			return fmt.Errorf("%w: sell needs %.8f %s, have %.8f", ErrInsufficientFunds, e.Amount, e.TokenID, p.Holdings[e.TokenID])
		}
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidConfiguration, e.Side)
	}
	return nil
}

// Settle applies a fill: a buy spends cost+fee and adds tokens, a sell
// removes tokens and adds proceeds-fee. Fails without mutation if the
// portfolio cannot cover it.
func (p *Portfolio) Settle(e *OrderExecution) error {
	if err := p.CanSettle(e); err != nil {
		return err
	}
	if p.Holdings == nil {
		p.Holdings = make(map[string]float64)
	}
	notional := e.Amount * e.Price
	switch e.Side {
	case SideBuy:
		p.BaseBalance -= notional + e.Fee
		p.Holdings[e.TokenID] += e.Amount
	case SideSell:
		p.Holdings[e.TokenID] -= e.Amount
		p.BaseBalance += notional - e.Fee
	}
	return nil
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	c := &Portfolio{
		BaseCurrency: p.BaseCurrency,
		BaseBalance:  p.BaseBalance,
		Holdings:     make(map[string]float64, len(p.Holdings)),
	}
	for k, v := range p.Holdings {
		c.Holdings[k] = v
	}
	return c
}
