// Package verification replays archived execution logs and checks that they
// reproduce the stored session results.
package verification

import (
	"context"
	"fmt"
	"math"
	"sort"

	"grid-trading-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons. It is absolute
// for magnitudes up to 1 and relative above.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single session.
type VerificationResult struct {
	SessionID          string            // verified session ID
	Match              bool              // true if all fields match
	Divergences        []FieldDivergence // list of divergent fields
	StoredEquity       float64           // final portfolio value as stored
	ReplayedEquity     float64           // final portfolio value after replay
	ReplayedExecutions int               // successful executions applied
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalSessions     int
	MatchedSessions   int
	DivergentSessions int
	Results           []VerificationResult
}

// Verifier interface for session replay verification.
type Verifier interface {
	// VerifySession loads a stored session, replays its execution log
	// against the initial portfolio and compares the outcome.
	VerifySession(ctx context.Context, sessionID string) (*VerificationResult, error)

	// VerifyAll verifies all stored sessions.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// ReplayPortfolio applies the successful executions of a log, in order, to a
// copy of the initial portfolio. Failed executions never touched the
// portfolio and are skipped.
func ReplayPortfolio(initial *domain.Portfolio, execs []*domain.OrderExecution) (*domain.Portfolio, int, error) {
	p := initial.Clone()
	applied := 0
	for i, e := range execs {
		if !e.Success {
			continue
		}
		if err := p.Settle(e); err != nil {
			return nil, applied, fmt.Errorf("replay execution %d (%s): %w", i, e.ID, err)
		}
		applied++
	}
	return p, applied, nil
}

// ComparePortfolios compares two portfolios and returns divergences.
func ComparePortfolios(stored, replayed *domain.Portfolio) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.BaseCurrency != replayed.BaseCurrency {
		divergences = append(divergences, FieldDivergence{
			Field:    "BaseCurrency",
			Expected: stored.BaseCurrency,
			Actual:   replayed.BaseCurrency,
		})
	}

	if !floatEquals(stored.BaseBalance, replayed.BaseBalance) {
		divergences = append(divergences, FieldDivergence{
			Field:    "BaseBalance",
			Expected: stored.BaseBalance,
			Actual:   replayed.BaseBalance,
		})
	}

	tokens := make(map[string]struct{})
	for t := range stored.Holdings {
		tokens[t] = struct{}{}
	}
	for t := range replayed.Holdings {
		tokens[t] = struct{}{}
	}
	sorted := make([]string, 0, len(tokens))
	for t := range tokens {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	for _, t := range sorted {
		if !floatEquals(stored.Holding(t), replayed.Holding(t)) {
			divergences = append(divergences, FieldDivergence{
				Field:    "Holdings[" + t + "]",
				Expected: stored.Holding(t),
				Actual:   replayed.Holding(t),
			})
		}
	}

	return divergences
}

// CheckLogs checks the structural invariants of a snapshot's histories:
// tick indexes are 0..n-1 with positive prices, and executions are in
// non-decreasing tick order within the tick history.
func CheckLogs(snap *domain.SessionSnapshot) []FieldDivergence {
	var divergences []FieldDivergence

	for i, t := range snap.Ticks {
		if t.Index != int64(i) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Ticks[%d].Index", i),
				Expected: int64(i),
				Actual:   t.Index,
			})
		}
		if !(t.Price > 0) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Ticks[%d].Price", i),
				Expected: "> 0",
				Actual:   t.Price,
			})
		}
	}

	var last int64
	for i, e := range snap.Executions {
		if e.TickIndex < last {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Executions[%d].TickIndex", i),
				Expected: fmt.Sprintf(">= %d", last),
				Actual:   e.TickIndex,
			})
		}
		if len(snap.Ticks) > 0 && e.TickIndex >= int64(len(snap.Ticks)) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Executions[%d].TickIndex", i),
				Expected: fmt.Sprintf("< %d", len(snap.Ticks)),
				Actual:   e.TickIndex,
			})
		}
		last = e.TickIndex
	}

	return divergences
}

// VerifySnapshot replays a snapshot's execution log and compares the result
// with its final portfolio and final equity sample.
func VerifySnapshot(snap *domain.SessionSnapshot) (*VerificationResult, error) {
	replayed, applied, err := ReplayPortfolio(snap.InitialPortfolio, snap.Executions)
	if err != nil {
		return nil, err
	}

	prices := map[string]float64{snap.Config.TokenID: snap.FinalPrice()}
	result := &VerificationResult{
		SessionID:          snap.SessionID,
		StoredEquity:       snap.FinalPortfolio.TotalValue(prices),
		ReplayedEquity:     replayed.TotalValue(prices),
		ReplayedExecutions: applied,
	}

	divergences := CheckLogs(snap)
	divergences = append(divergences, ComparePortfolios(snap.FinalPortfolio, replayed)...)

	if n := len(snap.ValueSeries); n > 0 {
		last := snap.ValueSeries[n-1].Value
		if !floatEquals(last, result.ReplayedEquity) {
			divergences = append(divergences, FieldDivergence{
				Field:    "FinalEquity",
				Expected: last,
				Actual:   result.ReplayedEquity,
			})
		}
	}

	result.Divergences = divergences
	result.Match = len(divergences) == 0
	return result, nil
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= FloatTolerance*scale
}
