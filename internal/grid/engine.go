// Package grid owns grid lifecycle and applies fills to the portfolio.
//
// A grid escrows its investment at creation: BaseAmount leaves the free
// base balance and is held in SimulatedGrid.Reserved. Buy fills draw
// their cost from the reserve, sell proceeds go to the free balance, and
// whatever is still reserved returns when the grid closes.
package grid

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/executor"
	"grid-trading-lab/internal/idhash"
)

// Dead band around the creation price where no order is placed.
const (
	buyBandRatio  = 0.95
	sellBandRatio = 1.05
)

// Engine manages the grids of one session.
type Engine struct {
	sessionID string
	tokenID   string
	portfolio *domain.Portfolio
	executor  *executor.Executor
	logger    logrus.FieldLogger

	grids map[string]*domain.SimulatedGrid
	order []string // creation order
	seq   int
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	SessionID string
	TokenID   string            // token every grid trades
	Portfolio *domain.Portfolio // live portfolio, mutated in place
	Executor  *executor.Executor
	Logger    logrus.FieldLogger // optional
}

// NewEngine creates a grid engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Portfolio == nil || opts.Executor == nil {
		return nil, fmt.Errorf("%w: grid engine requires a portfolio and an executor", domain.ErrInvalidConfiguration)
	}
	if opts.TokenID == "" {
		return nil, fmt.Errorf("%w: grid engine requires a token id", domain.ErrInvalidConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	return &Engine{
		sessionID: opts.SessionID,
		tokenID:   opts.TokenID,
		portfolio: opts.Portfolio,
		executor:  opts.Executor,
		logger:    logger.WithField("session_id", opts.SessionID),
		grids:     make(map[string]*domain.SimulatedGrid),
	}, nil
}

// CreateGrid places a grid around currentPrice and escrows its investment.
// Fails with ErrInsufficientFunds, leaving the portfolio untouched, when
// BaseAmount exceeds the free base balance.
func (e *Engine) CreateGrid(cfg domain.GridConfig, currentPrice float64, now time.Time) (*domain.SimulatedGrid, error) {
	if cfg.TokenID == "" {
		cfg.TokenID = e.tokenID
	}
	if cfg.TokenID != e.tokenID {
		return nil, fmt.Errorf("%w: grid token %q does not match session token %q", domain.ErrInvalidConfiguration, cfg.TokenID, e.tokenID)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !(currentPrice > 0) || math.IsInf(currentPrice, 0) {
		return nil, fmt.Errorf("%w: current price must be positive, got %v", domain.ErrInvalidState, currentPrice)
	}

	if err := e.portfolio.Withdraw(cfg.BaseAmount); err != nil {
		return nil, err
	}

	e.seq++
	g := &domain.SimulatedGrid{
		ID:        idhash.ComputeGridID(e.sessionID, e.seq),
		Config:    cfg,
		Status:    domain.GridActive,
		Reserved:  cfg.BaseAmount,
		CreatedAt: now,
	}
	g.Orders = placeOrders(g.ID, cfg, currentPrice)

	e.grids[g.ID] = g
	e.order = append(e.order, g.ID)

	e.logger.WithFields(logrus.Fields{
		"grid_id":     g.ID,
		"base_amount": cfg.BaseAmount,
		"buys":        g.OrderCount(domain.SideBuy),
		"sells":       g.OrderCount(domain.SideSell),
		"price":       currentPrice,
	}).Info("grid created")

	return g.Clone(), nil
}

// Levels returns count price levels spaced linearly over r. A single
// level sits at the midpoint.
func Levels(r domain.PriceRange, count int) []float64 {
	if count <= 0 {
		return nil
	}
	if count == 1 {
		return []float64{(r.Min + r.Max) / 2}
	}
	step := (r.Max - r.Min) / float64(count-1)
	levels := make([]float64, count)
	for i := range levels {
		levels[i] = r.Min + float64(i)*step
	}
	levels[count-1] = r.Max
	return levels
}

// placeOrders splits the investment equally across levels and skips the
// dead band around price.
func placeOrders(gridID string, cfg domain.GridConfig, price float64) []*domain.GridOrder {
	perLevel := cfg.BaseAmount / float64(cfg.OrderCount)
	var orders []*domain.GridOrder
	for i, level := range Levels(cfg.PriceRange, cfg.OrderCount) {
		var side domain.Side
		switch {
		case level < price*buyBandRatio:
			side = domain.SideBuy
		case level > price*sellBandRatio:
			side = domain.SideSell
		default:
			continue
		}
		orders = append(orders, &domain.GridOrder{
			ID:         idhash.ComputeOrderID(gridID, i),
			GridID:     gridID,
			TokenID:    cfg.TokenID,
			Side:       side,
			Amount:     perLevel / level,
			LimitPrice: level,
			Status:     domain.OrderPending,
		})
	}
	return orders
}

// CancelGrid cancels the pending orders of an active grid and returns its
// reserve to the base balance. The refunded amount is returned.
func (e *Engine) CancelGrid(id string, now time.Time) (float64, error) {
	g, ok := e.grids[id]
	if !ok {
		return 0, fmt.Errorf("%w: grid %s", domain.ErrNotFound, id)
	}
	if g.Status != domain.GridActive {
		return 0, fmt.Errorf("%w: grid %s is %s", domain.ErrInvalidState, id, g.Status)
	}
	for _, o := range g.PendingOrders() {
		o.Status = domain.OrderCancelled
	}
	refund := e.close(g, domain.GridCancelled, now)

	e.logger.WithFields(logrus.Fields{
		"grid_id": id,
		"refund":  refund,
	}).Info("grid cancelled")

	return refund, nil
}

// CloseAll completes every active grid and releases its reserve.
// Pending orders stay pending in the closed grid's record.
func (e *Engine) CloseAll(now time.Time) []*domain.SimulatedGrid {
	var closed []*domain.SimulatedGrid
	for _, id := range e.order {
		g := e.grids[id]
		if g.Status != domain.GridActive {
			continue
		}
		e.close(g, domain.GridCompleted, now)
		closed = append(closed, g.Clone())
	}
	return closed
}

func (e *Engine) close(g *domain.SimulatedGrid, status domain.GridStatus, now time.Time) float64 {
	refund := g.Reserved
	e.portfolio.Deposit(refund)
	g.Reserved = 0
	g.Status = status
	t := now
	g.ClosedAt = &t
	return refund
}

// ProcessTick runs the executor against every active grid, in creation
// order, and applies the fills. It returns the executions in application
// order and clones of the grids that changed.
func (e *Engine) ProcessTick(tick domain.PriceTick) ([]*domain.OrderExecution, []*domain.SimulatedGrid) {
	var (
		execs   []*domain.OrderExecution
		changed []*domain.SimulatedGrid
	)
	for _, id := range e.order {
		g := e.grids[id]
		if g.Status != domain.GridActive {
			continue
		}

		batch := e.executor.Execute(g.PendingOrders(), tick)
		for _, ex := range batch {
			e.apply(g, ex)
		}
		if len(batch) > 0 {
			recomputeMetrics(g)
			execs = append(execs, batch...)
		}

		if len(g.PendingOrders()) == 0 {
			e.close(g, domain.GridCompleted, tick.Timestamp)
			e.logger.WithField("grid_id", g.ID).Info("grid completed")
		}
		if len(batch) > 0 || g.Status != domain.GridActive {
			changed = append(changed, g.Clone())
		}
	}
	return execs, changed
}

// apply settles one execution. On settlement failure the execution is
// marked unsuccessful and the order is cancelled.
func (e *Engine) apply(g *domain.SimulatedGrid, ex *domain.OrderExecution) {
	o := findOrder(g, ex.OrderID)

	var released float64
	if ex.Side == domain.SideBuy {
		released = math.Min(g.Reserved, ex.Notional()+ex.Fee)
		g.Reserved -= released
		e.portfolio.Deposit(released)
	}

	if err := e.portfolio.Settle(ex); err != nil {
		if released > 0 {
			// Settle did not mutate, so the deposit is still there.
			_ = e.portfolio.Withdraw(released)
			g.Reserved += released
		}
		ex.Success = false
		ex.FailureReason = err.Error()
		if o != nil {
			o.Status = domain.OrderCancelled
		}
		e.logger.WithFields(logrus.Fields{
			"grid_id":  g.ID,
			"order_id": ex.OrderID,
			"side":     ex.Side,
		}).WithError(err).Warn("fill could not be settled")
		return
	}

	if o != nil {
		o.Status = domain.OrderFilled
		o.Fill = &domain.OrderFill{
			Price:       ex.Price,
			MarketPrice: ex.MarketPrice,
			Slippage:    ex.Slippage,
			Fee:         ex.Fee,
			FilledAt:    ex.Timestamp,
		}
	}

	switch ex.Side {
	case domain.SideBuy:
		g.PnL -= ex.Notional()
	case domain.SideSell:
		g.PnL += ex.Notional()
	}
	g.PnL -= ex.Fee
}

func findOrder(g *domain.SimulatedGrid, id string) *domain.GridOrder {
	for _, o := range g.Orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// recomputeMetrics derives grid metrics from its filled orders.
func recomputeMetrics(g *domain.SimulatedGrid) {
	filled := g.FilledOrders()
	m := domain.GridMetrics{TotalTrades: len(filled)}
	if len(filled) == 0 {
		g.Metrics = m
		return
	}
	var slippage float64
	wins := 0
	for _, o := range filled {
		m.TotalFees += o.Fill.Fee
		slippage += o.Fill.Slippage
		if o.BeatLimit() {
			wins++
		}
	}
	m.AverageSlippage = slippage / float64(len(filled))
	m.WinRate = float64(wins) / float64(len(filled))
	g.Metrics = m
}

// Grid returns a copy of the grid with the given id.
func (e *Engine) Grid(id string) (*domain.SimulatedGrid, error) {
	g, ok := e.grids[id]
	if !ok {
		return nil, fmt.Errorf("%w: grid %s", domain.ErrNotFound, id)
	}
	return g.Clone(), nil
}

// Grids returns copies of all grids in creation order.
func (e *Engine) Grids() []*domain.SimulatedGrid {
	out := make([]*domain.SimulatedGrid, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.grids[id].Clone())
	}
	return out
}

// Reserved is the base currency escrowed by active grids.
func (e *Engine) Reserved() float64 {
	total := 0.0
	for _, id := range e.order {
		if g := e.grids[id]; g.Status == domain.GridActive {
			total += g.Reserved
		}
	}
	return total
}

// Equity is the portfolio marked at price plus active reserves.
func (e *Engine) Equity(price float64) float64 {
	return e.portfolio.TotalValue(map[string]float64{e.tokenID: price}) + e.Reserved()
}
