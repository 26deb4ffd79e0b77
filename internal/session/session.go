// Package session runs one simulation: it owns the simulated clock, pulls
// prices from the generator, drives the grid engine and keeps the
// append-only tick, execution and equity histories.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/executor"
	"grid-trading-lab/internal/grid"
	"grid-trading-lab/internal/idhash"
	"grid-trading-lab/internal/pricegen"
)

// durationEpsilon absorbs rounding when comparing elapsed minutes.
const durationEpsilon = 1e-9

// Session is a single simulation run.
// Ticks are strictly sequential; all methods are safe for concurrent use.
type Session struct {
	mu sync.RWMutex

	id       string
	cfg      domain.SimulationConfig
	scenario domain.MarketScenario
	state    domain.SessionState
	clock    func() time.Time
	logger   logrus.FieldLogger

	startedAt time.Time
	stoppedAt time.Time
	simStart  time.Time

	initial   *domain.Portfolio
	portfolio *domain.Portfolio
	generator *pricegen.Generator
	engine    *grid.Engine
	price     float64

	ticks      []domain.PriceTick
	executions []*domain.OrderExecution
	values     []domain.ValuePoint

	snapshot  *domain.SessionSnapshot
	observers []Observer
}

// Options contains configuration for creating a Session.
type Options struct {
	ID               string // defaults to a random UUID
	Config           domain.SimulationConfig
	InitialPortfolio *domain.Portfolio
	Registry         *pricegen.Registry // defaults to the presets
	Clock            func() time.Time   // defaults to time.Now
	PriceRand        pricegen.Rand      // defaults to a source seeded with Config.Seed
	SlippageRand     executor.Rand      // defaults to a source seeded with Config.Seed+1
	Logger           logrus.FieldLogger
	Observers        []Observer
}

// New creates a session in the created state.
func New(opts Options) (*Session, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.InitialPortfolio == nil {
		return nil, fmt.Errorf("%w: initial portfolio is required", domain.ErrInvalidConfiguration)
	}

	registry := opts.Registry
	if registry == nil {
		registry = pricegen.NewRegistry()
	}
	scenario, err := registry.Resolve(opts.Config)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = idhash.NewSessionID()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	priceRand := opts.PriceRand
	if priceRand == nil {
		priceRand = pricegen.NewSeededRand(opts.Config.Seed)
	}
	slippageRand := opts.SlippageRand
	if slippageRand == nil {
		slippageRand = pricegen.NewSeededRand(opts.Config.Seed + 1)
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	logger = logger.WithField("session_id", id)

	gen, err := pricegen.NewGenerator(pricegen.GeneratorOptions{
		Rand:           priceRand,
		ReversionLevel: opts.Config.InitialPrice,
	})
	if err != nil {
		return nil, err
	}
	ex, err := executor.New(executor.Options{
		SlippageRate: opts.Config.SlippageRate,
		FeeRate:      opts.Config.FeeRate,
		Rand:         slippageRand,
	})
	if err != nil {
		return nil, err
	}

	portfolio := opts.InitialPortfolio.Clone()
	engine, err := grid.NewEngine(grid.EngineOptions{
		SessionID: id,
		TokenID:   opts.Config.TokenID,
		Portfolio: portfolio,
		Executor:  ex,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		id:        id,
		cfg:       opts.Config,
		scenario:  scenario,
		state:     domain.SessionCreated,
		clock:     clock,
		logger:    logger,
		initial:   opts.InitialPortfolio.Clone(),
		portfolio: portfolio,
		generator: gen,
		engine:    engine,
		price:     opts.Config.InitialPrice,
		observers: opts.Observers,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the session config.
func (s *Session) Config() domain.SimulationConfig { return s.cfg }

// Scenario returns the resolved scenario.
func (s *Session) Scenario() domain.MarketScenario { return s.scenario }

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start moves a created session to running and records the opening equity.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != domain.SessionCreated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start session in state %s", domain.ErrInvalidState, state)
	}
	now := s.clock()
	s.startedAt = now
	s.simStart = now
	s.values = append(s.values, domain.ValuePoint{Timestamp: now, Value: s.engine.Equity(s.price)})
	events := []event{stateEvent(s.id, s.state, domain.SessionRunning)}
	s.state = domain.SessionRunning
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"scenario": s.scenario.Name,
		"duration": s.cfg.DurationMinutes,
		"step":     s.cfg.TickStep().String(),
	}).Info("session started")
	s.notify(events)
	return nil
}

// Pause halts tick processing. Only legal while running.
func (s *Session) Pause() error {
	return s.transition(domain.SessionRunning, domain.SessionPaused)
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	return s.transition(domain.SessionPaused, domain.SessionRunning)
}

func (s *Session) transition(from, to domain.SessionState) error {
	s.mu.Lock()
	if s.state != from {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot move session from %s to %s", domain.ErrInvalidState, state, to)
	}
	s.state = to
	s.mu.Unlock()

	s.logger.WithField("state", to).Info("session state changed")
	s.notify([]event{stateEvent(s.id, from, to)})
	return nil
}

// Stop finalizes the session and returns a copy of its snapshot. Active
// grids are completed and their reserves released. Stopping a stopped
// session returns an equal copy.
func (s *Session) Stop() (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	if s.state == domain.SessionStopped {
		snap := s.snapshot.Clone()
		s.mu.Unlock()
		return snap, nil
	}
	events := s.stopLocked()
	snap := s.snapshot.Clone()
	s.mu.Unlock()

	s.notify(events)
	return snap, nil
}

// stopLocked must be called with s.mu held.
func (s *Session) stopLocked() []event {
	from := s.state
	now := s.clock()
	if s.startedAt.IsZero() {
		s.startedAt = now
		s.simStart = now
	}

	var events []event
	for _, g := range s.engine.CloseAll(s.simulatedNowLocked()) {
		events = append(events, gridEvent(s.id, g))
	}
	s.state = domain.SessionStopped
	s.stoppedAt = now
	s.snapshot = s.buildSnapshotLocked()
	events = append(events, stateEvent(s.id, from, domain.SessionStopped))

	s.logger.WithFields(logrus.Fields{
		"ticks":      len(s.ticks),
		"executions": len(s.executions),
		"equity":     s.engine.Equity(s.price),
	}).Info("session stopped")
	return events
}

func (s *Session) buildSnapshotLocked() *domain.SessionSnapshot {
	ticks := make([]domain.PriceTick, len(s.ticks))
	copy(ticks, s.ticks)
	values := make([]domain.ValuePoint, len(s.values))
	copy(values, s.values)
	return &domain.SessionSnapshot{
		SessionID:        s.id,
		Config:           s.cfg,
		Scenario:         s.scenario,
		StartedAt:        s.startedAt,
		StoppedAt:        s.stoppedAt,
		SimulatedStart:   s.simStart,
		SimulatedEnd:     s.simulatedNowLocked(),
		InitialPortfolio: s.initial.Clone(),
		FinalPortfolio:   s.portfolio.Clone(),
		Grids:            s.engine.Grids(),
		Ticks:            ticks,
		Executions:       cloneExecutions(s.executions),
		ValueSeries:      values,
	}
}

// AdvanceOneTick generates the next tick, matches every active grid
// against it and records the new equity. The session stops itself once
// the configured duration has elapsed.
func (s *Session) AdvanceOneTick() (domain.PriceTick, error) {
	s.mu.Lock()
	if s.state != domain.SessionRunning {
		state := s.state
		s.mu.Unlock()
		return domain.PriceTick{}, fmt.Errorf("%w: cannot advance session in state %s", domain.ErrInvalidState, state)
	}

	sample, err := s.generator.Next(s.price, s.cfg.TickStep(), s.cfg, s.scenario)
	if err != nil {
		s.mu.Unlock()
		return domain.PriceTick{}, err
	}

	n := int64(len(s.ticks))
	tick := domain.PriceTick{
		Index:     n,
		Timestamp: s.simStart.Add(time.Duration(n+1) * s.cfg.TickStep()),
		Price:     sample.Price,
		Volume:    sample.Volume,
	}
	s.price = tick.Price
	s.ticks = append(s.ticks, tick)

	execs, changed := s.engine.ProcessTick(tick)
	s.executions = append(s.executions, execs...)

	equity := s.engine.Equity(tick.Price)
	s.values = append(s.values, domain.ValuePoint{Timestamp: tick.Timestamp, Value: equity})

	events := []event{tickEvent(s.id, tick, equity)}
	for _, ex := range execs {
		events = append(events, executionEvent(s.id, ex))
	}
	for _, g := range changed {
		events = append(events, gridEvent(s.id, g))
	}

	if s.elapsedMinutesLocked() >= s.cfg.DurationMinutes-durationEpsilon {
		events = append(events, s.stopLocked()...)
	}
	s.mu.Unlock()

	if len(execs) > 0 {
		s.logger.WithFields(logrus.Fields{
			"tick":  tick.Index,
			"price": tick.Price,
			"fills": len(execs),
		}).Debug("orders filled")
	}
	s.notify(events)
	return tick, nil
}

func (s *Session) elapsedMinutesLocked() float64 {
	return float64(len(s.ticks)) / s.cfg.TimeAcceleration
}

func (s *Session) simulatedNowLocked() time.Time {
	return s.simStart.Add(time.Duration(len(s.ticks)) * s.cfg.TickStep())
}

// CreateGrid places a grid at the current price. Legal while running or
// paused.
func (s *Session) CreateGrid(cfg domain.GridConfig) (*domain.SimulatedGrid, error) {
	s.mu.Lock()
	if s.state != domain.SessionRunning && s.state != domain.SessionPaused {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot create grid in session state %s", domain.ErrInvalidState, state)
	}
	g, err := s.engine.CreateGrid(cfg, s.price, s.simulatedNowLocked())
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.notify([]event{gridEvent(s.id, g)})
	return g, nil
}

// CancelGrid cancels an active grid and returns the refunded reserve.
func (s *Session) CancelGrid(id string) (float64, error) {
	s.mu.Lock()
	if s.state != domain.SessionRunning && s.state != domain.SessionPaused {
		state := s.state
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: cannot cancel grid in session state %s", domain.ErrInvalidState, state)
	}
	refund, err := s.engine.CancelGrid(id, s.simulatedNowLocked())
	var g *domain.SimulatedGrid
	if err == nil {
		g, err = s.engine.Grid(id)
	}
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	s.notify([]event{gridEvent(s.id, g)})
	return refund, nil
}

// CurrentPrice returns the last tick price, or the initial price.
func (s *Session) CurrentPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// Grid returns a copy of one grid.
func (s *Session) Grid(id string) (*domain.SimulatedGrid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Grid(id)
}

// Grids returns copies of all grids in creation order.
func (s *Session) Grids() []*domain.SimulatedGrid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Grids()
}

// Portfolio returns a copy of the live portfolio.
func (s *Session) Portfolio() *domain.Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portfolio.Clone()
}

// InitialPortfolio returns a copy of the portfolio the session started with.
func (s *Session) InitialPortfolio() *domain.Portfolio {
	return s.initial.Clone()
}

// Ticks returns a copy of the price history.
func (s *Session) Ticks() []domain.PriceTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PriceTick, len(s.ticks))
	copy(out, s.ticks)
	return out
}

// Executions returns a copy of the execution log.
func (s *Session) Executions() []*domain.OrderExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneExecutions(s.executions)
}

// ValueSeries returns a copy of the equity series. The first point is the
// opening equity.
func (s *Session) ValueSeries() []domain.ValuePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ValuePoint, len(s.values))
	copy(out, s.values)
	return out
}

// Snapshot returns a copy of the final snapshot, or nil before the
// session stops.
func (s *Session) Snapshot() *domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Info is a point-in-time view of a session.
type Info struct {
	ID            string
	State         domain.SessionState
	Config        domain.SimulationConfig
	Scenario      string
	StartedAt     time.Time
	SimulatedTime time.Time
	TickCount     int
	CurrentPrice  float64
	Equity        float64
	Reserved      float64
	Portfolio     *domain.Portfolio
	GridCount     int
}

// Info returns the current session view.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:            s.id,
		State:         s.state,
		Config:        s.cfg,
		Scenario:      s.scenario.Name,
		StartedAt:     s.startedAt,
		SimulatedTime: s.simulatedNowLocked(),
		TickCount:     len(s.ticks),
		CurrentPrice:  s.price,
		Equity:        s.engine.Equity(s.price),
		Reserved:      s.engine.Reserved(),
		Portfolio:     s.portfolio.Clone(),
		GridCount:     len(s.engine.Grids()),
	}
}

func cloneExecutions(in []*domain.OrderExecution) []*domain.OrderExecution {
	out := make([]*domain.OrderExecution, len(in))
	for i, e := range in {
		c := *e
		out[i] = &c
	}
	return out
}
