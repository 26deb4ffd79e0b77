package domain

import "time"

// SessionState is the lifecycle state of a simulation session.
type SessionState string

// Session state constants
const (
	SessionCreated SessionState = "created"
	SessionRunning SessionState = "running"
	SessionPaused  SessionState = "paused"
	SessionStopped SessionState = "stopped"
)

// SessionSnapshot is the immutable result of a stopped session.
type SessionSnapshot struct {
	SessionID        string
	Config           SimulationConfig
	Scenario         MarketScenario
	StartedAt        time.Time // wall clock
	StoppedAt        time.Time // wall clock
	SimulatedStart   time.Time
	SimulatedEnd     time.Time
	InitialPortfolio *Portfolio
	FinalPortfolio   *Portfolio
	Grids            []*SimulatedGrid
	Ticks            []PriceTick
	Executions       []*OrderExecution
	ValueSeries      []ValuePoint
}

// FinalPrice is the last tick price, or the configured initial price.
func (s *SessionSnapshot) FinalPrice() float64 {
	if len(s.Ticks) == 0 {
		return s.Config.InitialPrice
	}
	return s.Ticks[len(s.Ticks)-1].Price
}

// Clone returns a deep copy. A nil snapshot clones to nil.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.InitialPortfolio != nil {
		c.InitialPortfolio = s.InitialPortfolio.Clone()
	}
	if s.FinalPortfolio != nil {
		c.FinalPortfolio = s.FinalPortfolio.Clone()
	}
	if s.Grids != nil {
		c.Grids = make([]*SimulatedGrid, len(s.Grids))
		for i, g := range s.Grids {
			c.Grids[i] = g.Clone()
		}
	}
	if s.Executions != nil {
		c.Executions = make([]*OrderExecution, len(s.Executions))
		for i, e := range s.Executions {
			e := *e
			c.Executions[i] = &e
		}
	}
	if s.Ticks != nil {
		c.Ticks = make([]PriceTick, len(s.Ticks))
		copy(c.Ticks, s.Ticks)
	}
	if s.ValueSeries != nil {
		c.ValueSeries = make([]ValuePoint, len(s.ValueSeries))
		copy(c.ValueSeries, s.ValueSeries)
	}
	return &c
}
