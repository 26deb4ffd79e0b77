package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/pricegen"
)

// Simulator holds at most one current session and exposes the
// session-level API consumed by front ends.
type Simulator struct {
	mu      sync.Mutex
	current *Session

	registry  *pricegen.Registry
	clock     func() time.Time
	logger    logrus.FieldLogger
	observers []Observer
}

// SimulatorOptions contains configuration for creating a Simulator.
type SimulatorOptions struct {
	Registry  *pricegen.Registry // shared by every session; defaults to the presets
	Clock     func() time.Time
	Logger    logrus.FieldLogger
	Observers []Observer
}

// NewSimulator creates a simulator with no session.
func NewSimulator(opts SimulatorOptions) *Simulator {
	registry := opts.Registry
	if registry == nil {
		registry = pricegen.NewRegistry()
	}
	return &Simulator{
		registry:  registry,
		clock:     opts.Clock,
		logger:    opts.Logger,
		observers: opts.Observers,
	}
}

// Registry returns the scenario registry shared by new sessions.
func (m *Simulator) Registry() *pricegen.Registry {
	return m.registry
}

// StartSimulation creates and starts a new session. It fails with
// ErrInvalidState while another session is running or paused; a stopped
// session is replaced.
func (m *Simulator) StartSimulation(cfg domain.SimulationConfig, initial *domain.Portfolio) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if st := m.current.State(); st == domain.SessionRunning || st == domain.SessionPaused {
			return nil, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, m.current.ID(), st)
		}
	}

	s, err := New(Options{
		Config:           cfg,
		InitialPortfolio: initial,
		Registry:         m.registry,
		Clock:            m.clock,
		Logger:           m.logger,
		Observers:        m.observers,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

func (m *Simulator) session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, fmt.Errorf("%w: no active session", domain.ErrInvalidState)
	}
	return m.current, nil
}

// PauseSimulation pauses the current session.
func (m *Simulator) PauseSimulation() error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.Pause()
}

// ResumeSimulation resumes the current session.
func (m *Simulator) ResumeSimulation() error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.Resume()
}

// StopSimulation stops the current session, discards it and returns its
// snapshot.
func (m *Simulator) StopSimulation() (*domain.SessionSnapshot, error) {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return nil, fmt.Errorf("%w: no active session", domain.ErrInvalidState)
	}
	return s.Stop()
}

// AdvanceOneTick advances the current session by one tick.
func (m *Simulator) AdvanceOneTick() (domain.PriceTick, error) {
	s, err := m.session()
	if err != nil {
		return domain.PriceTick{}, err
	}
	return s.AdvanceOneTick()
}

// CreateGrid creates a grid in the current session and returns its id.
func (m *Simulator) CreateGrid(cfg domain.GridConfig) (string, error) {
	s, err := m.session()
	if err != nil {
		return "", err
	}
	g, err := s.CreateGrid(cfg)
	if err != nil {
		return "", err
	}
	return g.ID, nil
}

// CancelGrid cancels a grid of the current session.
func (m *Simulator) CancelGrid(id string) (float64, error) {
	s, err := m.session()
	if err != nil {
		return 0, err
	}
	return s.CancelGrid(id)
}

// GetSession returns the current session or nil.
func (m *Simulator) GetSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// GetCurrentPrice returns the current session price, or 0 without a session.
func (m *Simulator) GetCurrentPrice() float64 {
	s := m.GetSession()
	if s == nil {
		return 0
	}
	return s.CurrentPrice()
}
