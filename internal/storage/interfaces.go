package storage

import (
	"context"
	"time"

	"grid-trading-lab/internal/domain"
)

// SessionRecord is the archived header of a stopped session.
type SessionRecord struct {
	SessionID        string
	Config           domain.SimulationConfig
	Scenario         domain.MarketScenario
	StartedAt        time.Time // wall clock
	StoppedAt        time.Time // wall clock
	SimulatedStart   time.Time
	SimulatedEnd     time.Time
	InitialPortfolio *domain.Portfolio
	FinalPortfolio   *domain.Portfolio
	TickCount        int
	ExecutionCount   int
	FinalPrice       float64
}

// Clone returns a deep copy.
func (r *SessionRecord) Clone() *SessionRecord {
	c := *r
	if r.InitialPortfolio != nil {
		c.InitialPortfolio = r.InitialPortfolio.Clone()
	}
	if r.FinalPortfolio != nil {
		c.FinalPortfolio = r.FinalPortfolio.Clone()
	}
	return &c
}

// SessionStore provides access to archived session headers.
type SessionStore interface {
	// Insert adds a session. Returns ErrDuplicateKey if session_id exists.
	Insert(ctx context.Context, r *SessionRecord) error

	// GetByID retrieves a session by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, sessionID string) (*SessionRecord, error)

	// List retrieves all sessions, ordered by started_at ASC, session_id ASC.
	List(ctx context.Context) ([]*SessionRecord, error)
}

// GridStore provides access to archived grids.
type GridStore interface {
	// InsertBulk adds the grids of a session atomically, keeping their order.
	// Fails entire batch on duplicate grid_id.
	InsertBulk(ctx context.Context, sessionID string, grids []*domain.SimulatedGrid) error

	// GetBySessionID retrieves the grids of a session in creation order.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.SimulatedGrid, error)
}

// ExecutionStore provides access to the archived execution log.
type ExecutionStore interface {
	// InsertBulk appends executions to a session's log atomically.
	// Fails entire batch on duplicate execution_id.
	InsertBulk(ctx context.Context, sessionID string, execs []*domain.OrderExecution) error

	// GetBySessionID retrieves a session's log in log order.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.OrderExecution, error)

	// GetByGridID retrieves the executions of one grid in log order.
	GetByGridID(ctx context.Context, gridID string) ([]*domain.OrderExecution, error)
}

// PriceTickStore provides access to archived price ticks.
type PriceTickStore interface {
	// InsertBulk adds ticks. Fails entire batch on duplicate (session_id, tick_index).
	InsertBulk(ctx context.Context, sessionID string, ticks []domain.PriceTick) error

	// GetBySessionID retrieves all ticks of a session, ordered by tick_index ASC.
	GetBySessionID(ctx context.Context, sessionID string) ([]domain.PriceTick, error)

	// GetByTimeRange retrieves ticks with timestamp within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, sessionID string, start, end time.Time) ([]domain.PriceTick, error)
}

// ValueSeriesStore provides access to archived equity series.
type ValueSeriesStore interface {
	// InsertBulk adds points. Fails entire batch on duplicate (session_id, timestamp).
	InsertBulk(ctx context.Context, sessionID string, points []domain.ValuePoint) error

	// GetBySessionID retrieves the series of a session, ordered by timestamp ASC.
	GetBySessionID(ctx context.Context, sessionID string) ([]domain.ValuePoint, error)
}
