// Package archive writes stopped session snapshots to the stores and reads
// them back.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
	"grid-trading-lab/internal/storage/memory"
)

// batchSize bounds the rows sent per InsertBulk call for the time series.
const batchSize = 5000

// ErrIncomplete is returned by Load when the stored rows disagree with the
// session header counts.
var ErrIncomplete = errors.New("archived session incomplete")

// Stores groups the stores an archive writes to.
// Ticks and Values are optional; without them the time series are skipped.
type Stores struct {
	Sessions   storage.SessionStore
	Grids      storage.GridStore
	Executions storage.ExecutionStore
	Ticks      storage.PriceTickStore
	Values     storage.ValueSeriesStore
}

// MemoryStores returns a full set of in-memory stores.
func MemoryStores() Stores {
	return Stores{
		Sessions:   memory.NewSessionStore(),
		Grids:      memory.NewGridStore(),
		Executions: memory.NewExecutionStore(),
		Ticks:      memory.NewPriceTickStore(),
		Values:     memory.NewValueSeriesStore(),
	}
}

// Archiver saves and loads session snapshots.
type Archiver struct {
	stores Stores
	logger logrus.FieldLogger
}

// Options contains configuration for creating an Archiver.
type Options struct {
	Stores Stores
	Logger logrus.FieldLogger
}

// New creates an Archiver. Sessions, Grids and Executions stores are required.
func New(opts Options) (*Archiver, error) {
	if opts.Stores.Sessions == nil || opts.Stores.Grids == nil || opts.Stores.Executions == nil {
		return nil, fmt.Errorf("%w: session, grid and execution stores are required", domain.ErrInvalidConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Archiver{
		stores: opts.Stores,
		logger: logger.WithField("component", "archive"),
	}, nil
}

// RecordFromSnapshot builds the session header stored for a snapshot.
func RecordFromSnapshot(snap *domain.SessionSnapshot) *storage.SessionRecord {
	return &storage.SessionRecord{
		SessionID:        snap.SessionID,
		Config:           snap.Config,
		Scenario:         snap.Scenario,
		StartedAt:        snap.StartedAt,
		StoppedAt:        snap.StoppedAt,
		SimulatedStart:   snap.SimulatedStart,
		SimulatedEnd:     snap.SimulatedEnd,
		InitialPortfolio: snap.InitialPortfolio.Clone(),
		FinalPortfolio:   snap.FinalPortfolio.Clone(),
		TickCount:        len(snap.Ticks),
		ExecutionCount:   len(snap.Executions),
		FinalPrice:       snap.FinalPrice(),
	}
}

// Save archives a snapshot. The header is written first so a session id can
// only be archived once; a second Save returns storage.ErrDuplicateKey.
func (a *Archiver) Save(ctx context.Context, snap *domain.SessionSnapshot) error {
	if snap == nil || snap.SessionID == "" {
		return storage.ErrInvalidInput
	}
	id := snap.SessionID

	if err := a.stores.Sessions.Insert(ctx, RecordFromSnapshot(snap)); err != nil {
		return fmt.Errorf("archive session %s: %w", id, err)
	}
	if err := a.stores.Grids.InsertBulk(ctx, id, snap.Grids); err != nil {
		return fmt.Errorf("archive grids of %s: %w", id, err)
	}
	if err := a.stores.Executions.InsertBulk(ctx, id, snap.Executions); err != nil {
		return fmt.Errorf("archive executions of %s: %w", id, err)
	}

	if a.stores.Ticks != nil {
		for start := 0; start < len(snap.Ticks); start += batchSize {
			end := min(start+batchSize, len(snap.Ticks))
			if err := a.stores.Ticks.InsertBulk(ctx, id, snap.Ticks[start:end]); err != nil {
				return fmt.Errorf("archive ticks of %s: %w", id, err)
			}
		}
	}
	if a.stores.Values != nil {
		for start := 0; start < len(snap.ValueSeries); start += batchSize {
			end := min(start+batchSize, len(snap.ValueSeries))
			if err := a.stores.Values.InsertBulk(ctx, id, snap.ValueSeries[start:end]); err != nil {
				return fmt.Errorf("archive equity series of %s: %w", id, err)
			}
		}
	}

	a.logger.WithFields(logrus.Fields{
		"session_id": id,
		"grids":      len(snap.Grids),
		"executions": len(snap.Executions),
		"ticks":      len(snap.Ticks),
	}).Info("session archived")
	return nil
}

// Load rebuilds a snapshot from the stores. Returns storage.ErrNotFound for
// an unknown session.
func (a *Archiver) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	r, err := a.stores.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	grids, err := a.stores.Grids.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load grids of %s: %w", sessionID, err)
	}
	execs, err := a.stores.Executions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load executions of %s: %w", sessionID, err)
	}
	if len(execs) != r.ExecutionCount {
		return nil, fmt.Errorf("%w: %s has %d executions, header says %d", ErrIncomplete, sessionID, len(execs), r.ExecutionCount)
	}

	snap := &domain.SessionSnapshot{
		SessionID:        r.SessionID,
		Config:           r.Config,
		Scenario:         r.Scenario,
		StartedAt:        r.StartedAt,
		StoppedAt:        r.StoppedAt,
		SimulatedStart:   r.SimulatedStart,
		SimulatedEnd:     r.SimulatedEnd,
		InitialPortfolio: r.InitialPortfolio,
		FinalPortfolio:   r.FinalPortfolio,
		Grids:            grids,
		Executions:       execs,
	}

	if a.stores.Ticks != nil {
		ticks, err := a.stores.Ticks.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load ticks of %s: %w", sessionID, err)
		}
		if len(ticks) != r.TickCount {
			return nil, fmt.Errorf("%w: %s has %d ticks, header says %d", ErrIncomplete, sessionID, len(ticks), r.TickCount)
		}
		snap.Ticks = ticks
	}
	if a.stores.Values != nil {
		values, err := a.stores.Values.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load equity series of %s: %w", sessionID, err)
		}
		snap.ValueSeries = values
	}

	return snap, nil
}

// List returns the archived session headers.
func (a *Archiver) List(ctx context.Context) ([]*storage.SessionRecord, error) {
	return a.stores.Sessions.List(ctx)
}
