package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
)

// RunTicker advances the simulator's current session every interval until
// ctx is done. Ticks are skipped while there is no running session, so a
// pause takes effect before the next tick.
func RunTicker(ctx context.Context, sim *Simulator, interval time.Duration, logger logrus.FieldLogger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := sim.GetSession()
			if s == nil || s.State() != domain.SessionRunning {
				continue
			}
			if _, err := s.AdvanceOneTick(); err != nil && !errors.Is(err, domain.ErrInvalidState) {
				logger.WithError(err).Error("tick failed")
			}
		}
	}
}

// RunToCompletion advances a running session until its duration elapses
// and returns the snapshot. A session that is not running is stopped as is.
func RunToCompletion(ctx context.Context, s *Session) (*domain.SessionSnapshot, error) {
	for s.State() == domain.SessionRunning {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.AdvanceOneTick(); err != nil {
			return nil, err
		}
	}
	if snap := s.Snapshot(); snap != nil {
		return snap, nil
	}
	return s.Stop()
}
