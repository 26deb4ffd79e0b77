package verification

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// ErrSessionNotFound is returned when the session ID doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// SnapshotLoader reads archived sessions. *archive.Archiver implements it.
type SnapshotLoader interface {
	Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error)
	List(ctx context.Context) ([]*storage.SessionRecord, error)
}

// ReplayVerifier implements Verifier over archived sessions.
type ReplayVerifier struct {
	loader SnapshotLoader
	logger logrus.FieldLogger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Loader SnapshotLoader
	Logger logrus.FieldLogger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReplayVerifier{
		loader: opts.Loader,
		logger: logger,
	}
}

// VerifySession verifies a single archived session by replaying its log.
func (v *ReplayVerifier) VerifySession(ctx context.Context, sessionID string) (*VerificationResult, error) {
	snap, err := v.loader.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	result, err := VerifySnapshot(snap)
	if err != nil {
		return nil, err
	}

	entry := v.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"executions": result.ReplayedExecutions,
	})
	if result.Match {
		entry.Debug("session replay matched")
	} else {
		entry.WithField("divergences", len(result.Divergences)).Warn("session replay diverged")
	}
	return result, nil
}

// VerifyAll verifies all archived sessions.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	sessions, err := v.loader.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalSessions: len(sessions),
		Results:       make([]VerificationResult, 0, len(sessions)),
	}

	for _, s := range sessions {
		result, err := v.VerifySession(ctx, s.SessionID)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				SessionID: s.SessionID,
				Match:     false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentSessions++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedSessions++
		} else {
			report.DivergentSessions++
		}
	}

	return report, nil
}

var _ Verifier = (*ReplayVerifier)(nil)
