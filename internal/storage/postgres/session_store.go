package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

const sessionColumns = `
	session_id, scenario, config, scenario_params,
	initial_portfolio, final_portfolio,
	started_at, stopped_at, simulated_start, simulated_end,
	tick_count, execution_count, final_price
`

// Insert adds a session. Returns ErrDuplicateKey if session_id exists.
func (s *SessionStore) Insert(ctx context.Context, r *storage.SessionRecord) error {
	if r == nil || r.SessionID == "" {
		return storage.ErrInvalidInput
	}

	config, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal session config: %w", err)
	}
	scenario, err := json.Marshal(r.Scenario)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	initial, err := json.Marshal(r.InitialPortfolio)
	if err != nil {
		return fmt.Errorf("marshal initial portfolio: %w", err)
	}
	final, err := json.Marshal(r.FinalPortfolio)
	if err != nil {
		return fmt.Errorf("marshal final portfolio: %w", err)
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (
		$1, $2, $3, $4,
		$5, $6,
		$7, $8, $9, $10,
		$11, $12, $13
	)`

	_, err = s.pool.Exec(ctx, query,
		r.SessionID, r.Scenario.Name, config, scenario,
		initial, final,
		nanos(r.StartedAt), nanos(r.StoppedAt), nanos(r.SimulatedStart), nanos(r.SimulatedEnd),
		r.TickCount, r.ExecutionCount, r.FinalPrice,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by id. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (*storage.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = $1`

	r, err := scanSession(s.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}
	return r, nil
}

// List retrieves all sessions, ordered by started_at ASC, session_id ASC.
func (s *SessionStore) List(ctx context.Context) ([]*storage.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at ASC, session_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []*storage.SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return result, nil
}

// scanSession scans a single row into a SessionRecord.
func scanSession(row pgx.Row) (*storage.SessionRecord, error) {
	var (
		r                                      storage.SessionRecord
		scenarioName                           string
		config, scenario, initial, final       []byte
		startedAt, stoppedAt, simStart, simEnd int64
	)

	err := row.Scan(
		&r.SessionID, &scenarioName, &config, &scenario,
		&initial, &final,
		&startedAt, &stoppedAt, &simStart, &simEnd,
		&r.TickCount, &r.ExecutionCount, &r.FinalPrice,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(config, &r.Config); err != nil {
		return nil, fmt.Errorf("unmarshal session config: %w", err)
	}
	if err := json.Unmarshal(scenario, &r.Scenario); err != nil {
		return nil, fmt.Errorf("unmarshal scenario: %w", err)
	}
	r.InitialPortfolio = &domain.Portfolio{}
	if err := json.Unmarshal(initial, r.InitialPortfolio); err != nil {
		return nil, fmt.Errorf("unmarshal initial portfolio: %w", err)
	}
	r.FinalPortfolio = &domain.Portfolio{}
	if err := json.Unmarshal(final, r.FinalPortfolio); err != nil {
		return nil, fmt.Errorf("unmarshal final portfolio: %w", err)
	}
	if r.InitialPortfolio.Holdings == nil {
		r.InitialPortfolio.Holdings = make(map[string]float64)
	}
	if r.FinalPortfolio.Holdings == nil {
		r.FinalPortfolio.Holdings = make(map[string]float64)
	}

	r.StartedAt = fromNanos(startedAt)
	r.StoppedAt = fromNanos(stoppedAt)
	r.SimulatedStart = fromNanos(simStart)
	r.SimulatedEnd = fromNanos(simEnd)
	return &r, nil
}
