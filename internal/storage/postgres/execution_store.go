package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL.
// Amount, price, market price and fee are NUMERIC columns written through
// decimal.Decimal, so stored values round-trip to the same float64.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// InsertBulk appends executions to a session's log atomically.
// Fails entire batch on any duplicate.
func (s *ExecutionStore) InsertBulk(ctx context.Context, sessionID string, execs []*domain.OrderExecution) error {
	if len(execs) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM executions WHERE session_id = $1`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next execution seq: %w", err)
	}

	query := `
		INSERT INTO executions (
			execution_id, session_id, seq, order_id, grid_id, token_id, side,
			amount, price, market_price, fee, slippage,
			executed_at, tick_index, success, failure_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)
	`

	for i, e := range execs {
		if e == nil || e.ID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			e.ID, sessionID, next+i, e.OrderID, e.GridID, e.TokenID, string(e.Side),
			decimal.NewFromFloat(e.Amount), decimal.NewFromFloat(e.Price),
			decimal.NewFromFloat(e.MarketPrice), decimal.NewFromFloat(e.Fee), e.Slippage,
			nanos(e.Timestamp), e.TickIndex, e.Success, e.FailureReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert execution in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySessionID retrieves a session's log in log order.
func (s *ExecutionStore) GetBySessionID(ctx context.Context, sessionID string) ([]*domain.OrderExecution, error) {
	query := `
		SELECT
			execution_id, order_id, grid_id, token_id, side,
			amount, price, market_price, fee, slippage,
			executed_at, tick_index, success, failure_reason
		FROM executions
		WHERE session_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get executions by session id: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetByGridID retrieves the executions of one grid in log order.
func (s *ExecutionStore) GetByGridID(ctx context.Context, gridID string) ([]*domain.OrderExecution, error) {
	query := `
		SELECT
			execution_id, order_id, grid_id, token_id, side,
			amount, price, market_price, fee, slippage,
			executed_at, tick_index, success, failure_reason
		FROM executions
		WHERE grid_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, gridID)
	if err != nil {
		return nil, fmt.Errorf("get executions by grid id: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// scanExecutions scans multiple rows into a slice of OrderExecution.
func scanExecutions(rows pgx.Rows) ([]*domain.OrderExecution, error) {
	var execs []*domain.OrderExecution

	for rows.Next() {
		var (
			e                          domain.OrderExecution
			side                       string
			amount, price, market, fee decimal.Decimal
			executedAt                 int64
		)

		err := rows.Scan(
			&e.ID, &e.OrderID, &e.GridID, &e.TokenID, &side,
			&amount, &price, &market, &fee, &e.Slippage,
			&executedAt, &e.TickIndex, &e.Success, &e.FailureReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}

		e.Side = domain.Side(side)
		e.Amount = amount.InexactFloat64()
		e.Price = price.InexactFloat64()
		e.MarketPrice = market.InexactFloat64()
		e.Fee = fee.InexactFloat64()
		e.Timestamp = fromNanos(executedAt)

		execs = append(execs, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}

	return execs, nil
}
