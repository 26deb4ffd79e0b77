package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// GridStore implements storage.GridStore using PostgreSQL.
// Orders and metrics are stored as JSONB on the grid row.
type GridStore struct {
	pool *Pool
}

// NewGridStore creates a new GridStore.
func NewGridStore(pool *Pool) *GridStore {
	return &GridStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GridStore = (*GridStore)(nil)

// InsertBulk adds the grids of a session atomically. Fails entire batch on any duplicate.
func (s *GridStore) InsertBulk(ctx context.Context, sessionID string, grids []*domain.SimulatedGrid) error {
	if len(grids) == 0 {
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
		`SELECT COALESCE(MAX(position) + 1, 0) FROM grids WHERE session_id = $1`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next grid position: %w", err)
	}

	query := `
		INSERT INTO grids (
			grid_id, session_id, position, token_id,
			base_amount, order_count, price_min, price_max,
			status, reserved, pnl, metrics, orders,
			created_at, closed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15
		)
	`

	for i, g := range grids {
		if g == nil || g.ID == "" {
			return storage.ErrInvalidInput
		}
		metrics, err := json.Marshal(g.Metrics)
		if err != nil {
			return fmt.Errorf("marshal grid metrics: %w", err)
		}
		orders, err := json.Marshal(g.Orders)
		if err != nil {
			return fmt.Errorf("marshal grid orders: %w", err)
		}
		var closedAt *int64
		if g.ClosedAt != nil {
			n := nanos(*g.ClosedAt)
			closedAt = &n
		}

		_, err = tx.Exec(ctx, query,
			g.ID, sessionID, next+i, g.Config.TokenID,
			g.Config.BaseAmount, g.Config.OrderCount, g.Config.PriceRange.Min, g.Config.PriceRange.Max,
			string(g.Status), g.Reserved, g.PnL, metrics, orders,
			nanos(g.CreatedAt), closedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert grid in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySessionID retrieves the grids of a session in creation order.
func (s *GridStore) GetBySessionID(ctx context.Context, sessionID string) ([]*domain.SimulatedGrid, error) {
	query := `
		SELECT
			grid_id, token_id,
			base_amount, order_count, price_min, price_max,
			status, reserved, pnl, metrics, orders,
			created_at, closed_at
		FROM grids
		WHERE session_id = $1
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get grids by session id: %w", err)
	}
	defer rows.Close()

	var grids []*domain.SimulatedGrid
	for rows.Next() {
		var (
			g               domain.SimulatedGrid
			status          string
			metrics, orders []byte
			createdAt       int64
			closedAt        *int64
		)

		err := rows.Scan(
			&g.ID, &g.Config.TokenID,
			&g.Config.BaseAmount, &g.Config.OrderCount, &g.Config.PriceRange.Min, &g.Config.PriceRange.Max,
			&status, &g.Reserved, &g.PnL, &metrics, &orders,
			&createdAt, &closedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan grid row: %w", err)
		}

		if err := json.Unmarshal(metrics, &g.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal grid metrics: %w", err)
		}
		if err := json.Unmarshal(orders, &g.Orders); err != nil {
			return nil, fmt.Errorf("unmarshal grid orders: %w", err)
		}
		g.Status = domain.GridStatus(status)
		g.CreatedAt = fromNanos(createdAt)
		if closedAt != nil {
			t := fromNanos(*closedAt)
			g.ClosedAt = &t
		}

		grids = append(grids, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grid rows: %w", err)
	}

	return grids, nil
}
