package clickhouse

import (
	"context"
	"fmt"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk adds ticks. Fails entire batch on duplicate (session_id, tick_index).
func (s *PriceTickStore) InsertBulk(ctx context.Context, sessionID string, ticks []domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(ticks))
	for _, t := range ticks {
		if t.Index < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[t.Index]; exists {
			return storage.ErrDuplicateKey
		}
		seen[t.Index] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	exists, err := s.anyExists(ctx, sessionID, ticks)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (
			session_id, tick_index, timestamp, price, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			sessionID, uint64(t.Index), t.Timestamp.UTC(), t.Price, t.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySessionID retrieves all ticks of a session, ordered by tick_index ASC.
func (s *PriceTickStore) GetBySessionID(ctx context.Context, sessionID string) ([]domain.PriceTick, error) {
	query := `
		SELECT tick_index, timestamp, price, volume
		FROM price_ticks
		WHERE session_id = ?
		ORDER BY tick_index ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session id: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

// GetByTimeRange retrieves ticks with timestamp within [start, end] (inclusive).
func (s *PriceTickStore) GetByTimeRange(ctx context.Context, sessionID string, start, end time.Time) ([]domain.PriceTick, error) {
	query := `
		SELECT tick_index, timestamp, price, volume
		FROM price_ticks
		WHERE session_id = ?
			AND timestamp >= fromUnixTimestamp64Nano(?)
			AND timestamp <= fromUnixTimestamp64Nano(?)
		ORDER BY tick_index ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

// anyExists checks if any of the tick indexes is already stored for the session.
func (s *PriceTickStore) anyExists(ctx context.Context, sessionID string, ticks []domain.PriceTick) (bool, error) {
	indexes := make([]uint64, len(ticks))
	for i, t := range ticks {
		indexes[i] = uint64(t.Index)
	}

	query := `
		SELECT count(*) FROM price_ticks
		WHERE session_id = ? AND tick_index IN (?)
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sessionID, indexes).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceTicks scans multiple rows.
func scanPriceTicks(rows chRows) ([]domain.PriceTick, error) {
	var ticks []domain.PriceTick

	for rows.Next() {
		var t domain.PriceTick
		var index uint64

		err := rows.Scan(&index, &t.Timestamp, &t.Price, &t.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}

		t.Index = int64(index)
		t.Timestamp = t.Timestamp.UTC()
		ticks = append(ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}

	return ticks, nil
}
