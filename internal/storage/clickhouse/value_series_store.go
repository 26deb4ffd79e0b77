package clickhouse

import (
	"context"
	"fmt"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// ValueSeriesStore implements storage.ValueSeriesStore using ClickHouse.
type ValueSeriesStore struct {
	conn *Conn
}

// NewValueSeriesStore creates a new ValueSeriesStore.
func NewValueSeriesStore(conn *Conn) *ValueSeriesStore {
	return &ValueSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ValueSeriesStore = (*ValueSeriesStore)(nil)

// InsertBulk adds points. Fails entire batch on duplicate (session_id, timestamp).
func (s *ValueSeriesStore) InsertBulk(ctx context.Context, sessionID string, points []domain.ValuePoint) error {
	if len(points) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(points))
	nanos := make([]int64, 0, len(points))
	for _, p := range points {
		k := p.Timestamp.UnixNano()
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		nanos = append(nanos, k)
	}

	// Check for duplicates against existing DB rows
	query := `
		SELECT count(*) FROM equity_series
		WHERE session_id = ? AND toUnixTimestamp64Nano(timestamp) IN (?)
	`
	var count uint64
	if err := s.conn.QueryRow(ctx, query, sessionID, nanos).Scan(&count); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_series (session_id, timestamp, value)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(sessionID, p.Timestamp.UTC(), p.Value); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySessionID retrieves the series of a session, ordered by timestamp ASC.
func (s *ValueSeriesStore) GetBySessionID(ctx context.Context, sessionID string) ([]domain.ValuePoint, error) {
	query := `
		SELECT timestamp, value
		FROM equity_series
		WHERE session_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session id: %w", err)
	}
	defer rows.Close()

	var points []domain.ValuePoint
	for rows.Next() {
		var p domain.ValuePoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}

	return points, nil
}
