package clickhouse

import (
	"context"
	"fmt"
	"time"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/observability"
	"treasury-charts/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk appends observations. Fails the entire batch on a duplicate (asset, observed_at).
func (s *PriceStore) InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (err error) {
	if len(obs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_prices", time.Since(start).Seconds(), err) }()

	type key struct {
		asset      domain.Asset
		observedAt int64
	}
	seen := make(map[key]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.Asset == "" || o.ObservedAt < 0 {
			return storage.ErrInvalidInput
		}
		k := key{o.Asset, o.ObservedAt}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness.
	for _, o := range obs {
		exists, err := s.exists(ctx, o.Asset, o.ObservedAt)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (asset, observed_at_ms, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		if err := batch.Append(string(o.Asset), uint64(o.ObservedAt), o.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Latest returns the most recent observation for asset. Returns ErrNotFound if none.
func (s *PriceStore) Latest(ctx context.Context, asset domain.Asset) (_ *domain.PriceObservation, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "latest_price", time.Since(start).Seconds(), err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT asset, observed_at_ms, price
		FROM price_observations
		WHERE asset = ?
		ORDER BY observed_at_ms DESC
		LIMIT 1
	`, string(asset))
	if err != nil {
		return nil, fmt.Errorf("query latest price: %w", err)
	}
	defer rows.Close()

	list, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	return list[0], nil
}

// History returns the observations of asset within [start, end] (ms, inclusive),
// ordered by time ascending.
func (s *PriceStore) History(ctx context.Context, asset domain.Asset, start, end int64) (_ []*domain.PriceObservation, err error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}
	begin := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "price_history", time.Since(begin).Seconds(), err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT asset, observed_at_ms, price
		FROM price_observations
		WHERE asset = ? AND observed_at_ms >= ? AND observed_at_ms <= ?
		ORDER BY observed_at_ms ASC
	`, string(asset), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func (s *PriceStore) exists(ctx context.Context, asset domain.Asset, observedAt int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM price_observations
		WHERE asset = ? AND observed_at_ms = ?
	`, string(asset), uint64(observedAt)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanObservations(rows chRows) ([]*domain.PriceObservation, error) {
	var out []*domain.PriceObservation
	for rows.Next() {
		var (
			asset      string
			observedAt uint64
			price      float64
		)
		if err := rows.Scan(&asset, &observedAt, &price); err != nil {
			return nil, fmt.Errorf("scan price observation row: %w", err)
		}
		out = append(out, &domain.PriceObservation{
			Asset:      domain.Asset(asset),
			Price:      price,
			ObservedAt: int64(observedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price observation rows: %w", err)
	}
	return out, nil
}
