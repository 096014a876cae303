package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/observability"
	"treasury-charts/internal/storage"
)

// Row kinds of treasury_snapshots.
const (
	kindTreasury = "treasury"
	kindScaling  = "scaling"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Each kind is a single row replaced on every save.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// SaveTreasury replaces the stored treasury snapshot.
func (s *SnapshotStore) SaveTreasury(ctx context.Context, snap *domain.TreasurySnapshot, fetchedAt int64) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}
	return s.save(ctx, kindTreasury, snap, snap.Len(), fetchedAt)
}

// LatestTreasury returns the stored snapshot and its fetch time (ms).
func (s *SnapshotStore) LatestTreasury(ctx context.Context) (*domain.TreasurySnapshot, int64, error) {
	var snap domain.TreasurySnapshot
	fetchedAt, err := s.load(ctx, kindTreasury, &snap)
	if err != nil {
		return nil, 0, err
	}
	return &snap, fetchedAt, nil
}

// SaveScaling replaces the stored scaling history.
func (s *SnapshotStore) SaveScaling(ctx context.Context, h *domain.ScalingHistory, fetchedAt int64) error {
	if h == nil {
		return storage.ErrInvalidInput
	}
	return s.save(ctx, kindScaling, h, h.Len(), fetchedAt)
}

// LatestScaling returns the stored scaling history and its fetch time (ms).
func (s *SnapshotStore) LatestScaling(ctx context.Context) (*domain.ScalingHistory, int64, error) {
	var h domain.ScalingHistory
	fetchedAt, err := s.load(ctx, kindScaling, &h)
	if err != nil {
		return nil, 0, err
	}
	return &h, fetchedAt, nil
}

func (s *SnapshotStore) save(ctx context.Context, kind string, v interface{}, events int, fetchedAt int64) (err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "save_"+kind, time.Since(start).Seconds(), err) }()

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	query := `
		INSERT INTO treasury_snapshots (kind, payload, events, fetched_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (kind) DO UPDATE SET
			payload    = EXCLUDED.payload,
			events     = EXCLUDED.events,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, kind, payload, events, fetchedAt); err != nil {
		return wrapError("save "+kind, err)
	}
	return nil
}

func (s *SnapshotStore) load(ctx context.Context, kind string, dst interface{}) (_ int64, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "load_"+kind, time.Since(start).Seconds(), err) }()

	query := `
		SELECT payload, fetched_at
		FROM treasury_snapshots
		WHERE kind = $1
	`

	var (
		payload   []byte
		fetchedAt int64
	)
	if err := s.pool.QueryRow(ctx, query, kind).Scan(&payload, &fetchedAt); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, wrapError("load "+kind, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return 0, fmt.Errorf("decode %s: %w", kind, err)
	}
	return fetchedAt, nil
}
