package storage

import (
	"context"

	"treasury-charts/internal/domain"
)

// SnapshotStore keeps the most recent treasury snapshot and scaling history.
// Saving replaces the previous value; no history is retained.
type SnapshotStore interface {
	// SaveTreasury replaces the stored treasury snapshot.
	SaveTreasury(ctx context.Context, s *domain.TreasurySnapshot, fetchedAt int64) error

	// LatestTreasury returns the stored snapshot and its fetch time (ms).
	// Returns ErrNotFound if nothing was saved yet.
	LatestTreasury(ctx context.Context) (*domain.TreasurySnapshot, int64, error)

	// SaveScaling replaces the stored scaling history.
	SaveScaling(ctx context.Context, h *domain.ScalingHistory, fetchedAt int64) error

	// LatestScaling returns the stored scaling history and its fetch time (ms).
	// Returns ErrNotFound if nothing was saved yet.
	LatestScaling(ctx context.Context) (*domain.ScalingHistory, int64, error)
}

// PriceStore records spot price observations.
type PriceStore interface {
	// InsertBulk appends observations.
	InsertBulk(ctx context.Context, obs []*domain.PriceObservation) error

	// Latest returns the most recent observation for asset. Returns ErrNotFound if none.
	Latest(ctx context.Context, asset domain.Asset) (*domain.PriceObservation, error)

	// History returns the observations of asset within [start, end] (ms, inclusive),
	// ordered by time ascending.
	History(ctx context.Context, asset domain.Asset, start, end int64) ([]*domain.PriceObservation, error)
}

// ChartCache holds rendered chart images keyed by chart build, format and size.
type ChartCache interface {
	// Put stores payload under key.
	Put(ctx context.Context, key string, payload []byte) error

	// Get returns the payload under key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Clear drops every cached payload.
	Clear(ctx context.Context) error
}
