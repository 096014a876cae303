package memory

import (
	"context"
	"sync"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu               sync.RWMutex
	treasury         *domain.TreasurySnapshot
	treasuryFetched  int64
	scaling          *domain.ScalingHistory
	scalingFetchedAt int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// SaveTreasury replaces the stored treasury snapshot.
func (s *SnapshotStore) SaveTreasury(_ context.Context, snap *domain.TreasurySnapshot, fetchedAt int64) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}
	cp := copyTreasury(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.treasury = cp
	s.treasuryFetched = fetchedAt
	return nil
}

// LatestTreasury returns the stored snapshot.
func (s *SnapshotStore) LatestTreasury(_ context.Context) (*domain.TreasurySnapshot, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.treasury == nil {
		return nil, 0, storage.ErrNotFound
	}
	return copyTreasury(s.treasury), s.treasuryFetched, nil
}

// SaveScaling replaces the stored scaling history.
func (s *SnapshotStore) SaveScaling(_ context.Context, h *domain.ScalingHistory, fetchedAt int64) error {
	if h == nil {
		return storage.ErrInvalidInput
	}
	cp := copyScaling(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaling = cp
	s.scalingFetchedAt = fetchedAt
	return nil
}

// LatestScaling returns the stored scaling history.
func (s *SnapshotStore) LatestScaling(_ context.Context) (*domain.ScalingHistory, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scaling == nil {
		return nil, 0, storage.ErrNotFound
	}
	return copyScaling(s.scaling), s.scalingFetchedAt, nil
}

func copyTreasury(s *domain.TreasurySnapshot) *domain.TreasurySnapshot {
	return &domain.TreasurySnapshot{
		ReservesAdded:    append([]float64(nil), s.ReservesAdded...),
		YamsSold:         append([]float64(nil), s.YamsSold...),
		YamsFromReserves: append([]float64(nil), s.YamsFromReserves...),
		YamsToReserves:   append([]float64(nil), s.YamsToReserves...),
		BlockNumbers:     append([]int64(nil), s.BlockNumbers...),
		BlockTimes:       append([]int64(nil), s.BlockTimes...),
	}
}

func copyScaling(h *domain.ScalingHistory) *domain.ScalingHistory {
	return &domain.ScalingHistory{
		Factors:      append([]float64(nil), h.Factors...),
		BlockNumbers: append([]int64(nil), h.BlockNumbers...),
		BlockTimes:   append([]int64(nil), h.BlockTimes...),
	}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
