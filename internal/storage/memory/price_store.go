package memory

import (
	"context"
	"sync"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[domain.Asset][]*domain.PriceObservation // kept sorted by ObservedAt
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[domain.Asset][]*domain.PriceObservation),
	}
}

type observationKey struct {
	asset      domain.Asset
	observedAt int64
}

// InsertBulk appends observations. Fails entire batch on duplicate (asset, observed_at).
func (s *PriceStore) InsertBulk(_ context.Context, obs []*domain.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[observationKey]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.Asset == "" {
			return storage.ErrInvalidInput
		}
		k := observationKey{o.Asset, o.ObservedAt}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		for _, existing := range s.data[o.Asset] {
			if existing.ObservedAt == o.ObservedAt {
				return storage.ErrDuplicateKey
			}
		}
		batchKeys[k] = struct{}{}
	}

	for _, o := range obs {
		cp := *o
		list := s.data[o.Asset]
		i := len(list)
		for i > 0 && list[i-1].ObservedAt > cp.ObservedAt {
			i--
		}
		list = append(list, nil)
		copy(list[i+1:], list[i:])
		list[i] = &cp
		s.data[o.Asset] = list
	}
	return nil
}

// Latest returns the most recent observation for asset.
func (s *PriceStore) Latest(_ context.Context, asset domain.Asset) (*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.data[asset]
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

// History returns the observations of asset within [start, end], oldest first.
func (s *PriceStore) History(_ context.Context, asset domain.Asset, start, end int64) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PriceObservation
	for _, o := range s.data[asset] {
		if o.ObservedAt < start {
			continue
		}
		if o.ObservedAt > end {
			break
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

var _ storage.PriceStore = (*PriceStore)(nil)
