package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/observability"
	"treasury-charts/internal/storage"
)

// RecordingSource wraps a live Source, records every price it returns and
// falls back to the last recorded price when the live source fails.
type RecordingSource struct {
	live   Source
	store  storage.PriceStore
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	lastTS int64
}

// RecordingOptions configures a RecordingSource.
type RecordingOptions struct {
	Live   Source
	Store  storage.PriceStore
	MaxAge time.Duration // stored prices older than this are not used; 0 = no limit
	Logger *log.Logger
}

// NewRecordingSource creates a new RecordingSource.
func NewRecordingSource(opts RecordingOptions) *RecordingSource {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RecordingSource{
		live:   opts.Live,
		store:  opts.Store,
		maxAge: opts.MaxAge,
		logger: logger,
		now:    time.Now,
	}
}

var _ Source = (*RecordingSource)(nil)

// Prices returns live prices when available, stored ones otherwise.
func (s *RecordingSource) Prices(ctx context.Context, assets ...domain.Asset) (domain.PriceSet, error) {
	prices, liveErr := s.live.Prices(ctx, assets...)
	if liveErr == nil {
		s.record(ctx, prices)
		return prices, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.logger.Printf("Live prices unavailable, using stored prices: %v", liveErr)

	prices = make(domain.PriceSet, len(assets))
	for _, a := range assets {
		obs, err := s.store.Latest(ctx, a)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s (live: %v)", ErrPriceUnavailable, a, liveErr)
			}
			return nil, fmt.Errorf("load stored price %s: %w", a, err)
		}
		if s.maxAge > 0 && s.now().Sub(time.UnixMilli(obs.ObservedAt)) > s.maxAge {
			return nil, fmt.Errorf("%w: stored %s price is stale (live: %v)", ErrPriceUnavailable, a, liveErr)
		}
		observability.RecordPriceFallback(string(a))
		prices[a] = obs.Price
	}
	return prices, nil
}

// stamp returns the observation time of a new batch. Batches recorded in the
// same millisecond get consecutive stamps so they never collide.
func (s *RecordingSource) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func (s *RecordingSource) record(ctx context.Context, prices domain.PriceSet) {
	if len(prices) == 0 {
		return
	}
	ts := s.stamp()
	obs := make([]*domain.PriceObservation, 0, len(prices))
	for a, p := range prices {
		obs = append(obs, &domain.PriceObservation{Asset: a, Price: p, ObservedAt: ts})
	}
	err := s.store.InsertBulk(ctx, obs)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrDuplicateKey):
		// Recorded already, e.g. by a previous process at the same instant.
	default:
		s.logger.Printf("Failed to record prices: %v", err)
	}
}
