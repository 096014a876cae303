// Package poller keeps the current treasury snapshot fresh.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"treasury-charts/internal/chain"
	"treasury-charts/internal/domain"
	"treasury-charts/internal/observability"
	"treasury-charts/internal/storage"
)

// DefaultInterval is the time between treasury event fetches.
const DefaultInterval = 100 * time.Second

// Poller periodically fetches the treasury snapshot and holds the latest one.
// A failed fetch leaves the previous snapshot in place; the next tick is the retry.
type Poller struct {
	provider chain.Provider
	store    storage.SnapshotStore
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu       sync.RWMutex
	snapshot *domain.TreasurySnapshot
	version  uint64

	subMu  sync.Mutex
	subs   map[int]chan uint64
	nextID int
}

// Options contains configuration for creating a Poller.
type Options struct {
	Provider chain.Provider
	Store    storage.SnapshotStore // optional; persists each snapshot and serves warm start
	Interval time.Duration         // Default: 100s
	Logger   *log.Logger
}

// New creates a new Poller.
func New(opts Options) *Poller {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Poller{
		provider: opts.Provider,
		store:    opts.Store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[int]chan uint64),
	}
}

// WarmStart loads the last persisted snapshot so charts can be built before
// the first fetch completes. A missing snapshot is not an error.
func (p *Poller) WarmStart(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	snap, fetchedAt, err := p.store.LatestTreasury(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load persisted snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		p.logger.Printf("Ignoring persisted snapshot: %v", err)
		return nil
	}

	p.replace(snap)
	p.logger.Printf("Warm start: loaded snapshot with %d events fetched at %s",
		snap.Len(), time.UnixMilli(fetchedAt).UTC().Format(time.RFC3339))
	return nil
}

// Run fetches immediately and then on every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Printf("Poller started, interval: %v", p.interval)

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Println("Poller stopping...")
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one fetch. It reports whether the held snapshot was replaced.
func (p *Poller) Poll(ctx context.Context) bool {
	start := p.now()

	snap, err := p.provider.TreasuryEvents(ctx)
	if err == nil {
		err = snap.Validate()
	}
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Printf("Treasury fetch failed, keeping previous snapshot: %v", err)
		}
		observability.RecordPoll("error", p.now().Sub(start).Seconds())
		return false
	}

	version := p.replace(snap)
	fetchedAt := p.now()
	observability.RecordPoll("ok", fetchedAt.Sub(start).Seconds())
	observability.RecordSnapshot(version, snap.Len(), fetchedAt.Unix())

	if p.store != nil {
		if err := p.store.SaveTreasury(ctx, snap, fetchedAt.UnixMilli()); err != nil {
			p.logger.Printf("Failed to persist snapshot: %v", err)
		}
	}
	return true
}

// replace installs snap as the current snapshot and notifies subscribers.
func (p *Poller) replace(snap *domain.TreasurySnapshot) uint64 {
	p.mu.Lock()
	p.snapshot = snap
	p.version++
	version := p.version
	p.mu.Unlock()

	p.notify(version)
	return version
}

// Latest returns the current snapshot and its version.
// The snapshot is shared and must not be modified. Version 0 means none yet.
func (p *Poller) Latest() (*domain.TreasurySnapshot, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot, p.version
}

// Subscribe returns a channel receiving the version of every new snapshot.
// Slow receivers only see the most recent version. Call cancel to unsubscribe.
func (p *Poller) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.subMu.Unlock()

	cancel := func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (p *Poller) notify(version uint64) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- version:
		default:
			// Drop the stale pending version and keep the newest.
			select {
			case <-ch:
			default:
			}
			ch <- version
		}
	}
}
