// Package stub provides an in-memory chain provider for tests and offline runs.
package stub

import (
	"context"
	"sync"

	"treasury-charts/internal/chain"
	"treasury-charts/internal/domain"
)

// Provider is a stub implementation of chain.Provider.
// Zero values are returned for anything not set.
type Provider struct {
	mu       sync.Mutex
	snapshot *domain.TreasurySnapshot
	scaling  *domain.ScalingHistory
	block    int64
	balances *domain.TreasuryBalances
	err      error

	methodErrs map[string]error
	calls      map[string]int
}

// NewProvider creates a new stub provider.
func NewProvider() *Provider {
	return &Provider{methodErrs: make(map[string]error), calls: make(map[string]int)}
}

var _ chain.Provider = (*Provider)(nil)

// SetSnapshot sets the treasury snapshot returned by TreasuryEvents.
func (p *Provider) SetSnapshot(s *domain.TreasurySnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = s
}

// SetScaling sets the scaling history.
func (p *Provider) SetScaling(h *domain.ScalingHistory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scaling = h
}

// SetCurrentBlock sets the current block number.
func (p *Provider) SetCurrentBlock(block int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.block = block
}

// SetBalances sets the treasury balances.
func (p *Provider) SetBalances(b *domain.TreasuryBalances) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances = b
}

// SetError makes every call fail with err until cleared with nil.
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetMethodError makes calls of method fail with err until cleared with nil.
func (p *Provider) SetMethodError(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.methodErrs, method)
		return
	}
	p.methodErrs[method] = err
}

// Calls returns how many times method was invoked.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Provider) record(method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
	if err, ok := p.methodErrs[method]; ok {
		return err
	}
	return p.err
}

// TreasuryEvents returns a copy of the configured snapshot.
func (p *Provider) TreasuryEvents(ctx context.Context) (*domain.TreasurySnapshot, error) {
	if err := p.record(chain.MethodTreasuryEvents); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		return &domain.TreasurySnapshot{}, nil
	}
	cp := *p.snapshot
	return &cp, nil
}

// ScalingFactors returns the configured scaling history.
func (p *Provider) ScalingFactors(ctx context.Context) (*domain.ScalingHistory, error) {
	if err := p.record(chain.MethodScalingFactors); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scaling == nil {
		return &domain.ScalingHistory{}, nil
	}
	cp := *p.scaling
	return &cp, nil
}

// CurrentBlock returns the configured block number.
func (p *Provider) CurrentBlock(ctx context.Context) (int64, error) {
	if err := p.record(chain.MethodBlockNumber); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.block, nil
}

// TreasuryBalances returns the configured balances.
func (p *Provider) TreasuryBalances(ctx context.Context) (*domain.TreasuryBalances, error) {
	if err := p.record(chain.MethodTreasuryBalances); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.balances == nil {
		return &domain.TreasuryBalances{}, nil
	}
	cp := *p.balances
	return &cp, nil
}
