package chain

import (
	"context"

	"treasury-charts/internal/domain"
)

// Provider defines the treasury data calls made against the chain provider.
type Provider interface {
	// TreasuryEvents retrieves the aligned treasury event arrays.
	TreasuryEvents(ctx context.Context) (*domain.TreasurySnapshot, error)

	// ScalingFactors retrieves the rebase scaling factor history.
	ScalingFactors(ctx context.Context) (*domain.ScalingHistory, error)

	// CurrentBlock retrieves the latest block number.
	CurrentBlock(ctx context.Context) (int64, error)

	// TreasuryBalances retrieves live treasury holdings and unclaimed rewards.
	TreasuryBalances(ctx context.Context) (*domain.TreasuryBalances, error)
}
