package domain

import (
	"errors"
	"fmt"
)

// ErrMisalignedSnapshot is returned when the parallel arrays of a snapshot differ in length.
var ErrMisalignedSnapshot = errors.New("misaligned snapshot")

// TreasurySnapshot holds the raw treasury event arrays returned by the chain provider.
// Index i of every array describes the same rebase event.
type TreasurySnapshot struct {
	ReservesAdded    []float64 `json:"reservesAdded"`    // stablecoin added to reserves per rebase
	YamsSold         []float64 `json:"yamsSold"`         // tokens sold per rebase
	YamsFromReserves []float64 `json:"yamsFromReserves"` // tokens taken from reserves
	YamsToReserves   []float64 `json:"yamsToReserves"`   // tokens moved to reserves
	BlockNumbers     []int64   `json:"blockNumbers"`     // block of the rebase
	BlockTimes       []int64   `json:"blockTimes"`       // Unix timestamp (seconds)
}

// Len returns the number of events in the snapshot.
func (s *TreasurySnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.BlockNumbers)
}

// Validate checks that all arrays share the same length.
func (s *TreasurySnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrMisalignedSnapshot)
	}
	n := len(s.BlockNumbers)
	lengths := map[string]int{
		"reservesAdded":    len(s.ReservesAdded),
		"yamsSold":         len(s.YamsSold),
		"yamsFromReserves": len(s.YamsFromReserves),
		"yamsToReserves":   len(s.YamsToReserves),
		"blockTimes":       len(s.BlockTimes),
	}
	for name, l := range lengths {
		if l != n {
			return fmt.Errorf("%w: %s has %d entries, blockNumbers has %d", ErrMisalignedSnapshot, name, l, n)
		}
	}
	return nil
}

// ScalingHistory holds the rebase scaling factor history.
type ScalingHistory struct {
	Factors      []float64 `json:"factors"`
	BlockNumbers []int64   `json:"blockNumbers"`
	BlockTimes   []int64   `json:"blockTimes"`
}

// Len returns the number of recorded factors.
func (h *ScalingHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Factors)
}

// Validate checks that factors and block numbers are aligned.
// Block times are optional.
func (h *ScalingHistory) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil scaling history", ErrMisalignedSnapshot)
	}
	if len(h.BlockNumbers) != len(h.Factors) {
		return fmt.Errorf("%w: %d factors, %d block numbers", ErrMisalignedSnapshot, len(h.Factors), len(h.BlockNumbers))
	}
	if len(h.BlockTimes) != 0 && len(h.BlockTimes) != len(h.Factors) {
		return fmt.Errorf("%w: %d factors, %d block times", ErrMisalignedSnapshot, len(h.Factors), len(h.BlockTimes))
	}
	return nil
}

// TreasuryBalances are the live treasury holdings read from chain.
type TreasuryBalances struct {
	YUSD           float64 `json:"yusd"`           // yUSD units held
	WETH           float64 `json:"weth"`           // WETH units held
	DPI            float64 `json:"dpi"`            // DPI units held
	IndexLPRewards float64 `json:"indexLpRewards"` // unclaimed INDEX from the LP pool
	SushiRewards   float64 `json:"sushiRewards"`   // unclaimed SUSHI
}

// Complete reports whether the balances needed by the reserves chart are present.
func (b *TreasuryBalances) Complete() bool {
	return b != nil && b.YUSD != 0 && b.WETH != 0 && b.DPI != 0
}
