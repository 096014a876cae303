package memory

import (
	"context"
	"errors"
	"testing"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/storage"
)

func TestSnapshotStore_EmptyReturnsNotFound(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if _, _, err := store.LatestTreasury(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for treasury, got %v", err)
	}
	if _, _, err := store.LatestScaling(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for scaling, got %v", err)
	}
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	first := &domain.TreasurySnapshot{
		ReservesAdded: []float64{1}, YamsSold: []float64{2}, YamsFromReserves: []float64{0},
		YamsToReserves: []float64{0}, BlockNumbers: []int64{10}, BlockTimes: []int64{100},
	}
	second := &domain.TreasurySnapshot{
		ReservesAdded: []float64{1, 3}, YamsSold: []float64{2, 4}, YamsFromReserves: []float64{0, 0},
		YamsToReserves: []float64{0, 0}, BlockNumbers: []int64{10, 20}, BlockTimes: []int64{100, 200},
	}

	if err := store.SaveTreasury(ctx, first, 1000); err != nil {
		t.Fatalf("SaveTreasury failed: %v", err)
	}
	if err := store.SaveTreasury(ctx, second, 2000); err != nil {
		t.Fatalf("SaveTreasury failed: %v", err)
	}

	got, fetchedAt, err := store.LatestTreasury(ctx)
	if err != nil {
		t.Fatalf("LatestTreasury failed: %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("expected 2 events, got %d", got.Len())
	}
	if fetchedAt != 2000 {
		t.Errorf("expected fetchedAt 2000, got %d", fetchedAt)
	}
}

func TestSnapshotStore_ReturnsCopies(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	h := &domain.ScalingHistory{Factors: []float64{1.0}, BlockNumbers: []int64{1}}
	if err := store.SaveScaling(ctx, h, 1); err != nil {
		t.Fatalf("SaveScaling failed: %v", err)
	}
	h.Factors[0] = 99

	got, _, err := store.LatestScaling(ctx)
	if err != nil {
		t.Fatalf("LatestScaling failed: %v", err)
	}
	if got.Factors[0] != 1.0 {
		t.Errorf("stored history was mutated through caller slice: %v", got.Factors)
	}

	got.Factors[0] = 42
	again, _, _ := store.LatestScaling(ctx)
	if again.Factors[0] != 1.0 {
		t.Errorf("stored history was mutated through returned slice: %v", again.Factors)
	}
}

func TestSnapshotStore_NilInput(t *testing.T) {
	store := NewSnapshotStore()
	if err := store.SaveTreasury(context.Background(), nil, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPriceStore_LatestByObservedAt(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceObservation{
		{Asset: domain.AssetWETH, Price: 470, ObservedAt: 2000},
		{Asset: domain.AssetWETH, Price: 460, ObservedAt: 1000},
		{Asset: domain.AssetDPI, Price: 80, ObservedAt: 1500},
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	// Older observation inserted later must not become latest.
	if err := store.InsertBulk(ctx, []*domain.PriceObservation{{Asset: domain.AssetWETH, Price: 450, ObservedAt: 500}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	latest, err := store.Latest(ctx, domain.AssetWETH)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Price != 470 {
		t.Errorf("expected latest WETH price 470, got %f", latest.Price)
	}

	if _, err := store.Latest(ctx, domain.AssetSUSHI); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPriceStore_DuplicateRejectsBatch(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.PriceObservation{{Asset: domain.AssetDPI, Price: 80, ObservedAt: 1}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.PriceObservation{
		{Asset: domain.AssetINDEX, Price: 11, ObservedAt: 1},
		{Asset: domain.AssetDPI, Price: 81, ObservedAt: 1},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.Latest(ctx, domain.AssetINDEX); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected batch rollback, got %v", err)
	}
}

func TestChartCache_PutGetClear(t *testing.T) {
	cache := NewChartCache()
	ctx := context.Background()

	if err := cache.Put(ctx, "sold:dark", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := cache.Get(ctx, "sold:dark")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("unexpected payload %s", got)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := cache.Get(ctx, "sold:dark"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after Clear, got %v", err)
	}
	if err := cache.Put(ctx, "", nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty key, got %v", err)
	}
}
