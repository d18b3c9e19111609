package inventory

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/pkg/clock"
)

func newTestLedger(t *testing.T, capacity int) (*MemoryLedger, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := NewMemoryLedger(clk)
	if err := ledger.Register(context.Background(), "tt-1", capacity, 0, 0); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return ledger, clk
}

func snapshotOf(t *testing.T, ledger Ledger, typeID string) Snapshot {
	t.Helper()
	snap, err := ledger.Snapshot(context.Background(), typeID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

func TestMemoryLedger_ReserveCommitRelease(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, 10)

	res, err := ledger.TryReserve(ctx, "tt-1", 4, time.Minute)
	if err != nil {
		t.Fatalf("TryReserve() error = %v", err)
	}

	snap := snapshotOf(t, ledger, "tt-1")
	if snap.Available != 6 || snap.Reserved != 4 || snap.Sold != 0 {
		t.Fatalf("after reserve: %+v", snap)
	}

	if err := ledger.Commit(ctx, res.Token); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	snap = snapshotOf(t, ledger, "tt-1")
	if snap.Available != 6 || snap.Reserved != 0 || snap.Sold != 4 {
		t.Fatalf("after commit: %+v", snap)
	}

	// A settled token is gone.
	if err := ledger.Commit(ctx, res.Token); err != ErrUnknownReservation {
		t.Errorf("double commit: got %v, want ErrUnknownReservation", err)
	}

	res2, err := ledger.TryReserve(ctx, "tt-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("TryReserve() error = %v", err)
	}
	if err := ledger.Release(ctx, res2.Token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	snap = snapshotOf(t, ledger, "tt-1")
	if snap.Available != 6 || snap.Reserved != 0 || snap.Sold != 4 {
		t.Fatalf("after release: %+v", snap)
	}
}

func TestMemoryLedger_NoPartialReservation(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, 100)

	if _, err := ledger.TryReserve(ctx, "tt-1", 100, time.Minute); err != nil {
		t.Fatalf("reserving full capacity: %v", err)
	}

	before := snapshotOf(t, ledger, "tt-1")
	_, err := ledger.TryReserve(ctx, "tt-1", 1, time.Minute)
	if !domain.IsInsufficientInventory(err) {
		t.Fatalf("overselling reserve: got %v, want InsufficientInventoryError", err)
	}

	after := snapshotOf(t, ledger, "tt-1")
	if before != after {
		t.Errorf("failed reserve mutated counters: before %+v, after %+v", before, after)
	}
	if after.Available != 0 || after.Reserved != 100 || after.Capacity != 100 {
		t.Errorf("unexpected counters: %+v", after)
	}
}

func TestMemoryLedger_Refund(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, 10)

	res, _ := ledger.TryReserve(ctx, "tt-1", 5, time.Minute)
	if err := ledger.Commit(ctx, res.Token); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if err := ledger.Refund(ctx, "tt-1", 3); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}
	snap := snapshotOf(t, ledger, "tt-1")
	if snap.Sold != 2 || snap.Refunded != 3 {
		t.Fatalf("after refund: %+v", snap)
	}
	// Refunded units never return to the sellable pool.
	if snap.Available != 5 {
		t.Errorf("refund leaked units into available: %+v", snap)
	}

	if err := ledger.Refund(ctx, "tt-1", 5); err == nil {
		t.Error("refund beyond sold accepted")
	}
}

func TestMemoryLedger_UnknownType(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(nil)

	if _, err := ledger.TryReserve(ctx, "missing", 1, time.Minute); err != ErrUnknownTicketType {
		t.Errorf("TryReserve() error = %v, want ErrUnknownTicketType", err)
	}
	if _, err := ledger.Snapshot(ctx, "missing"); err != ErrUnknownTicketType {
		t.Errorf("Snapshot() error = %v, want ErrUnknownTicketType", err)
	}
}

func TestMemoryLedger_Expired(t *testing.T) {
	ctx := context.Background()
	ledger, clk := newTestLedger(t, 10)

	stale, _ := ledger.TryReserve(ctx, "tt-1", 2, time.Minute)
	clk.Advance(2 * time.Minute)
	if _, err := ledger.TryReserve(ctx, "tt-1", 3, time.Minute); err != nil {
		t.Fatalf("TryReserve() error = %v", err)
	}

	expired, err := ledger.Expired(ctx, clk.Now(), 0)
	if err != nil {
		t.Fatalf("Expired() error = %v", err)
	}
	if len(expired) != 1 || expired[0].Token != stale.Token {
		t.Fatalf("Expired() = %+v, want only the stale token", expired)
	}
}

// Concurrent reservations against one type must never exceed capacity,
// regardless of interleaving.
func TestMemoryLedger_ConcurrentNoOversell(t *testing.T) {
	const (
		capacity = 250
		workers  = 32
		attempts = 40
	)

	ctx := context.Background()
	ledger, _ := newTestLedger(t, capacity)

	var (
		mu       sync.Mutex
		reserved int
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < attempts; i++ {
				qty := 1 + rng.Intn(5)
				res, err := ledger.TryReserve(ctx, "tt-1", qty, time.Minute)
				if err != nil {
					continue
				}
				mu.Lock()
				reserved += qty
				mu.Unlock()
				// Randomly settle some holds to churn the counters.
				switch rng.Intn(3) {
				case 0:
					_ = ledger.Commit(ctx, res.Token)
				case 1:
					_ = ledger.Release(ctx, res.Token)
					mu.Lock()
					reserved -= qty
					mu.Unlock()
				}
			}
		}(int64(w))
	}
	wg.Wait()

	snap := snapshotOf(t, ledger, "tt-1")
	if snap.Reserved+snap.Sold > capacity {
		t.Fatalf("oversold: reserved %d + sold %d > capacity %d", snap.Reserved, snap.Sold, capacity)
	}
	if snap.Available+snap.Reserved+snap.Sold+snap.Refunded != capacity {
		t.Fatalf("counter invariant broken: %+v", snap)
	}
	if snap.Reserved+snap.Sold != reserved {
		t.Fatalf("ledger reserved+sold %d does not match successful reservations %d",
			snap.Reserved+snap.Sold, reserved)
	}
}
