package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/pkg/clock"
)

func TestDefaultSweeperConfig(t *testing.T) {
	config := DefaultSweeperConfig()

	if config.ScanInterval != 5*time.Second {
		t.Errorf("ScanInterval = %v, want %v", config.ScanInterval, 5*time.Second)
	}
	if config.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want %v", config.BatchSize, 100)
	}
}

func TestSweeper_ScanReleasesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := inventory.NewMemoryLedger(clk)
	if err := ledger.Register(ctx, "tt-1", 10, 0, 0); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := ledger.TryReserve(ctx, "tt-1", 4, time.Minute); err != nil {
		t.Fatalf("TryReserve() error = %v", err)
	}
	clk.Advance(5 * time.Minute)
	fresh, err := ledger.TryReserve(ctx, "tt-1", 3, time.Hour)
	if err != nil {
		t.Fatalf("TryReserve() error = %v", err)
	}

	sweeper := NewSweeper(ledger, clk, nil, nil)
	released := sweeper.Scan(ctx)
	if released != 1 {
		t.Fatalf("Scan() released %d reservations, want 1", released)
	}

	snap, err := ledger.Snapshot(ctx, "tt-1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Available != 7 || snap.Reserved != 3 {
		t.Fatalf("after sweep: %+v", snap)
	}

	// The fresh hold stays committable after the sweep.
	if err := ledger.Commit(ctx, fresh.Token); err != nil {
		t.Errorf("Commit() after sweep error = %v", err)
	}

	stats := sweeper.Stats()
	if stats.TotalReleased != 1 || stats.LastReleasedCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := inventory.NewMemoryLedger(clk)
	sweeper := NewSweeper(ledger, clk, nil, &SweeperConfig{
		ScanInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})

	if sweeper.Stats().IsRunning {
		t.Error("sweeper should not be running initially")
	}

	sweeper.Start(context.Background())
	if !sweeper.Stats().IsRunning {
		t.Error("sweeper should report running after Start")
	}
	sweeper.Start(context.Background()) // idempotent

	sweeper.Stop()
	if sweeper.Stats().IsRunning {
		t.Error("sweeper should not report running after Stop")
	}
	sweeper.Stop() // idempotent
}
