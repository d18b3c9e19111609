package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/pkg/clock"
)

// SweeperConfig holds configuration for the reservation sweeper.
type SweeperConfig struct {
	ScanInterval time.Duration
	BatchSize    int
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		ScanInterval: 5 * time.Second,
		BatchSize:    100,
	}
}

// SweeperStats is a point-in-time view of the sweeper's counters.
type SweeperStats struct {
	IsRunning         bool      `json:"is_running"`
	TotalReleased     int64     `json:"total_released"`
	LastScanTime      time.Time `json:"last_scan_time"`
	LastReleasedCount int       `json:"last_released_count"`
}

// Sweeper releases reservations held past their deadline. It uses the
// ledger's normal Release path, so an auto-release carries exactly the
// same guarantees as an explicit abort.
type Sweeper struct {
	ledger inventory.Ledger
	clk    clock.Clock
	logger *zap.Logger
	config *SweeperConfig

	mu            sync.Mutex
	running       bool
	stop          chan struct{}
	done          chan struct{}
	totalReleased int64
	lastScan      time.Time
	lastReleased  int
}

// NewSweeper creates a reservation sweeper.
func NewSweeper(ledger inventory.Ledger, clk clock.Clock, logger *zap.Logger, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		ledger: ledger,
		clk:    clk,
		logger: logger,
		config: config,
	}
}

// Start launches the scan loop. It is a no-op when already running.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop halts the scan loop and waits for the in-flight scan to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan releases one batch of expired reservations and returns how many
// were released. Exported so deployments with an external scheduler can
// drive the sweep themselves.
func (s *Sweeper) Scan(ctx context.Context) int {
	now := s.clk.Now()
	expired, err := s.ledger.Expired(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.Warn("sweeper scan failed", zap.Error(err))
		return 0
	}

	released := 0
	for _, res := range expired {
		if err := s.ledger.Release(ctx, res.Token); err != nil {
			// A concurrent commit or abort may have settled the token
			// between the scan and the release.
			if err != inventory.ErrUnknownReservation {
				s.logger.Warn("failed to release expired reservation",
					zap.String("token", res.Token),
					zap.String("ticket_type_id", res.TicketTypeID),
					zap.Error(err))
			}
			continue
		}
		released++
		s.logger.Info("released expired reservation",
			zap.String("token", res.Token),
			zap.String("ticket_type_id", res.TicketTypeID),
			zap.Int("quantity", res.Quantity))
	}

	s.mu.Lock()
	s.totalReleased += int64(released)
	s.lastScan = now
	s.lastReleased = released
	s.mu.Unlock()
	return released
}

// Stats returns a snapshot of the sweeper's counters.
func (s *Sweeper) Stats() SweeperStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SweeperStats{
		IsRunning:         s.running,
		TotalReleased:     s.totalReleased,
		LastScanTime:      s.lastScan,
		LastReleasedCount: s.lastReleased,
	}
}
