package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/pkg/clock"
)

// typeCounters holds one ticket type's counter state. Each instance has
// its own lock so reservations against different types never contend.
type typeCounters struct {
	mu        sync.Mutex
	capacity  int
	available int
	reserved  int
	sold      int
	refunded  int
}

// MemoryLedger is the in-process Ledger implementation. Counter updates
// are serialized per ticket type by the type's own mutex; the outer maps
// are guarded separately and never held across a counter update.
type MemoryLedger struct {
	clk clock.Clock

	typesMu sync.RWMutex
	types   map[string]*typeCounters

	resMu        sync.RWMutex
	reservations map[string]*Reservation
}

// NewMemoryLedger creates an empty in-process ledger.
func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryLedger{
		clk:          clk,
		types:        make(map[string]*typeCounters),
		reservations: make(map[string]*Reservation),
	}
}

// Register installs counters for a ticket type.
func (l *MemoryLedger) Register(ctx context.Context, ticketTypeID string, capacity, sold, reserved int) error {
	if capacity < 0 || sold < 0 || reserved < 0 || sold+reserved > capacity {
		return &domain.InvalidInputError{Field: "counters", Reason: "sold + reserved exceeds capacity"}
	}
	l.typesMu.Lock()
	defer l.typesMu.Unlock()
	l.types[ticketTypeID] = &typeCounters{
		capacity:  capacity,
		available: capacity - sold - reserved,
		reserved:  reserved,
		sold:      sold,
	}
	return nil
}

func (l *MemoryLedger) counters(ticketTypeID string) (*typeCounters, error) {
	l.typesMu.RLock()
	defer l.typesMu.RUnlock()
	tc, ok := l.types[ticketTypeID]
	if !ok {
		return nil, ErrUnknownTicketType
	}
	return tc, nil
}

// TryReserve atomically moves quantity units from available to reserved.
func (l *MemoryLedger) TryReserve(ctx context.Context, ticketTypeID string, quantity int, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, &domain.InvalidInputError{Field: "quantity", Reason: "must be positive"}
	}
	tc, err := l.counters(ticketTypeID)
	if err != nil {
		return nil, err
	}

	tc.mu.Lock()
	if tc.available < quantity {
		available := tc.available
		tc.mu.Unlock()
		return nil, &domain.InsufficientInventoryError{
			TicketTypeID: ticketTypeID,
			Requested:    quantity,
			Available:    available,
		}
	}
	tc.available -= quantity
	tc.reserved += quantity
	tc.mu.Unlock()

	now := l.clk.Now()
	res := &Reservation{
		Token:        uuid.New().String(),
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	l.resMu.Lock()
	l.reservations[res.Token] = res
	l.resMu.Unlock()
	return res, nil
}

func (l *MemoryLedger) takeReservation(token string) (*Reservation, error) {
	l.resMu.Lock()
	defer l.resMu.Unlock()
	res, ok := l.reservations[token]
	if !ok {
		return nil, ErrUnknownReservation
	}
	delete(l.reservations, token)
	return res, nil
}

// Commit moves the token's reserved units to sold.
func (l *MemoryLedger) Commit(ctx context.Context, token string) error {
	res, err := l.takeReservation(token)
	if err != nil {
		return err
	}
	tc, err := l.counters(res.TicketTypeID)
	if err != nil {
		return err
	}
	tc.mu.Lock()
	tc.reserved -= res.Quantity
	tc.sold += res.Quantity
	tc.mu.Unlock()
	return nil
}

// Release moves the token's reserved units back to available.
func (l *MemoryLedger) Release(ctx context.Context, token string) error {
	res, err := l.takeReservation(token)
	if err != nil {
		return err
	}
	tc, err := l.counters(res.TicketTypeID)
	if err != nil {
		return err
	}
	tc.mu.Lock()
	tc.reserved -= res.Quantity
	tc.available += res.Quantity
	tc.mu.Unlock()
	return nil
}

// Refund permanently retires sold units.
func (l *MemoryLedger) Refund(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return &domain.InvalidInputError{Field: "quantity", Reason: "must be positive"}
	}
	tc, err := l.counters(ticketTypeID)
	if err != nil {
		return err
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.sold < quantity {
		return &domain.InvalidInputError{Field: "quantity", Reason: "exceeds sold units"}
	}
	tc.sold -= quantity
	tc.refunded += quantity
	return nil
}

// Snapshot returns the current counters for a ticket type.
func (l *MemoryLedger) Snapshot(ctx context.Context, ticketTypeID string) (Snapshot, error) {
	tc, err := l.counters(ticketTypeID)
	if err != nil {
		return Snapshot{}, err
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return Snapshot{
		TicketTypeID: ticketTypeID,
		Capacity:     tc.capacity,
		Available:    tc.available,
		Reserved:     tc.reserved,
		Sold:         tc.sold,
		Refunded:     tc.refunded,
	}, nil
}

// Expired lists reservations at or past their deadline.
func (l *MemoryLedger) Expired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error) {
	l.resMu.RLock()
	defer l.resMu.RUnlock()
	var expired []*Reservation
	for _, res := range l.reservations {
		if !res.ExpiresAt.After(now) {
			expired = append(expired, res)
			if limit > 0 && len(expired) >= limit {
				break
			}
		}
	}
	return expired, nil
}
