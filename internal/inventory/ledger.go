// Package inventory tracks per-ticket-type unit counters. The ledger is
// the only mutable shared state of the sale pipeline: counters move
// between available, reserved, sold and refunded exclusively through
// TryReserve, Commit, Release and Refund, and every implementation must
// keep those operations linearizable per ticket type.
package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownTicketType is returned when the ledger has no counters
	// registered for the requested ticket type.
	ErrUnknownTicketType = errors.New("ticket type not registered in ledger")
	// ErrUnknownReservation is returned for a token the ledger does not
	// hold, including tokens already committed or released.
	ErrUnknownReservation = errors.New("reservation not found")
)

// Snapshot is a read-only view of one ticket type's counters.
// available + reserved + sold + refunded = capacity at all times.
type Snapshot struct {
	TicketTypeID string `json:"ticket_type_id"`
	Capacity     int    `json:"capacity"`
	Available    int    `json:"available"`
	Reserved     int    `json:"reserved"`
	Sold         int    `json:"sold"`
	Refunded     int    `json:"refunded"`
}

// OccupancyRate returns (reserved + sold + refunded) / capacity in [0,1].
// Refunded units stay occupied: they are permanently retired and never
// return to the sellable pool.
func (s Snapshot) OccupancyRate() float64 {
	if s.Capacity <= 0 {
		return 1
	}
	return float64(s.Reserved+s.Sold+s.Refunded) / float64(s.Capacity)
}

// Reservation is an opaque handle for a provisional, uncommitted hold.
type Reservation struct {
	Token        string    `json:"token"`
	TicketTypeID string    `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Ledger tracks inventory counters per ticket type.
//
// TryReserve either moves the full quantity from available to reserved
// or fails with *domain.InsufficientInventoryError; there are no partial
// reservations. Commit and Release consume the token. Reservations not
// committed before ExpiresAt are released by the sweeper through the
// same Release path.
type Ledger interface {
	// Register installs counters for a ticket type. Existing counters
	// are overwritten; capacity is invariant afterwards.
	Register(ctx context.Context, ticketTypeID string, capacity, sold, reserved int) error

	// TryReserve atomically moves quantity units from available to
	// reserved and returns a token for the hold.
	TryReserve(ctx context.Context, ticketTypeID string, quantity int, ttl time.Duration) (*Reservation, error)

	// Commit moves the token's reserved units to sold.
	Commit(ctx context.Context, token string) error

	// Release moves the token's reserved units back to available.
	Release(ctx context.Context, token string) error

	// Refund retires quantity sold units. Refunded units are not
	// re-sellable and keep occupying capacity.
	Refund(ctx context.Context, ticketTypeID string, quantity int) error

	// Snapshot returns the current counters for a ticket type.
	Snapshot(ctx context.Context, ticketTypeID string) (Snapshot, error)

	// Expired lists reservations whose ExpiresAt is not after now, up to
	// limit entries. Used by the sweeper.
	Expired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}
