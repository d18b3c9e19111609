package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketType represents a sellable category within a venue zone for one event.
type TicketType struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	ZoneID        string          `json:"zone_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Capacity      int             `json:"capacity"`
	SoldCount     int             `json:"sold_count"`
	ReservedCount int             `json:"reserved_count"`
	Status        string          `json:"status"` // active, inactive, sold_out, coming_soon, suspended
	PricingRuleID *string         `json:"pricing_rule_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// TicketTypeStatus constants
const (
	TicketTypeStatusActive     = "active"
	TicketTypeStatusInactive   = "inactive"
	TicketTypeStatusSoldOut    = "sold_out"
	TicketTypeStatusComingSoon = "coming_soon"
	TicketTypeStatusSuspended  = "suspended"
)

// AvailableQuantity returns the number of units still available.
func (t *TicketType) AvailableQuantity() int {
	return t.Capacity - t.SoldCount - t.ReservedCount
}

// OccupancyRate returns (reserved + sold) / capacity in [0,1].
// A zero-capacity type is reported as fully occupied.
func (t *TicketType) OccupancyRate() float64 {
	if t.Capacity <= 0 {
		return 1
	}
	return float64(t.SoldCount+t.ReservedCount) / float64(t.Capacity)
}

// IsSellable reports whether units of this type may currently be sold.
// SoldOut is included: the ledger is authoritative for availability and
// the status may lag behind a release.
func (t *TicketType) IsSellable() bool {
	switch t.Status {
	case TicketTypeStatusActive, TicketTypeStatusSoldOut:
		return t.DeletedAt == nil
	default:
		return false
	}
}

// DerivedStatus returns the status the type should carry for the given
// counter state: SoldOut when every unit is reserved or sold, otherwise
// the current status (SoldOut reverts to Active when units free up).
func (t *TicketType) DerivedStatus(sold, reserved int) string {
	if t.Status != TicketTypeStatusActive && t.Status != TicketTypeStatusSoldOut {
		return t.Status
	}
	if sold+reserved >= t.Capacity {
		return TicketTypeStatusSoldOut
	}
	return TicketTypeStatusActive
}

// IsValidTicketTypeStatus reports whether s is a known status value.
func IsValidTicketTypeStatus(s string) bool {
	switch s {
	case TicketTypeStatusActive, TicketTypeStatusInactive, TicketTypeStatusSoldOut,
		TicketTypeStatusComingSoon, TicketTypeStatusSuspended:
		return true
	}
	return false
}

// Validate checks the counter invariant sold + reserved <= capacity.
func (t *TicketType) Validate() error {
	if t.Capacity < 0 {
		return &InvalidInputError{Field: "capacity", Reason: "must be non-negative"}
	}
	if t.SoldCount < 0 || t.ReservedCount < 0 {
		return &InvalidInputError{Field: "counters", Reason: "must be non-negative"}
	}
	if t.SoldCount+t.ReservedCount > t.Capacity {
		return &InvalidInputError{Field: "counters", Reason: "sold + reserved exceeds capacity"}
	}
	if !t.BasePrice.IsPositive() {
		return &InvalidInputError{Field: "base_price", Reason: "must be positive"}
	}
	return nil
}
