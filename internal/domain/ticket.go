package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ticket is one sellable/sold unit, individually addressable.
// FinalPrice is fixed at issue time and never recalculated afterward.
type Ticket struct {
	ID           string          `json:"id"`
	TicketTypeID string          `json:"ticket_type_id"`
	Code         string          `json:"code"`
	QRPayload    string          `json:"qr_payload"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	Status       string          `json:"status"`
	IssuedAt     time.Time       `json:"issued_at"`
	SaleID       *string         `json:"sale_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TicketStatus constants
const (
	TicketStatusAvailable = "available"
	TicketStatusReserved  = "reserved"
	TicketStatusSold      = "sold"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
	TicketStatusExpired   = "expired"
	TicketStatusRefunded  = "refunded"
)

// validTicketTransitions defines allowed ticket status transitions.
// Key is current status, value is the list of allowed next statuses.
var validTicketTransitions = map[string][]string{
	TicketStatusAvailable: {TicketStatusReserved},
	TicketStatusReserved:  {TicketStatusSold, TicketStatusCancelled, TicketStatusExpired},
	TicketStatusSold:      {TicketStatusUsed, TicketStatusRefunded},
	TicketStatusUsed:      {},
	TicketStatusCancelled: {},
	TicketStatusExpired:   {},
	TicketStatusRefunded:  {},
}

// CanTransitionTo reports whether the ticket may move to the target status.
func (t *Ticket) CanTransitionTo(target string) bool {
	for _, allowed := range validTicketTransitions[t.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the ticket to the target status or fails.
func (t *Ticket) TransitionTo(target string, now time.Time) error {
	if !t.CanTransitionTo(target) {
		return &InvalidInputError{
			Field:  "status",
			Reason: fmt.Sprintf("ticket %s cannot move from %s to %s", t.ID, t.Status, target),
		}
	}
	t.Status = target
	t.UpdatedAt = now
	return nil
}

// QRPayloadFor builds the scannable payload for a ticket code. The payload
// is opaque to the core; scanners resolve it through the ticket lookup.
func QRPayloadFor(code string) string {
	return "TKT:" + code
}
