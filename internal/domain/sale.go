package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus constants
const (
	SaleStatusPending           = "pending"
	SaleStatusProcessing        = "processing"
	SaleStatusCompleted         = "completed"
	SaleStatusFailed            = "failed"
	SaleStatusCancelled         = "cancelled"
	SaleStatusRefunded          = "refunded"
	SaleStatusPartiallyRefunded = "partially_refunded"
)

// ErrInvalidSaleTransition is returned when a sale status transition is
// not allowed.
var ErrInvalidSaleTransition = errors.New("invalid sale status transition")

// validSaleTransitions defines allowed transaction status transitions.
// Key is current status, value is the list of allowed next statuses.
var validSaleTransitions = map[string][]string{
	SaleStatusPending:           {SaleStatusProcessing, SaleStatusCompleted, SaleStatusFailed, SaleStatusCancelled},
	SaleStatusProcessing:        {SaleStatusCompleted, SaleStatusFailed, SaleStatusCancelled},
	SaleStatusCompleted:         {SaleStatusRefunded, SaleStatusPartiallyRefunded},
	SaleStatusPartiallyRefunded: {SaleStatusRefunded},
	SaleStatusFailed:            {},
	SaleStatusCancelled:         {},
	SaleStatusRefunded:          {},
}

// RecordedSale is an immutable record of a completed purchase
// transaction. Tickets are referenced by id, never owned: deleting a
// sale must reverse ticket statuses instead of deleting rows, and once
// the sale is completed its ticket set is frozen.
type RecordedSale struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	PaymentMethod     string          `json:"payment_method"`
	SaleDate          time.Time       `json:"sale_date"`
	TransactionStatus string          `json:"transaction_status"`
	TicketIDs         []string        `json:"ticket_ids"`
	OfferIDs          []string        `json:"offer_ids"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the status permits no further transitions.
func (s *RecordedSale) IsTerminal() bool {
	return len(validSaleTransitions[s.TransactionStatus]) == 0
}

// CanTransitionTo reports whether the sale may move to the target status.
func (s *RecordedSale) CanTransitionTo(target string) bool {
	for _, allowed := range validSaleTransitions[s.TransactionStatus] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the sale to the target status or fails.
func (s *RecordedSale) TransitionTo(target string, now time.Time) error {
	if !s.CanTransitionTo(target) {
		return ErrInvalidSaleTransition
	}
	s.TransactionStatus = target
	s.UpdatedAt = now
	return nil
}
