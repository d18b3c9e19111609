package domain

import (
	"errors"
	"fmt"
)

// InvalidInputError indicates a malformed pricing or quantity input.
// It is the caller's fault and is never retried automatically.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

// InvalidRuleError indicates a pricing rule whose configuration violates
// its own invariants. It is surfaced to staff, not to buyers.
type InvalidRuleError struct {
	RuleID string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("invalid pricing rule: %s", e.Reason)
	}
	return fmt.Sprintf("invalid pricing rule %s: %s", e.RuleID, e.Reason)
}

// InsufficientInventoryError indicates the requested quantity exceeds the
// available units of a ticket type. Safe to retry after inventory changes.
type InsufficientInventoryError struct {
	TicketTypeID string
	Requested    int
	Available    int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for ticket type %s: requested %d, available %d",
		e.TicketTypeID, e.Requested, e.Available)
}

// OfferRejectedError indicates an offer code that is invalid, expired,
// exhausted or not applicable to the requested ticket types.
type OfferRejectedError struct {
	Code   string
	Reason string
}

func (e *OfferRejectedError) Error() string {
	return fmt.Sprintf("offer %q rejected: %s", e.Code, e.Reason)
}

// Sale stages, used by SaleError to report where a sale failed.
const (
	StagePricing    = "pricing"
	StageReserving  = "reserving"
	StageDiscount   = "discount"
	StageCommitting = "committing"
)

// SaleError wraps any failure of the sale pipeline. Whenever it is
// returned the inventory is guaranteed to be in its pre-call state.
type SaleError struct {
	Stage string
	Err   error
}

func (e *SaleError) Error() string {
	return fmt.Sprintf("sale failed at %s: %v", e.Stage, e.Err)
}

func (e *SaleError) Unwrap() error { return e.Err }

// IsInsufficientInventory reports whether err carries an
// InsufficientInventoryError anywhere in its chain.
func IsInsufficientInventory(err error) bool {
	var target *InsufficientInventoryError
	return errors.As(err, &target)
}
