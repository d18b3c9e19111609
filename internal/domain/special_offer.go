package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferType constants
const (
	OfferTypePercentage = "percentage"
	OfferTypeFixed      = "fixed"
)

// SpecialOffer is a discount policy with a validity window and a
// cumulative consumption cap. Expired or exhausted offers become inert
// but are never hard-deleted while referenced by past sales.
type SpecialOffer struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	OfferType     string          `json:"offer_type"` // percentage, fixed
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	// TicketLimit is the maximum number of tickets the offer may
	// discount, cumulative across all sales.
	TicketLimit   int        `json:"ticket_limit"`
	ConsumedCount int        `json:"consumed_count"`
	TicketTypeIDs []string   `json:"ticket_type_ids"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// IsActiveAt reports whether the offer's validity window contains now.
func (o *SpecialOffer) IsActiveAt(now time.Time) bool {
	return !now.Before(o.StartDate) && !now.After(o.EndDate)
}

// RemainingLimit returns how many more tickets the offer may discount.
func (o *SpecialOffer) RemainingLimit() int {
	remaining := o.TicketLimit - o.ConsumedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AppliesTo reports whether the offer covers at least one of the given
// ticket types. An offer with an empty type set applies to all types.
func (o *SpecialOffer) AppliesTo(ticketTypeIDs []string) bool {
	if len(o.TicketTypeIDs) == 0 {
		return true
	}
	for _, id := range ticketTypeIDs {
		for _, own := range o.TicketTypeIDs {
			if id == own {
				return true
			}
		}
	}
	return false
}

// Validate checks the offer's own invariants.
func (o *SpecialOffer) Validate() error {
	if o.OfferType != OfferTypePercentage && o.OfferType != OfferTypeFixed {
		return &InvalidInputError{Field: "offer_type", Reason: "must be percentage or fixed"}
	}
	if o.DiscountValue.IsNegative() {
		return &InvalidInputError{Field: "discount_value", Reason: "must be non-negative"}
	}
	if o.OfferType == OfferTypePercentage && o.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return &InvalidInputError{Field: "discount_value", Reason: "percentage must be in [0,100]"}
	}
	if o.EndDate.Before(o.StartDate) {
		return &InvalidInputError{Field: "end_date", Reason: "must not precede start_date"}
	}
	if o.TicketLimit < 0 {
		return &InvalidInputError{Field: "ticket_limit", Reason: "must be non-negative"}
	}
	return nil
}
