package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/inventory"
)

// Service errors
var (
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrSaleNotFound       = errors.New("sale not found")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSaleNotRefundable  = errors.New("sale cannot be refunded in its current status")
)

// LineItem is one requested ticket type and quantity.
type LineItem struct {
	TicketTypeID string
	Quantity     int
}

// RecordSaleInput is the coordinator's request.
type RecordSaleInput struct {
	UserID        string
	Items         []LineItem
	OfferCodes    []string
	PaymentMethod string
	// EarlyBird is supplied by the caller, derived from the purchase
	// date relative to the event's sale windows.
	EarlyBird bool
}

// RejectedOffer reports an offer code the sale proceeded without.
type RejectedOffer struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// SaleResult is the coordinator's successful outcome.
type SaleResult struct {
	Sale           *domain.RecordedSale
	Tickets        []*domain.Ticket
	RejectedOffers []RejectedOffer
}

// QuoteResult is a read-only pricing preview; nothing is reserved.
type QuoteResult struct {
	TicketTypeID string            `json:"ticket_type_id"`
	Quantity     int               `json:"quantity"`
	UnitPrices   []decimal.Decimal `json:"unit_prices"`
	Total        decimal.Decimal   `json:"total"`
}

// SaleService is the mutating entry point of the ticketing core plus its
// read-only previews.
type SaleService interface {
	RecordSale(ctx context.Context, in *RecordSaleInput) (*SaleResult, error)
	Quote(ctx context.Context, ticketTypeID string, quantity int, earlyBird bool) (*QuoteResult, error)
	InventorySnapshot(ctx context.Context, ticketTypeID string) (inventory.Snapshot, error)
	GetSale(ctx context.Context, id string) (*domain.RecordedSale, error)
	GetTicketByCode(ctx context.Context, code string) (*domain.Ticket, error)
	RefundSale(ctx context.Context, id string) (*domain.RecordedSale, error)
}

// ValidatedOffer is an accepted offer together with the maximum number
// of tickets in the current request it may discount.
type ValidatedOffer struct {
	Offer      *domain.SpecialOffer
	MaxTickets int
}

// OfferValidator filters requested offer codes against validity window,
// applicability and remaining ticket limit. Validation has no side
// effects; consumption is finalized only at commit.
type OfferValidator interface {
	Applicable(ctx context.Context, codes []string, ticketTypeIDs []string, requested int) ([]ValidatedOffer, []RejectedOffer, error)
}
