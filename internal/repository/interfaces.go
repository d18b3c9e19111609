package repository

import (
	"context"
	"fmt"

	"github.com/stagepass/backoffice/internal/domain"
)

// OfferExhaustedError is returned by a sale commit when an offer's
// ticket limit cannot cover the requested consumption. The coordinator
// drops the offer and retries the commit.
type OfferExhaustedError struct {
	OfferID string
}

func (e *OfferExhaustedError) Error() string {
	return fmt.Sprintf("special offer %s exhausted", e.OfferID)
}

// CounterUpdate carries the ticket-type counter changes a sale commit
// must persist alongside the sale aggregate.
type CounterUpdate struct {
	TicketTypeID string
	SoldDelta    int
	Status       string
}

// TicketTypeRepository provides data access to ticket types.
type TicketTypeRepository interface {
	Create(ctx context.Context, tt *domain.TicketType) error
	GetByID(ctx context.Context, id string) (*domain.TicketType, error)
	List(ctx context.Context) ([]*domain.TicketType, error)
	// Retire soft-deletes a type; rows referenced by tickets are never
	// hard-deleted.
	Retire(ctx context.Context, id string) error
}

// TicketRepository provides data access to individual tickets.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	ListBySale(ctx context.Context, saleID string) ([]*domain.Ticket, error)
	UpdateStatus(ctx context.Context, ids []string, status string) error
}

// PricingRuleRepository provides data access to pricing rules.
type PricingRuleRepository interface {
	Create(ctx context.Context, rule *domain.PricingRule) error
	GetByID(ctx context.Context, id string) (*domain.PricingRule, error)
	List(ctx context.Context) ([]*domain.PricingRule, error)
	Update(ctx context.Context, rule *domain.PricingRule) error
}

// SpecialOfferRepository provides data access to special offers.
type SpecialOfferRepository interface {
	Create(ctx context.Context, offer *domain.SpecialOffer) error
	GetByID(ctx context.Context, id string) (*domain.SpecialOffer, error)
	GetByCode(ctx context.Context, code string) (*domain.SpecialOffer, error)
	List(ctx context.Context) ([]*domain.SpecialOffer, error)
}

// SaleRepository persists the sale aggregate.
type SaleRepository interface {
	// CreateSale persists the sale, its tickets, the ticket-type counter
	// updates and the offer consumptions in one transaction. It returns
	// *OfferExhaustedError when an offer's remaining limit cannot cover
	// its consumption; no partial state is left behind in that case.
	CreateSale(ctx context.Context, sale *domain.RecordedSale, tickets []*domain.Ticket, counters []CounterUpdate, consumptions map[string]int) error
	GetByID(ctx context.Context, id string) (*domain.RecordedSale, error)
	UpdateStatus(ctx context.Context, id, status string) error
}
