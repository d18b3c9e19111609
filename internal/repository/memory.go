package repository

import (
	"context"
	"sync"

	"github.com/stagepass/backoffice/internal/domain"
)

// In-memory repository implementations. They back the service tests and
// single-process deployments without a database; behavior mirrors the
// Postgres implementations, including the limit-guarded offer
// consumption and nil,nil on missing rows.

// MemoryTicketTypeRepository is an in-memory TicketTypeRepository.
type MemoryTicketTypeRepository struct {
	mu    sync.RWMutex
	types map[string]*domain.TicketType
}

// NewMemoryTicketTypeRepository creates an empty repository.
func NewMemoryTicketTypeRepository() *MemoryTicketTypeRepository {
	return &MemoryTicketTypeRepository{types: make(map[string]*domain.TicketType)}
}

func (r *MemoryTicketTypeRepository) Create(ctx context.Context, tt *domain.TicketType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tt
	r.types[tt.ID] = &cp
	return nil
}

func (r *MemoryTicketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tt, ok := r.types[id]
	if !ok || tt.DeletedAt != nil {
		return nil, nil
	}
	cp := *tt
	return &cp, nil
}

func (r *MemoryTicketTypeRepository) List(ctx context.Context) ([]*domain.TicketType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var types []*domain.TicketType
	for _, tt := range r.types {
		if tt.DeletedAt != nil {
			continue
		}
		cp := *tt
		types = append(types, &cp)
	}
	return types, nil
}

func (r *MemoryTicketTypeRepository) Retire(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tt, ok := r.types[id]; ok && tt.DeletedAt == nil {
		now := tt.UpdatedAt
		tt.DeletedAt = &now
	}
	return nil
}

// MemoryTicketRepository is an in-memory TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	byCode  map[string]string // code -> ticket id
}

// NewMemoryTicketRepository creates an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		byCode:  make(map[string]string),
	}
}

func (r *MemoryTicketRepository) put(t *domain.Ticket) {
	cp := *t
	r.tickets[t.ID] = &cp
	r.byCode[t.Code] = t.ID
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *r.tickets[id]
	return &cp, nil
}

func (r *MemoryTicketRepository) ListBySale(ctx context.Context, saleID string) ([]*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tickets []*domain.Ticket
	for _, t := range r.tickets {
		if t.SaleID != nil && *t.SaleID == saleID {
			cp := *t
			tickets = append(tickets, &cp)
		}
	}
	return tickets, nil
}

func (r *MemoryTicketRepository) UpdateStatus(ctx context.Context, ids []string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if t, ok := r.tickets[id]; ok {
			t.Status = status
		}
	}
	return nil
}

// MemoryPricingRuleRepository is an in-memory PricingRuleRepository.
type MemoryPricingRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*domain.PricingRule
}

// NewMemoryPricingRuleRepository creates an empty repository.
func NewMemoryPricingRuleRepository() *MemoryPricingRuleRepository {
	return &MemoryPricingRuleRepository{rules: make(map[string]*domain.PricingRule)}
}

func (r *MemoryPricingRuleRepository) Create(ctx context.Context, rule *domain.PricingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rule
	r.rules[rule.ID] = &cp
	return nil
}

func (r *MemoryPricingRuleRepository) GetByID(ctx context.Context, id string) (*domain.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok || rule.DeletedAt != nil {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (r *MemoryPricingRuleRepository) List(ctx context.Context) ([]*domain.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rules []*domain.PricingRule
	for _, rule := range r.rules {
		if rule.DeletedAt != nil {
			continue
		}
		cp := *rule
		rules = append(rules, &cp)
	}
	return rules, nil
}

func (r *MemoryPricingRuleRepository) Update(ctx context.Context, rule *domain.PricingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return nil
	}
	cp := *rule
	r.rules[rule.ID] = &cp
	return nil
}

// MemorySpecialOfferRepository is an in-memory SpecialOfferRepository.
type MemorySpecialOfferRepository struct {
	mu     sync.RWMutex
	offers map[string]*domain.SpecialOffer
	byCode map[string]string
}

// NewMemorySpecialOfferRepository creates an empty repository.
func NewMemorySpecialOfferRepository() *MemorySpecialOfferRepository {
	return &MemorySpecialOfferRepository{
		offers: make(map[string]*domain.SpecialOffer),
		byCode: make(map[string]string),
	}
}

func (r *MemorySpecialOfferRepository) Create(ctx context.Context, offer *domain.SpecialOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *offer
	r.offers[offer.ID] = &cp
	r.byCode[offer.Code] = offer.ID
	return nil
}

func (r *MemorySpecialOfferRepository) GetByID(ctx context.Context, id string) (*domain.SpecialOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	offer, ok := r.offers[id]
	if !ok || offer.DeletedAt != nil {
		return nil, nil
	}
	cp := *offer
	return &cp, nil
}

func (r *MemorySpecialOfferRepository) GetByCode(ctx context.Context, code string) (*domain.SpecialOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	offer := r.offers[id]
	if offer.DeletedAt != nil {
		return nil, nil
	}
	cp := *offer
	return &cp, nil
}

func (r *MemorySpecialOfferRepository) List(ctx context.Context) ([]*domain.SpecialOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var offers []*domain.SpecialOffer
	for _, offer := range r.offers {
		if offer.DeletedAt != nil {
			continue
		}
		cp := *offer
		offers = append(offers, &cp)
	}
	return offers, nil
}

// consume applies a limit-guarded consumption; used by MemorySaleRepository.
func (r *MemorySpecialOfferRepository) consume(offerID string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok || offer.ConsumedCount+count > offer.TicketLimit {
		return &OfferExhaustedError{OfferID: offerID}
	}
	offer.ConsumedCount += count
	return nil
}

func (r *MemorySpecialOfferRepository) unconsume(offerID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offer, ok := r.offers[offerID]; ok {
		offer.ConsumedCount -= count
	}
}

// MemorySaleRepository is an in-memory SaleRepository.
// CreateErr, when set, makes CreateSale fail after no side effects;
// tests use it to verify the coordinator's rollback guarantees.
type MemorySaleRepository struct {
	mu        sync.RWMutex
	sales     map[string]*domain.RecordedSale
	tickets   *MemoryTicketRepository
	types     *MemoryTicketTypeRepository
	offers    *MemorySpecialOfferRepository
	CreateErr error
}

// NewMemorySaleRepository creates a sale repository writing through to
// the given ticket, ticket-type and offer repositories, mirroring the
// Postgres transaction.
func NewMemorySaleRepository(tickets *MemoryTicketRepository, types *MemoryTicketTypeRepository, offers *MemorySpecialOfferRepository) *MemorySaleRepository {
	return &MemorySaleRepository{
		sales:   make(map[string]*domain.RecordedSale),
		tickets: tickets,
		types:   types,
		offers:  offers,
	}
}

func (r *MemorySaleRepository) CreateSale(ctx context.Context, sale *domain.RecordedSale, tickets []*domain.Ticket, counters []CounterUpdate, consumptions map[string]int) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}

	// Consume offers first so an exhausted offer aborts before any
	// writes, matching the all-or-nothing Postgres transaction.
	consumed := make([]string, 0, len(consumptions))
	for offerID, count := range consumptions {
		if err := r.offers.consume(offerID, count); err != nil {
			for _, id := range consumed {
				r.offers.unconsume(id, consumptions[id])
			}
			return err
		}
		consumed = append(consumed, offerID)
	}

	r.mu.Lock()
	cp := *sale
	r.sales[sale.ID] = &cp
	r.mu.Unlock()

	r.tickets.mu.Lock()
	for _, t := range tickets {
		r.tickets.put(t)
	}
	r.tickets.mu.Unlock()

	r.types.mu.Lock()
	for _, cu := range counters {
		if tt, ok := r.types.types[cu.TicketTypeID]; ok {
			tt.SoldCount += cu.SoldDelta
			tt.Status = cu.Status
		}
	}
	r.types.mu.Unlock()

	return nil
}

func (r *MemorySaleRepository) GetByID(ctx context.Context, id string) (*domain.RecordedSale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sale, ok := r.sales[id]
	if !ok {
		return nil, nil
	}
	cp := *sale
	return &cp, nil
}

func (r *MemorySaleRepository) UpdateStatus(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sale, ok := r.sales[id]; ok {
		sale.TransactionStatus = status
	}
	return nil
}
