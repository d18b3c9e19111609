package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/pkg/clock"
)

var (
	ErrPricingRuleNotFound  = errors.New("pricing rule not found")
	ErrSpecialOfferNotFound = errors.New("special offer not found")
	ErrDuplicateOfferCode   = errors.New("offer code already exists")
)

// CatalogService manages the sellable catalog: ticket types, pricing
// rules and special offers.
type CatalogService interface {
	CreateTicketType(ctx context.Context, tt *domain.TicketType) (*domain.TicketType, error)
	GetTicketType(ctx context.Context, id string) (*domain.TicketType, error)
	ListTicketTypes(ctx context.Context) ([]*domain.TicketType, error)
	RetireTicketType(ctx context.Context, id string) error

	CreatePricingRule(ctx context.Context, rule *domain.PricingRule) (*domain.PricingRule, error)
	GetPricingRule(ctx context.Context, id string) (*domain.PricingRule, error)
	ListPricingRules(ctx context.Context) ([]*domain.PricingRule, error)
	UpdatePricingRule(ctx context.Context, rule *domain.PricingRule) (*domain.PricingRule, error)

	CreateSpecialOffer(ctx context.Context, offer *domain.SpecialOffer) (*domain.SpecialOffer, error)
	GetSpecialOffer(ctx context.Context, id string) (*domain.SpecialOffer, error)
	ListSpecialOffers(ctx context.Context) ([]*domain.SpecialOffer, error)

	// BootstrapLedger installs counters for every known ticket type.
	// Called once at startup so the ledger is authoritative from the
	// first request.
	BootstrapLedger(ctx context.Context) error
}

type catalogService struct {
	ticketTypes repository.TicketTypeRepository
	rules       repository.PricingRuleRepository
	offers      repository.SpecialOfferRepository
	ledger      inventory.Ledger
	clk         clock.Clock
	logger      *zap.Logger
}

func NewCatalogService(
	ticketTypes repository.TicketTypeRepository,
	rules repository.PricingRuleRepository,
	offers repository.SpecialOfferRepository,
	ledger inventory.Ledger,
	clk clock.Clock,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		ticketTypes: ticketTypes,
		rules:       rules,
		offers:      offers,
		ledger:      ledger,
		clk:         clk,
		logger:      logger,
	}
}

func (s *catalogService) CreateTicketType(ctx context.Context, tt *domain.TicketType) (*domain.TicketType, error) {
	now := s.clk.Now()
	if tt.ID == "" {
		tt.ID = uuid.New().String()
	}
	if tt.Status == "" {
		tt.Status = domain.TicketTypeStatusActive
	}
	tt.CreatedAt = now
	tt.UpdatedAt = now

	if err := tt.Validate(); err != nil {
		return nil, err
	}
	if tt.PricingRuleID != nil {
		rule, err := s.rules.GetByID(ctx, *tt.PricingRuleID)
		if err != nil {
			return nil, err
		}
		if rule == nil {
			return nil, fmt.Errorf("%w: %s", ErrPricingRuleNotFound, *tt.PricingRuleID)
		}
	}

	if err := s.ticketTypes.Create(ctx, tt); err != nil {
		return nil, err
	}
	if err := s.ledger.Register(ctx, tt.ID, tt.Capacity, tt.SoldCount, 0); err != nil {
		return nil, err
	}
	s.logger.Info("ticket type created",
		zap.String("ticket_type_id", tt.ID),
		zap.String("name", tt.Name),
		zap.Int("capacity", tt.Capacity))
	return tt, nil
}

func (s *catalogService) GetTicketType(ctx context.Context, id string) (*domain.TicketType, error) {
	tt, err := s.ticketTypes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tt == nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketTypeNotFound, id)
	}
	return tt, nil
}

func (s *catalogService) ListTicketTypes(ctx context.Context) ([]*domain.TicketType, error) {
	return s.ticketTypes.List(ctx)
}

func (s *catalogService) RetireTicketType(ctx context.Context, id string) error {
	tt, err := s.ticketTypes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tt == nil {
		return fmt.Errorf("%w: %s", ErrTicketTypeNotFound, id)
	}
	return s.ticketTypes.Retire(ctx, id)
}

func (s *catalogService) CreatePricingRule(ctx context.Context, rule *domain.PricingRule) (*domain.PricingRule, error) {
	now := s.clk.Now()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("pricing rule created",
		zap.String("rule_id", rule.ID),
		zap.String("name", rule.Name))
	return rule, nil
}

func (s *catalogService) GetPricingRule(ctx context.Context, id string) (*domain.PricingRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: %s", ErrPricingRuleNotFound, id)
	}
	return rule, nil
}

func (s *catalogService) ListPricingRules(ctx context.Context) ([]*domain.PricingRule, error) {
	return s.rules.List(ctx)
}

// UpdatePricingRule replaces a rule's policy. In-flight sales keep the
// rule they loaded; the update applies to later transactions only.
func (s *catalogService) UpdatePricingRule(ctx context.Context, rule *domain.PricingRule) (*domain.PricingRule, error) {
	existing, err := s.rules.GetByID(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrPricingRuleNotFound, rule.ID)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = s.clk.Now()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *catalogService) CreateSpecialOffer(ctx context.Context, offer *domain.SpecialOffer) (*domain.SpecialOffer, error) {
	now := s.clk.Now()
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	offer.CreatedAt = now
	offer.UpdatedAt = now

	if err := offer.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.offers.GetByCode(ctx, offer.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateOfferCode, offer.Code)
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, err
	}
	s.logger.Info("special offer created",
		zap.String("offer_id", offer.ID),
		zap.String("code", offer.Code),
		zap.Int("ticket_limit", offer.TicketLimit))
	return offer, nil
}

func (s *catalogService) GetSpecialOffer(ctx context.Context, id string) (*domain.SpecialOffer, error) {
	offer, err := s.offers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, fmt.Errorf("%w: %s", ErrSpecialOfferNotFound, id)
	}
	return offer, nil
}

func (s *catalogService) ListSpecialOffers(ctx context.Context) ([]*domain.SpecialOffer, error) {
	return s.offers.List(ctx)
}

func (s *catalogService) BootstrapLedger(ctx context.Context) error {
	types, err := s.ticketTypes.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ticket types: %w", err)
	}
	for _, tt := range types {
		if err := s.ledger.Register(ctx, tt.ID, tt.Capacity, tt.SoldCount, 0); err != nil {
			return fmt.Errorf("failed to register %s: %w", tt.ID, err)
		}
	}
	s.logger.Info("inventory ledger bootstrapped", zap.Int("ticket_types", len(types)))
	return nil
}
