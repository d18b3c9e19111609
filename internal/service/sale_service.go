package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/pkg/clock"

	"github.com/stagepass/backoffice/internal/events"
)

var saleTracer = otel.Tracer("backoffice/sale")

// SaleServiceConfig tunes the coordinator.
type SaleServiceConfig struct {
	// ReservationTTL bounds how long a hold survives before the sweeper
	// returns it to the available pool.
	ReservationTTL time.Duration
	// MaxTicketsPerSale caps a single request across all line items.
	MaxTicketsPerSale int
}

func DefaultSaleServiceConfig() SaleServiceConfig {
	return SaleServiceConfig{
		ReservationTTL:    2 * time.Minute,
		MaxTicketsPerSale: 20,
	}
}

type saleService struct {
	ledger      inventory.Ledger
	ticketTypes repository.TicketTypeRepository
	tickets     repository.TicketRepository
	rules       repository.PricingRuleRepository
	sales       repository.SaleRepository
	validator   OfferValidator
	publisher   events.Publisher
	clk         clock.Clock
	logger      *zap.Logger
	cfg         SaleServiceConfig
}

func NewSaleService(
	ledger inventory.Ledger,
	ticketTypes repository.TicketTypeRepository,
	tickets repository.TicketRepository,
	rules repository.PricingRuleRepository,
	sales repository.SaleRepository,
	validator OfferValidator,
	publisher events.Publisher,
	clk clock.Clock,
	logger *zap.Logger,
	cfg SaleServiceConfig,
) SaleService {
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = DefaultSaleServiceConfig().ReservationTTL
	}
	if cfg.MaxTicketsPerSale <= 0 {
		cfg.MaxTicketsPerSale = DefaultSaleServiceConfig().MaxTicketsPerSale
	}
	return &saleService{
		ledger:      ledger,
		ticketTypes: ticketTypes,
		tickets:     tickets,
		rules:       rules,
		sales:       sales,
		validator:   validator,
		publisher:   publisher,
		clk:         clk,
		logger:      logger,
		cfg:         cfg,
	}
}

// saleLine is a resolved line item with its pricing rule.
type saleLine struct {
	ticketType *domain.TicketType
	rule       *domain.PricingRule
	quantity   int
}

// saleUnit is one priced, reserved ticket slot.
type saleUnit struct {
	ticketTypeID string
	price        decimal.Decimal
	reservation  *inventory.Reservation
}

// RecordSale runs the full sale flow: price each unit against live
// occupancy, reserve it, validate offers, apply discounts and persist
// the whole sale atomically. Any failure releases every hold taken for
// this request and nothing is recorded.
func (s *saleService) RecordSale(ctx context.Context, in *RecordSaleInput) (*SaleResult, error) {
	ctx, span := saleTracer.Start(ctx, "sale.record",
		trace.WithAttributes(attribute.String("user_id", in.UserID)))
	defer span.End()

	if err := s.validateInput(in); err != nil {
		return nil, &domain.SaleError{Stage: domain.StagePricing, Err: err}
	}

	now := s.clk.Now()
	lines, err := s.resolveLines(ctx, in.Items)
	if err != nil {
		return nil, &domain.SaleError{Stage: domain.StagePricing, Err: err}
	}

	units, err := s.priceAndReserve(ctx, lines, in.EarlyBird)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, u := range units {
		subtotal = subtotal.Add(u.price)
	}

	typeIDs := make([]string, 0, len(lines))
	for _, l := range lines {
		typeIDs = append(typeIDs, l.ticketType.ID)
	}
	accepted, rejected, err := s.validator.Applicable(ctx, in.OfferCodes, typeIDs, len(units))
	if err != nil {
		s.releaseAll(ctx, units)
		return nil, &domain.SaleError{Stage: domain.StageDiscount, Err: err}
	}

	sale := &domain.RecordedSale{
		ID:                uuid.New().String(),
		UserID:            in.UserID,
		Subtotal:          subtotal,
		PaymentMethod:     in.PaymentMethod,
		SaleDate:          now,
		TransactionStatus: domain.SaleStatusCompleted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	tickets := s.buildTickets(sale, units, now)
	sale.TicketIDs = make([]string, len(tickets))
	for i, t := range tickets {
		sale.TicketIDs[i] = t.ID
	}
	counters := s.counterUpdates(ctx, lines)

	// Commit loop: an offer whose limit was consumed by a concurrent
	// sale between validation and commit is dropped, the total is
	// recomputed and the commit retried without it.
	for {
		sale.TotalAmount = s.applyDiscounts(subtotal, units, accepted)
		sale.OfferIDs = make([]string, len(accepted))
		consumptions := make(map[string]int, len(accepted))
		for i, vo := range accepted {
			sale.OfferIDs[i] = vo.Offer.ID
			consumptions[vo.Offer.ID] = vo.MaxTickets
		}

		err = s.sales.CreateSale(ctx, sale, tickets, counters, consumptions)
		if err == nil {
			break
		}
		var exhausted *repository.OfferExhaustedError
		if errors.As(err, &exhausted) {
			var dropped string
			accepted, dropped = dropOffer(accepted, exhausted.OfferID)
			rejected = append(rejected, RejectedOffer{Code: dropped, Reason: offerReasonExhausted})
			s.logger.Warn("offer exhausted at commit, retrying without it",
				zap.String("offer_id", exhausted.OfferID),
				zap.String("sale_id", sale.ID))
			continue
		}
		s.releaseAll(ctx, units)
		return nil, &domain.SaleError{Stage: domain.StageCommitting, Err: err}
	}

	// The sale is durable; turn the holds into sold units. A failure
	// here is logged and left for reconciliation rather than undone.
	for _, u := range units {
		if cerr := s.ledger.Commit(ctx, u.reservation.Token); cerr != nil {
			s.logger.Error("failed to commit reservation for recorded sale",
				zap.String("sale_id", sale.ID),
				zap.String("reservation", u.reservation.Token),
				zap.Error(cerr))
		}
	}

	s.publisher.SaleCompleted(ctx, sale)
	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("user_id", sale.UserID),
		zap.Int("tickets", len(tickets)),
		zap.String("total", sale.TotalAmount.String()))
	span.SetAttributes(
		attribute.String("sale_id", sale.ID),
		attribute.Int("tickets", len(tickets)))

	return &SaleResult{Sale: sale, Tickets: tickets, RejectedOffers: rejected}, nil
}

func (s *saleService) validateInput(in *RecordSaleInput) error {
	if in.UserID == "" {
		return &domain.InvalidInputError{Field: "user_id", Reason: "must not be empty"}
	}
	if in.PaymentMethod == "" {
		return &domain.InvalidInputError{Field: "payment_method", Reason: "must not be empty"}
	}
	if len(in.Items) == 0 {
		return &domain.InvalidInputError{Field: "items", Reason: "at least one line item is required"}
	}
	total := 0
	seen := make(map[string]bool, len(in.Items))
	for _, item := range in.Items {
		if item.TicketTypeID == "" {
			return &domain.InvalidInputError{Field: "items.ticket_type_id", Reason: "must not be empty"}
		}
		if seen[item.TicketTypeID] {
			return &domain.InvalidInputError{Field: "items.ticket_type_id", Reason: "duplicate ticket type " + item.TicketTypeID}
		}
		seen[item.TicketTypeID] = true
		if item.Quantity <= 0 {
			return &domain.InvalidInputError{Field: "items.quantity", Reason: "must be positive"}
		}
		total += item.Quantity
	}
	if total > s.cfg.MaxTicketsPerSale {
		return &domain.InvalidInputError{
			Field:  "items",
			Reason: fmt.Sprintf("at most %d tickets per sale", s.cfg.MaxTicketsPerSale),
		}
	}
	return nil
}

func (s *saleService) resolveLines(ctx context.Context, items []LineItem) ([]saleLine, error) {
	lines := make([]saleLine, 0, len(items))
	for _, item := range items {
		tt, err := s.ticketTypes.GetByID(ctx, item.TicketTypeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket type %s: %w", item.TicketTypeID, err)
		}
		if tt == nil {
			return nil, fmt.Errorf("%w: %s", ErrTicketTypeNotFound, item.TicketTypeID)
		}
		if !tt.IsSellable() {
			return nil, &domain.InvalidInputError{
				Field:  "items.ticket_type_id",
				Reason: fmt.Sprintf("ticket type %s is not on sale (%s)", tt.ID, tt.Status),
			}
		}
		rule, err := s.ruleFor(ctx, tt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, saleLine{ticketType: tt, rule: rule, quantity: item.Quantity})
	}
	return lines, nil
}

func (s *saleService) ruleFor(ctx context.Context, tt *domain.TicketType) (*domain.PricingRule, error) {
	if tt.PricingRuleID == nil {
		return domain.DefaultPricingRule(), nil
	}
	rule, err := s.rules.GetByID(ctx, *tt.PricingRuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing rule %s: %w", *tt.PricingRuleID, err)
	}
	if rule == nil {
		return nil, &domain.InvalidRuleError{RuleID: *tt.PricingRuleID, Reason: "referenced rule does not exist"}
	}
	return rule, nil
}

// priceAndReserve walks each requested unit in order: price it against
// the occupancy that includes every unit reserved so far, then take a
// single-slot hold for it. On any failure all holds taken for this
// request are released.
func (s *saleService) priceAndReserve(ctx context.Context, lines []saleLine, earlyBird bool) ([]saleUnit, error) {
	units := make([]saleUnit, 0)
	fail := func(stage string, err error) ([]saleUnit, error) {
		s.releaseAll(ctx, units)
		return nil, &domain.SaleError{Stage: stage, Err: err}
	}

	for _, line := range lines {
		for i := 0; i < line.quantity; i++ {
			snap, err := s.ledger.Snapshot(ctx, line.ticketType.ID)
			if err != nil {
				return fail(domain.StageReserving, err)
			}
			price, err := domain.EvaluatePrice(line.ticketType.BasePrice, snap.OccupancyRate(), line.rule, earlyBird)
			if err != nil {
				return fail(domain.StagePricing, err)
			}
			res, err := s.ledger.TryReserve(ctx, line.ticketType.ID, 1, s.cfg.ReservationTTL)
			if err != nil {
				return fail(domain.StageReserving, err)
			}
			units = append(units, saleUnit{
				ticketTypeID: line.ticketType.ID,
				price:        price,
				reservation:  res,
			})
		}
	}
	return units, nil
}

// applyDiscounts applies each accepted offer in request order to the
// running total. A percentage offer discounts the sum of the first
// MaxTickets unit prices; a fixed offer subtracts its value once. The
// total never drops below zero.
func (s *saleService) applyDiscounts(subtotal decimal.Decimal, units []saleUnit, offers []ValidatedOffer) decimal.Decimal {
	total := subtotal
	for _, vo := range offers {
		n := vo.MaxTickets
		if n > len(units) {
			n = len(units)
		}
		var discount decimal.Decimal
		switch vo.Offer.OfferType {
		case domain.OfferTypePercentage:
			base := decimal.Zero
			for i := 0; i < n; i++ {
				base = base.Add(units[i].price)
			}
			discount = base.Mul(vo.Offer.DiscountValue).Div(decimal.NewFromInt(100))
		case domain.OfferTypeFixed:
			discount = vo.Offer.DiscountValue
		}
		total = total.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}
	}
	return total.Round(domain.PriceScale)
}

func (s *saleService) buildTickets(sale *domain.RecordedSale, units []saleUnit, now time.Time) []*domain.Ticket {
	tickets := make([]*domain.Ticket, len(units))
	for i, u := range units {
		code := newTicketCode()
		tickets[i] = &domain.Ticket{
			ID:           uuid.New().String(),
			TicketTypeID: u.ticketTypeID,
			Code:         code,
			QRPayload:    domain.QRPayloadFor(code),
			FinalPrice:   u.price,
			Status:       domain.TicketStatusSold,
			IssuedAt:     now,
			SaleID:       &sale.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return tickets
}

func (s *saleService) counterUpdates(ctx context.Context, lines []saleLine) []repository.CounterUpdate {
	updates := make([]repository.CounterUpdate, 0, len(lines))
	for _, line := range lines {
		status := domain.TicketTypeStatusActive
		if snap, err := s.ledger.Snapshot(ctx, line.ticketType.ID); err == nil && snap.Available == 0 {
			status = domain.TicketTypeStatusSoldOut
		}
		updates = append(updates, repository.CounterUpdate{
			TicketTypeID: line.ticketType.ID,
			SoldDelta:    line.quantity,
			Status:       status,
		})
	}
	return updates
}

func (s *saleService) releaseAll(ctx context.Context, units []saleUnit) {
	for _, u := range units {
		if err := s.ledger.Release(ctx, u.reservation.Token); err != nil &&
			!errors.Is(err, inventory.ErrUnknownReservation) {
			s.logger.Error("failed to release reservation",
				zap.String("reservation", u.reservation.Token),
				zap.Error(err))
		}
	}
}

func dropOffer(offers []ValidatedOffer, offerID string) ([]ValidatedOffer, string) {
	kept := make([]ValidatedOffer, 0, len(offers))
	code := offerID
	for _, vo := range offers {
		if vo.Offer.ID == offerID {
			code = vo.Offer.Code
			continue
		}
		kept = append(kept, vo)
	}
	return kept, code
}

func newTicketCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TKT-" + raw[:12]
}

// Quote previews per-unit prices for a quantity without reserving
// anything. Each simulated unit is priced as if the preceding units of
// the same request had already been reserved.
func (s *saleService) Quote(ctx context.Context, ticketTypeID string, quantity int, earlyBird bool) (*QuoteResult, error) {
	if quantity <= 0 {
		return nil, &domain.InvalidInputError{Field: "quantity", Reason: "must be positive"}
	}
	tt, err := s.ticketTypes.GetByID(ctx, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket type %s: %w", ticketTypeID, err)
	}
	if tt == nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketTypeNotFound, ticketTypeID)
	}
	rule, err := s.ruleFor(ctx, tt)
	if err != nil {
		return nil, err
	}
	snap, err := s.ledger.Snapshot(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	if quantity > snap.Available {
		return nil, &domain.InsufficientInventoryError{
			TicketTypeID: ticketTypeID,
			Requested:    quantity,
			Available:    snap.Available,
		}
	}

	result := &QuoteResult{
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		UnitPrices:   make([]decimal.Decimal, 0, quantity),
		Total:        decimal.Zero,
	}
	occupied := snap.Reserved + snap.Sold + snap.Refunded
	for i := 0; i < quantity; i++ {
		rate := float64(occupied+i) / float64(snap.Capacity)
		price, err := domain.EvaluatePrice(tt.BasePrice, rate, rule, earlyBird)
		if err != nil {
			return nil, err
		}
		result.UnitPrices = append(result.UnitPrices, price)
		result.Total = result.Total.Add(price)
	}
	return result, nil
}

func (s *saleService) InventorySnapshot(ctx context.Context, ticketTypeID string) (inventory.Snapshot, error) {
	snap, err := s.ledger.Snapshot(ctx, ticketTypeID)
	if errors.Is(err, inventory.ErrUnknownTicketType) {
		return snap, fmt.Errorf("%w: %s", ErrTicketTypeNotFound, ticketTypeID)
	}
	return snap, err
}

func (s *saleService) GetSale(ctx context.Context, id string) (*domain.RecordedSale, error) {
	sale, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	return sale, nil
}

func (s *saleService) GetTicketByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, code)
	}
	return ticket, nil
}

// RefundSale refunds every remaining sold ticket of a completed sale.
// Refunded units move to a permanently retired bucket and never return
// to the available pool.
func (s *saleService) RefundSale(ctx context.Context, id string) (*domain.RecordedSale, error) {
	ctx, span := saleTracer.Start(ctx, "sale.refund",
		trace.WithAttributes(attribute.String("sale_id", id)))
	defer span.End()

	sale, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	if !sale.CanTransitionTo(domain.SaleStatusRefunded) {
		return nil, fmt.Errorf("%w: %s is %s", ErrSaleNotRefundable, id, sale.TransactionStatus)
	}

	tickets, err := s.tickets.ListBySale(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	refundable := make([]*domain.Ticket, 0, len(tickets))
	perType := make(map[string]int)
	for _, t := range tickets {
		if t.Status != domain.TicketStatusSold {
			continue
		}
		refundable = append(refundable, t)
		perType[t.TicketTypeID]++
	}
	if len(refundable) == 0 {
		return nil, fmt.Errorf("%w: no refundable tickets on sale %s", ErrSaleNotRefundable, id)
	}

	for typeID, qty := range perType {
		if err := s.ledger.Refund(ctx, typeID, qty); err != nil {
			return nil, fmt.Errorf("failed to retire %d units of %s: %w", qty, typeID, err)
		}
	}
	ids := make([]string, len(refundable))
	for i, t := range refundable {
		ids[i] = t.ID
	}
	if err := s.tickets.UpdateStatus(ctx, ids, domain.TicketStatusRefunded); err != nil {
		return nil, err
	}

	target := domain.SaleStatusRefunded
	if len(refundable) < len(tickets) {
		target = domain.SaleStatusPartiallyRefunded
	}
	if err := s.sales.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}
	sale.TransactionStatus = target
	sale.UpdatedAt = now

	s.publisher.SaleRefunded(ctx, sale)
	s.logger.Info("sale refunded",
		zap.String("sale_id", id),
		zap.Int("tickets", len(refundable)),
		zap.String("status", target))
	return sale, nil
}
