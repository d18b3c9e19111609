package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/pkg/clock"
)

const (
	offerReasonNotFound      = "offer code not found"
	offerReasonInactive      = "outside validity window"
	offerReasonNotApplicable = "not applicable to any requested ticket type"
	offerReasonExhausted     = "ticket limit exhausted"
)

type offerValidator struct {
	offers repository.SpecialOfferRepository
	clk    clock.Clock
	logger *zap.Logger
}

func NewOfferValidator(offers repository.SpecialOfferRepository, clk clock.Clock, logger *zap.Logger) OfferValidator {
	return &offerValidator{offers: offers, clk: clk, logger: logger}
}

// Applicable checks each requested code in request order. A code that
// fails any check is reported as rejected, never as an error; only
// repository failures abort validation.
func (v *offerValidator) Applicable(ctx context.Context, codes []string, ticketTypeIDs []string, requested int) ([]ValidatedOffer, []RejectedOffer, error) {
	now := v.clk.Now()

	var accepted []ValidatedOffer
	var rejected []RejectedOffer
	seen := make(map[string]bool, len(codes))

	for _, code := range codes {
		if seen[code] {
			rejected = append(rejected, RejectedOffer{Code: code, Reason: "duplicate offer code in request"})
			continue
		}
		seen[code] = true

		offer, err := v.offers.GetByCode(ctx, code)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up offer %s: %w", code, err)
		}
		if offer == nil {
			rejected = append(rejected, RejectedOffer{Code: code, Reason: offerReasonNotFound})
			continue
		}
		if !offer.IsActiveAt(now) {
			rejected = append(rejected, RejectedOffer{Code: code, Reason: offerReasonInactive})
			continue
		}
		if !offer.AppliesTo(ticketTypeIDs) {
			rejected = append(rejected, RejectedOffer{Code: code, Reason: offerReasonNotApplicable})
			continue
		}
		remaining := offer.RemainingLimit()
		if remaining == 0 {
			rejected = append(rejected, RejectedOffer{Code: code, Reason: offerReasonExhausted})
			continue
		}

		max := remaining
		if requested < max {
			max = requested
		}
		accepted = append(accepted, ValidatedOffer{Offer: offer, MaxTickets: max})
	}

	if len(rejected) > 0 {
		v.logger.Warn("rejected offer codes",
			zap.Int("rejected", len(rejected)),
			zap.Int("accepted", len(accepted)))
	}
	return accepted, rejected, nil
}
