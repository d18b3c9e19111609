package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stagepass/backoffice/internal/domain"
)

// CreateTicketTypeRequest represents the request to create a ticket type.
type CreateTicketTypeRequest struct {
	EventID       string          `json:"event_id" binding:"required"`
	ZoneID        string          `json:"zone_id" binding:"required"`
	Name          string          `json:"name" binding:"required,min=1,max=200"`
	Description   string          `json:"description" binding:"max=2000"`
	BasePrice     decimal.Decimal `json:"base_price" binding:"required"`
	Capacity      int             `json:"capacity" binding:"required,min=1"`
	Status        string          `json:"status"`
	PricingRuleID *string         `json:"pricing_rule_id"`
}

// Validate checks cross-field constraints gin bindings cannot express.
func (r *CreateTicketTypeRequest) Validate() (bool, string) {
	if !r.BasePrice.IsPositive() {
		return false, "Base price must be positive"
	}
	if r.Status != "" && !domain.IsValidTicketTypeStatus(r.Status) {
		return false, "Invalid ticket type status"
	}
	return true, ""
}

// TicketTypeResponse represents a ticket type.
type TicketTypeResponse struct {
	ID            string  `json:"id"`
	EventID       string  `json:"event_id"`
	ZoneID        string  `json:"zone_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	BasePrice     string  `json:"base_price"`
	Capacity      int     `json:"capacity"`
	SoldCount     int     `json:"sold_count"`
	Status        string  `json:"status"`
	PricingRuleID *string `json:"pricing_rule_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func ToTicketTypeResponse(tt *domain.TicketType) *TicketTypeResponse {
	return &TicketTypeResponse{
		ID:            tt.ID,
		EventID:       tt.EventID,
		ZoneID:        tt.ZoneID,
		Name:          tt.Name,
		Description:   tt.Description,
		BasePrice:     formatPrice(tt.BasePrice),
		Capacity:      tt.Capacity,
		SoldCount:     tt.SoldCount,
		Status:        tt.Status,
		PricingRuleID: tt.PricingRuleID,
		CreatedAt:     tt.CreatedAt.Format(timeFormat),
		UpdatedAt:     tt.UpdatedAt.Format(timeFormat),
	}
}

// CreatePricingRuleRequest represents the request to create a pricing rule.
type CreatePricingRuleRequest struct {
	Name                 string          `json:"name" binding:"required,min=1,max=200"`
	MinimumPrice         decimal.Decimal `json:"minimum_price"`
	MaximumPrice         decimal.Decimal `json:"maximum_price" binding:"required"`
	OccupancyPercentage1 float64         `json:"occupancy_percentage_1"`
	OccupancyThreshold1  decimal.Decimal `json:"occupancy_threshold_1"`
	OccupancyPercentage2 float64         `json:"occupancy_percentage_2"`
	OccupancyThreshold2  decimal.Decimal `json:"occupancy_threshold_2"`
	EarlyBirdPercentage  decimal.Decimal `json:"early_bird_percentage"`
	Modifier             decimal.Decimal `json:"modifier"`
	DynamicCondition     string          `json:"dynamic_condition" binding:"max=2000"`
}

// ToDomain builds a PricingRule from the request. Zero multipliers
// default to the identity value.
func (r *CreatePricingRuleRequest) ToDomain() *domain.PricingRule {
	rule := &domain.PricingRule{
		Name:                 r.Name,
		MinimumPrice:         r.MinimumPrice,
		MaximumPrice:         r.MaximumPrice,
		OccupancyPercentage1: r.OccupancyPercentage1,
		OccupancyThreshold1:  r.OccupancyThreshold1,
		OccupancyPercentage2: r.OccupancyPercentage2,
		OccupancyThreshold2:  r.OccupancyThreshold2,
		EarlyBirdPercentage:  r.EarlyBirdPercentage,
		Modifier:             r.Modifier,
		DynamicCondition:     r.DynamicCondition,
	}
	one := decimal.NewFromInt(1)
	if rule.Modifier.IsZero() {
		rule.Modifier = one
	}
	if rule.OccupancyThreshold1.IsZero() {
		rule.OccupancyThreshold1 = one
	}
	if rule.OccupancyThreshold2.IsZero() {
		rule.OccupancyThreshold2 = one
	}
	if rule.OccupancyPercentage1 == 0 {
		rule.OccupancyPercentage1 = 100
	}
	if rule.OccupancyPercentage2 == 0 {
		rule.OccupancyPercentage2 = 100
	}
	return rule
}

// PricingRuleResponse represents a pricing rule.
type PricingRuleResponse struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	MinimumPrice         string  `json:"minimum_price"`
	MaximumPrice         string  `json:"maximum_price"`
	OccupancyPercentage1 float64 `json:"occupancy_percentage_1"`
	OccupancyThreshold1  string  `json:"occupancy_threshold_1"`
	OccupancyPercentage2 float64 `json:"occupancy_percentage_2"`
	OccupancyThreshold2  string  `json:"occupancy_threshold_2"`
	EarlyBirdPercentage  string  `json:"early_bird_percentage"`
	Modifier             string  `json:"modifier"`
	DynamicCondition     string  `json:"dynamic_condition,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

func ToPricingRuleResponse(rule *domain.PricingRule) *PricingRuleResponse {
	return &PricingRuleResponse{
		ID:                   rule.ID,
		Name:                 rule.Name,
		MinimumPrice:         formatPrice(rule.MinimumPrice),
		MaximumPrice:         formatPrice(rule.MaximumPrice),
		OccupancyPercentage1: rule.OccupancyPercentage1,
		OccupancyThreshold1:  rule.OccupancyThreshold1.String(),
		OccupancyPercentage2: rule.OccupancyPercentage2,
		OccupancyThreshold2:  rule.OccupancyThreshold2.String(),
		EarlyBirdPercentage:  rule.EarlyBirdPercentage.String(),
		Modifier:             rule.Modifier.String(),
		DynamicCondition:     rule.DynamicCondition,
		CreatedAt:            rule.CreatedAt.Format(timeFormat),
		UpdatedAt:            rule.UpdatedAt.Format(timeFormat),
	}
}

// CreateSpecialOfferRequest represents the request to create an offer.
type CreateSpecialOfferRequest struct {
	Code          string          `json:"code" binding:"required,min=1,max=64"`
	OfferType     string          `json:"offer_type" binding:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value" binding:"required"`
	StartDate     time.Time       `json:"start_date" binding:"required"`
	EndDate       time.Time       `json:"end_date" binding:"required"`
	TicketLimit   int             `json:"ticket_limit" binding:"required,min=1"`
	TicketTypeIDs []string        `json:"ticket_type_ids"`
}

// ToDomain builds a SpecialOffer from the request.
func (r *CreateSpecialOfferRequest) ToDomain() *domain.SpecialOffer {
	return &domain.SpecialOffer{
		Code:          r.Code,
		OfferType:     r.OfferType,
		DiscountValue: r.DiscountValue,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		TicketLimit:   r.TicketLimit,
		TicketTypeIDs: r.TicketTypeIDs,
	}
}

// SpecialOfferResponse represents a special offer.
type SpecialOfferResponse struct {
	ID            string   `json:"id"`
	Code          string   `json:"code"`
	OfferType     string   `json:"offer_type"`
	DiscountValue string   `json:"discount_value"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	TicketLimit   int      `json:"ticket_limit"`
	ConsumedCount int      `json:"consumed_count"`
	Remaining     int      `json:"remaining"`
	TicketTypeIDs []string `json:"ticket_type_ids,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func ToSpecialOfferResponse(offer *domain.SpecialOffer) *SpecialOfferResponse {
	return &SpecialOfferResponse{
		ID:            offer.ID,
		Code:          offer.Code,
		OfferType:     offer.OfferType,
		DiscountValue: offer.DiscountValue.String(),
		StartDate:     offer.StartDate.Format(timeFormat),
		EndDate:       offer.EndDate.Format(timeFormat),
		TicketLimit:   offer.TicketLimit,
		ConsumedCount: offer.ConsumedCount,
		Remaining:     offer.RemainingLimit(),
		TicketTypeIDs: offer.TicketTypeIDs,
		CreatedAt:     offer.CreatedAt.Format(timeFormat),
		UpdatedAt:     offer.UpdatedAt.Format(timeFormat),
	}
}
