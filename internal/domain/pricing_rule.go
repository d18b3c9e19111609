package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places of the currency minor unit.
// Final prices are rounded to this scale, half up.
const PriceScale = 2

// PricingRule is a named pricing policy attachable to ticket types.
// At sale time rules are read-only: edits apply only to later transactions.
type PricingRule struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	MinimumPrice         decimal.Decimal `json:"minimum_price"`
	MaximumPrice         decimal.Decimal `json:"maximum_price"`
	OccupancyPercentage1 float64         `json:"occupancy_percentage_1"`
	OccupancyThreshold1  decimal.Decimal `json:"occupancy_threshold_1"`
	OccupancyPercentage2 float64         `json:"occupancy_percentage_2"`
	OccupancyThreshold2  decimal.Decimal `json:"occupancy_threshold_2"`
	EarlyBirdPercentage  decimal.Decimal `json:"early_bird_percentage"`
	Modifier             decimal.Decimal `json:"modifier"`
	// DynamicCondition is opaque descriptive metadata. It is stored and
	// displayed but never interpreted.
	DynamicCondition string     `json:"dynamic_condition"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Validate checks the rule's own invariants.
func (r *PricingRule) Validate() error {
	if r.MinimumPrice.GreaterThan(r.MaximumPrice) {
		return &InvalidRuleError{RuleID: r.ID, Reason: "minimum price exceeds maximum price"}
	}
	if r.MinimumPrice.IsNegative() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "minimum price is negative"}
	}
	if r.OccupancyPercentage1 < 0 || r.OccupancyPercentage1 > 100 ||
		r.OccupancyPercentage2 < 0 || r.OccupancyPercentage2 > 100 {
		return &InvalidRuleError{RuleID: r.ID, Reason: "occupancy percentages must be in [0,100]"}
	}
	if !r.OccupancyThreshold1.IsPositive() || !r.OccupancyThreshold2.IsPositive() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "occupancy threshold multipliers must be positive"}
	}
	if !r.Modifier.IsPositive() {
		return &InvalidRuleError{RuleID: r.ID, Reason: "modifier must be positive"}
	}
	if r.EarlyBirdPercentage.IsNegative() || r.EarlyBirdPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return &InvalidRuleError{RuleID: r.ID, Reason: "early bird percentage must be in [0,100]"}
	}
	return nil
}

// DefaultPricingRule returns the identity rule: no demand multipliers,
// no early-bird discount, clamp wide open. Used when a ticket type has
// no rule attached.
func DefaultPricingRule() *PricingRule {
	return &PricingRule{
		MinimumPrice:         decimal.Zero,
		MaximumPrice:         decimal.New(1, 12), // effectively unbounded
		OccupancyThreshold1:  decimal.NewFromInt(1),
		OccupancyThreshold2:  decimal.NewFromInt(1),
		OccupancyPercentage1: 100,
		OccupancyPercentage2: 100,
		EarlyBirdPercentage:  decimal.Zero,
		Modifier:             decimal.NewFromInt(1),
	}
}

// EvaluatePrice computes the final unit price for a ticket from the zone
// base price, the current occupancy rate in [0,1] and the pricing rule.
//
// The higher occupancy breakpoint dominates; boundaries count as reached
// (>=) and multipliers never stack. The early-bird discount applies after
// the demand multiplier, then the result is clamped to the rule's
// [minimum, maximum] and rounded half up to the currency minor unit.
//
// The function is deterministic and side-effect free.
func EvaluatePrice(basePrice decimal.Decimal, occupancyRate float64, rule *PricingRule, earlyBird bool) (decimal.Decimal, error) {
	if !basePrice.IsPositive() {
		return decimal.Zero, &InvalidInputError{Field: "base_price", Reason: "must be positive"}
	}
	if occupancyRate < 0 || occupancyRate > 1 {
		return decimal.Zero, &InvalidInputError{Field: "occupancy_rate", Reason: "must be in [0,1]"}
	}
	if rule == nil {
		rule = DefaultPricingRule()
	}
	if err := rule.Validate(); err != nil {
		return decimal.Zero, err
	}

	price := basePrice.Mul(rule.Modifier)

	occupancyPct := occupancyRate * 100
	switch {
	case occupancyPct >= rule.OccupancyPercentage2:
		price = price.Mul(rule.OccupancyThreshold2)
	case occupancyPct >= rule.OccupancyPercentage1:
		price = price.Mul(rule.OccupancyThreshold1)
	}

	if earlyBird {
		factor := decimal.NewFromInt(1).Sub(rule.EarlyBirdPercentage.Div(decimal.NewFromInt(100)))
		price = price.Mul(factor)
	}

	if price.LessThan(rule.MinimumPrice) {
		price = rule.MinimumPrice
	}
	if price.GreaterThan(rule.MaximumPrice) {
		price = rule.MaximumPrice
	}

	// decimal.Round rounds half away from zero; prices are non-negative,
	// so this is round-half-up.
	return price.Round(PriceScale), nil
}
