package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func demoRule() *PricingRule {
	return &PricingRule{
		ID:                   "rule-1",
		Name:                 "standard demand",
		MinimumPrice:         decimal.NewFromInt(1000),
		MaximumPrice:         decimal.NewFromInt(5000),
		OccupancyPercentage1: 50,
		OccupancyThreshold1:  decimal.RequireFromString("1.2"),
		OccupancyPercentage2: 80,
		OccupancyThreshold2:  decimal.RequireFromString("1.5"),
		EarlyBirdPercentage:  decimal.NewFromInt(20),
		Modifier:             decimal.NewFromInt(1),
	}
}

func TestEvaluatePrice(t *testing.T) {
	base := decimal.NewFromInt(2000)

	tests := []struct {
		name      string
		occupancy float64
		earlyBird bool
		want      string
	}{
		{"empty venue", 0, false, "2000"},
		{"below first breakpoint", 0.49, false, "2000"},
		{"first breakpoint boundary counts as reached", 0.5, false, "2400"},
		{"between breakpoints", 0.6, false, "2400"},
		{"second breakpoint boundary counts as reached", 0.8, false, "3000"},
		{"above second breakpoint", 0.85, false, "3000"},
		{"second breakpoint with early bird", 0.85, true, "2400"},
		{"early bird at empty venue", 0, true, "1600"},
		{"full occupancy", 1, false, "3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluatePrice(base, tt.occupancy, demoRule(), tt.earlyBird)
			if err != nil {
				t.Fatalf("EvaluatePrice() error = %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("EvaluatePrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluatePrice_Clamp(t *testing.T) {
	rule := demoRule()

	// Early bird on a cheap base drops below the minimum.
	got, err := EvaluatePrice(decimal.NewFromInt(1100), 0, rule, true)
	if err != nil {
		t.Fatalf("EvaluatePrice() error = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("price below minimum not clamped: got %s", got)
	}

	// Demand multiplier on an expensive base exceeds the maximum.
	got, err = EvaluatePrice(decimal.NewFromInt(4000), 0.9, rule, false)
	if err != nil {
		t.Fatalf("EvaluatePrice() error = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("price above maximum not clamped: got %s", got)
	}
}

func TestEvaluatePrice_ClampBoundsAlways(t *testing.T) {
	rule := demoRule()
	bases := []int64{1, 500, 1500, 3000, 9000}
	occupancies := []float64{0, 0.25, 0.5, 0.79, 0.8, 1}

	for _, b := range bases {
		for _, occ := range occupancies {
			for _, eb := range []bool{false, true} {
				got, err := EvaluatePrice(decimal.NewFromInt(b), occ, rule, eb)
				if err != nil {
					t.Fatalf("EvaluatePrice(%d, %v, eb=%v) error = %v", b, occ, eb, err)
				}
				if got.LessThan(rule.MinimumPrice) || got.GreaterThan(rule.MaximumPrice) {
					t.Errorf("EvaluatePrice(%d, %v, eb=%v) = %s outside [%s, %s]",
						b, occ, eb, got, rule.MinimumPrice, rule.MaximumPrice)
				}
			}
		}
	}
}

func TestEvaluatePrice_MonotonicInOccupancy(t *testing.T) {
	base := decimal.NewFromInt(2000)
	prev := decimal.Zero
	for _, occ := range []float64{0, 0.1, 0.3, 0.5, 0.6, 0.8, 0.9, 1} {
		got, err := EvaluatePrice(base, occ, demoRule(), false)
		if err != nil {
			t.Fatalf("EvaluatePrice() error = %v", err)
		}
		if got.LessThan(prev) {
			t.Errorf("price decreased at occupancy %v: %s < %s", occ, got, prev)
		}
		prev = got
	}
}

func TestEvaluatePrice_RoundHalfUp(t *testing.T) {
	rule := DefaultPricingRule()
	rule.Modifier = decimal.RequireFromString("1.00005")

	// 100 * 1.00005 = 100.005 -> rounds up to 100.01 at two decimals.
	got, err := EvaluatePrice(decimal.NewFromInt(100), 0, rule, false)
	if err != nil {
		t.Fatalf("EvaluatePrice() error = %v", err)
	}
	if !got.Equal(decimal.RequireFromString("100.01")) {
		t.Errorf("EvaluatePrice() = %s, want 100.01", got)
	}
}

func TestEvaluatePrice_InvalidInputs(t *testing.T) {
	rule := demoRule()

	var inputErr *InvalidInputError
	if _, err := EvaluatePrice(decimal.Zero, 0, rule, false); !errors.As(err, &inputErr) {
		t.Errorf("zero base price: got %v, want InvalidInputError", err)
	}
	if _, err := EvaluatePrice(decimal.NewFromInt(-5), 0, rule, false); !errors.As(err, &inputErr) {
		t.Errorf("negative base price: got %v, want InvalidInputError", err)
	}
	if _, err := EvaluatePrice(decimal.NewFromInt(100), -0.1, rule, false); !errors.As(err, &inputErr) {
		t.Errorf("negative occupancy: got %v, want InvalidInputError", err)
	}
	if _, err := EvaluatePrice(decimal.NewFromInt(100), 1.1, rule, false); !errors.As(err, &inputErr) {
		t.Errorf("occupancy above 1: got %v, want InvalidInputError", err)
	}
}

func TestEvaluatePrice_InvalidRule(t *testing.T) {
	rule := demoRule()
	rule.MinimumPrice = decimal.NewFromInt(6000) // above maximum

	var ruleErr *InvalidRuleError
	if _, err := EvaluatePrice(decimal.NewFromInt(2000), 0, rule, false); !errors.As(err, &ruleErr) {
		t.Errorf("min > max: got %v, want InvalidRuleError", err)
	}

	rule = demoRule()
	rule.OccupancyPercentage2 = 140
	if _, err := EvaluatePrice(decimal.NewFromInt(2000), 0, rule, false); !errors.As(err, &ruleErr) {
		t.Errorf("occupancy percentage out of range: got %v, want InvalidRuleError", err)
	}

	rule = demoRule()
	rule.Modifier = decimal.Zero
	if _, err := EvaluatePrice(decimal.NewFromInt(2000), 0, rule, false); !errors.As(err, &ruleErr) {
		t.Errorf("non-positive modifier: got %v, want InvalidRuleError", err)
	}
}

func TestPricingRule_Validate(t *testing.T) {
	if err := demoRule().Validate(); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	rule := demoRule()
	rule.EarlyBirdPercentage = decimal.NewFromInt(120)
	if err := rule.Validate(); err == nil {
		t.Error("early bird above 100 accepted")
	}
}
