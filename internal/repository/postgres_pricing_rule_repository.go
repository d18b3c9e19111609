package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backoffice/internal/domain"
)

// PostgresPricingRuleRepository implements PricingRuleRepository using PostgreSQL
type PostgresPricingRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPricingRuleRepository creates a new PostgresPricingRuleRepository
func NewPostgresPricingRuleRepository(pool *pgxpool.Pool) *PostgresPricingRuleRepository {
	return &PostgresPricingRuleRepository{pool: pool}
}

const pricingRuleColumns = `
	id, name, minimum_price, maximum_price,
	occupancy_percentage_1, occupancy_threshold_1,
	occupancy_percentage_2, occupancy_threshold_2,
	early_bird_percentage, modifier, dynamic_condition,
	created_at, updated_at, deleted_at
`

func scanPricingRule(row pgx.Row) (*domain.PricingRule, error) {
	rule := &domain.PricingRule{}
	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.MinimumPrice,
		&rule.MaximumPrice,
		&rule.OccupancyPercentage1,
		&rule.OccupancyThreshold1,
		&rule.OccupancyPercentage2,
		&rule.OccupancyThreshold2,
		&rule.EarlyBirdPercentage,
		&rule.Modifier,
		&rule.DynamicCondition,
		&rule.CreatedAt,
		&rule.UpdatedAt,
		&rule.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}

// Create inserts a new pricing rule
func (r *PostgresPricingRuleRepository) Create(ctx context.Context, rule *domain.PricingRule) error {
	query := `
		INSERT INTO pricing_rules (id, name, minimum_price, maximum_price,
		                           occupancy_percentage_1, occupancy_threshold_1,
		                           occupancy_percentage_2, occupancy_threshold_2,
		                           early_bird_percentage, modifier, dynamic_condition,
		                           created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.MinimumPrice,
		rule.MaximumPrice,
		rule.OccupancyPercentage1,
		rule.OccupancyThreshold1,
		rule.OccupancyPercentage2,
		rule.OccupancyThreshold2,
		rule.EarlyBirdPercentage,
		rule.Modifier,
		rule.DynamicCondition,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	return err
}

// GetByID retrieves a pricing rule by ID
func (r *PostgresPricingRuleRepository) GetByID(ctx context.Context, id string) (*domain.PricingRule, error) {
	query := `SELECT ` + pricingRuleColumns + ` FROM pricing_rules WHERE id = $1 AND deleted_at IS NULL`
	return scanPricingRule(r.pool.QueryRow(ctx, query, id))
}

// List retrieves all pricing rules
func (r *PostgresPricingRuleRepository) List(ctx context.Context) ([]*domain.PricingRule, error) {
	query := `SELECT ` + pricingRuleColumns + ` FROM pricing_rules WHERE deleted_at IS NULL ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.PricingRule
	for rows.Next() {
		rule, err := scanPricingRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update rewrites a pricing rule. In-flight sales are unaffected: the
// coordinator loads rules once per transaction.
func (r *PostgresPricingRuleRepository) Update(ctx context.Context, rule *domain.PricingRule) error {
	query := `
		UPDATE pricing_rules
		SET name = $2, minimum_price = $3, maximum_price = $4,
		    occupancy_percentage_1 = $5, occupancy_threshold_1 = $6,
		    occupancy_percentage_2 = $7, occupancy_threshold_2 = $8,
		    early_bird_percentage = $9, modifier = $10, dynamic_condition = $11,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.MinimumPrice,
		rule.MaximumPrice,
		rule.OccupancyPercentage1,
		rule.OccupancyThreshold1,
		rule.OccupancyPercentage2,
		rule.OccupancyThreshold2,
		rule.EarlyBirdPercentage,
		rule.Modifier,
		rule.DynamicCondition,
	)
	return err
}
