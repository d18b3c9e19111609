package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backoffice/internal/domain"
)

// PostgresTicketTypeRepository implements TicketTypeRepository using PostgreSQL
type PostgresTicketTypeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketTypeRepository creates a new PostgresTicketTypeRepository
func NewPostgresTicketTypeRepository(pool *pgxpool.Pool) *PostgresTicketTypeRepository {
	return &PostgresTicketTypeRepository{pool: pool}
}

const ticketTypeColumns = `
	id, event_id, zone_id, name, description, base_price, capacity,
	sold_count, reserved_count, status, pricing_rule_id,
	created_at, updated_at, deleted_at
`

// Create inserts a new ticket type
func (r *PostgresTicketTypeRepository) Create(ctx context.Context, tt *domain.TicketType) error {
	query := `
		INSERT INTO ticket_types (id, event_id, zone_id, name, description, base_price,
		                          capacity, sold_count, reserved_count, status,
		                          pricing_rule_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		tt.ID,
		tt.EventID,
		tt.ZoneID,
		tt.Name,
		tt.Description,
		tt.BasePrice,
		tt.Capacity,
		tt.SoldCount,
		tt.ReservedCount,
		tt.Status,
		tt.PricingRuleID,
		tt.CreatedAt,
		tt.UpdatedAt,
	)
	return err
}

func scanTicketType(row pgx.Row) (*domain.TicketType, error) {
	tt := &domain.TicketType{}
	err := row.Scan(
		&tt.ID,
		&tt.EventID,
		&tt.ZoneID,
		&tt.Name,
		&tt.Description,
		&tt.BasePrice,
		&tt.Capacity,
		&tt.SoldCount,
		&tt.ReservedCount,
		&tt.Status,
		&tt.PricingRuleID,
		&tt.CreatedAt,
		&tt.UpdatedAt,
		&tt.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tt, nil
}

// GetByID retrieves a ticket type by ID
func (r *PostgresTicketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = $1 AND deleted_at IS NULL`
	return scanTicketType(r.pool.QueryRow(ctx, query, id))
}

// List retrieves all non-retired ticket types
func (r *PostgresTicketTypeRepository) List(ctx context.Context) ([]*domain.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE deleted_at IS NULL ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*domain.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, tt)
	}
	return types, rows.Err()
}

// Retire soft-deletes a ticket type
func (r *PostgresTicketTypeRepository) Retire(ctx context.Context, id string) error {
	query := `UPDATE ticket_types SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
