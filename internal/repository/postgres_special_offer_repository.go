package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backoffice/internal/domain"
)

// PostgresSpecialOfferRepository implements SpecialOfferRepository using PostgreSQL
type PostgresSpecialOfferRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSpecialOfferRepository creates a new PostgresSpecialOfferRepository
func NewPostgresSpecialOfferRepository(pool *pgxpool.Pool) *PostgresSpecialOfferRepository {
	return &PostgresSpecialOfferRepository{pool: pool}
}

const specialOfferColumns = `
	id, code, name, offer_type, discount_value, start_date, end_date,
	ticket_limit, consumed_count, ticket_type_ids,
	created_at, updated_at, deleted_at
`

func scanSpecialOffer(row pgx.Row) (*domain.SpecialOffer, error) {
	offer := &domain.SpecialOffer{}
	err := row.Scan(
		&offer.ID,
		&offer.Code,
		&offer.Name,
		&offer.OfferType,
		&offer.DiscountValue,
		&offer.StartDate,
		&offer.EndDate,
		&offer.TicketLimit,
		&offer.ConsumedCount,
		&offer.TicketTypeIDs,
		&offer.CreatedAt,
		&offer.UpdatedAt,
		&offer.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return offer, nil
}

// Create inserts a new special offer
func (r *PostgresSpecialOfferRepository) Create(ctx context.Context, offer *domain.SpecialOffer) error {
	query := `
		INSERT INTO special_offers (id, code, name, offer_type, discount_value,
		                            start_date, end_date, ticket_limit, consumed_count,
		                            ticket_type_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		offer.ID,
		offer.Code,
		offer.Name,
		offer.OfferType,
		offer.DiscountValue,
		offer.StartDate,
		offer.EndDate,
		offer.TicketLimit,
		offer.ConsumedCount,
		offer.TicketTypeIDs,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	return err
}

// GetByID retrieves a special offer by ID
func (r *PostgresSpecialOfferRepository) GetByID(ctx context.Context, id string) (*domain.SpecialOffer, error) {
	query := `SELECT ` + specialOfferColumns + ` FROM special_offers WHERE id = $1 AND deleted_at IS NULL`
	return scanSpecialOffer(r.pool.QueryRow(ctx, query, id))
}

// GetByCode retrieves a special offer by its code
func (r *PostgresSpecialOfferRepository) GetByCode(ctx context.Context, code string) (*domain.SpecialOffer, error) {
	query := `SELECT ` + specialOfferColumns + ` FROM special_offers WHERE code = $1 AND deleted_at IS NULL`
	return scanSpecialOffer(r.pool.QueryRow(ctx, query, code))
}

// List retrieves all special offers
func (r *PostgresSpecialOfferRepository) List(ctx context.Context) ([]*domain.SpecialOffer, error) {
	query := `SELECT ` + specialOfferColumns + ` FROM special_offers WHERE deleted_at IS NULL ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*domain.SpecialOffer
	for rows.Next() {
		offer, err := scanSpecialOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}
