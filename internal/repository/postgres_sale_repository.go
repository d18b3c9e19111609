package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backoffice/internal/domain"
)

// PostgresSaleRepository implements SaleRepository using PostgreSQL
type PostgresSaleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSaleRepository creates a new PostgresSaleRepository
func NewPostgresSaleRepository(pool *pgxpool.Pool) *PostgresSaleRepository {
	return &PostgresSaleRepository{pool: pool}
}

// CreateSale persists the whole sale aggregate in one transaction:
// the sale row, its ticket rows, the ticket-type counter updates and
// the offer consumptions. The offer update is guarded by the ticket
// limit so a concurrent sale can never push consumption past it.
func (r *PostgresSaleRepository) CreateSale(ctx context.Context, sale *domain.RecordedSale, tickets []*domain.Ticket, counters []CounterUpdate, consumptions map[string]int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO recorded_sales (id, user_id, total_amount, subtotal, payment_method,
		                            sale_date, transaction_status, ticket_ids, offer_ids,
		                            created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		sale.ID,
		sale.UserID,
		sale.TotalAmount,
		sale.Subtotal,
		sale.PaymentMethod,
		sale.SaleDate,
		sale.TransactionStatus,
		sale.TicketIDs,
		sale.OfferIDs,
		sale.CreatedAt,
		sale.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for _, t := range tickets {
		_, err = tx.Exec(ctx, `
			INSERT INTO tickets (id, ticket_type_id, code, qr_payload, final_price,
			                     status, issued_at, sale_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			t.ID,
			t.TicketTypeID,
			t.Code,
			t.QRPayload,
			t.FinalPrice,
			t.Status,
			t.IssuedAt,
			t.SaleID,
			t.CreatedAt,
			t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ticket %s: %w", t.ID, err)
		}
	}

	for _, cu := range counters {
		_, err = tx.Exec(ctx, `
			UPDATE ticket_types
			SET sold_count = sold_count + $2, status = $3, updated_at = now()
			WHERE id = $1
		`, cu.TicketTypeID, cu.SoldDelta, cu.Status)
		if err != nil {
			return fmt.Errorf("update ticket type %s: %w", cu.TicketTypeID, err)
		}
	}

	for offerID, count := range consumptions {
		tag, err := tx.Exec(ctx, `
			UPDATE special_offers
			SET consumed_count = consumed_count + $2, updated_at = now()
			WHERE id = $1 AND consumed_count + $2 <= ticket_limit
		`, offerID, count)
		if err != nil {
			return fmt.Errorf("consume offer %s: %w", offerID, err)
		}
		if tag.RowsAffected() == 0 {
			return &OfferExhaustedError{OfferID: offerID}
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a recorded sale by ID
func (r *PostgresSaleRepository) GetByID(ctx context.Context, id string) (*domain.RecordedSale, error) {
	query := `
		SELECT id, user_id, total_amount, subtotal, payment_method, sale_date,
		       transaction_status, ticket_ids, offer_ids, created_at, updated_at
		FROM recorded_sales
		WHERE id = $1
	`
	sale := &domain.RecordedSale{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sale.ID,
		&sale.UserID,
		&sale.TotalAmount,
		&sale.Subtotal,
		&sale.PaymentMethod,
		&sale.SaleDate,
		&sale.TransactionStatus,
		&sale.TicketIDs,
		&sale.OfferIDs,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sale, nil
}

// UpdateStatus sets the transaction status of a sale
func (r *PostgresSaleRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE recorded_sales SET transaction_status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}
