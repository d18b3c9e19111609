package dto

import (
	"github.com/shopspring/decimal"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/service"
)

// SaleItemRequest is one line of a sale request.
type SaleItemRequest struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
}

// RecordSaleRequest represents the request to record a sale.
type RecordSaleRequest struct {
	Items         []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	OfferCodes    []string          `json:"offer_codes"`
	PaymentMethod string            `json:"payment_method" binding:"required"`
	EarlyBird     bool              `json:"early_bird"`
	UserID        string            `json:"-"` // set from JWT context
}

// ToInput converts the request to the service input.
func (r *RecordSaleRequest) ToInput() *service.RecordSaleInput {
	items := make([]service.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = service.LineItem{TicketTypeID: it.TicketTypeID, Quantity: it.Quantity}
	}
	return &service.RecordSaleInput{
		UserID:        r.UserID,
		Items:         items,
		OfferCodes:    r.OfferCodes,
		PaymentMethod: r.PaymentMethod,
		EarlyBird:     r.EarlyBird,
	}
}

// TicketResponse represents one issued ticket.
type TicketResponse struct {
	ID           string `json:"id"`
	TicketTypeID string `json:"ticket_type_id"`
	Code         string `json:"code"`
	QRPayload    string `json:"qr_payload"`
	FinalPrice   string `json:"final_price"`
	Status       string `json:"status"`
	IssuedAt     string `json:"issued_at"`
}

// SaleResponse represents a recorded sale.
type SaleResponse struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"user_id"`
	Status         string                  `json:"status"`
	Subtotal       string                  `json:"subtotal"`
	TotalAmount    string                  `json:"total_amount"`
	PaymentMethod  string                  `json:"payment_method"`
	SaleDate       string                  `json:"sale_date"`
	Tickets        []*TicketResponse       `json:"tickets,omitempty"`
	TicketIDs      []string                `json:"ticket_ids,omitempty"`
	RejectedOffers []service.RejectedOffer `json:"rejected_offers,omitempty"`
}

// QuoteRequest represents a pricing preview request.
type QuoteRequest struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	EarlyBird    bool   `json:"early_bird"`
}

// QuoteResponse represents a pricing preview.
type QuoteResponse struct {
	TicketTypeID string   `json:"ticket_type_id"`
	Quantity     int      `json:"quantity"`
	UnitPrices   []string `json:"unit_prices"`
	Total        string   `json:"total"`
}

// InventoryResponse represents a point-in-time inventory snapshot.
type InventoryResponse struct {
	TicketTypeID  string  `json:"ticket_type_id"`
	Capacity      int     `json:"capacity"`
	Available     int     `json:"available"`
	Reserved      int     `json:"reserved"`
	Sold          int     `json:"sold"`
	Refunded      int     `json:"refunded"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

func ToTicketResponse(t *domain.Ticket) *TicketResponse {
	return &TicketResponse{
		ID:           t.ID,
		TicketTypeID: t.TicketTypeID,
		Code:         t.Code,
		QRPayload:    t.QRPayload,
		FinalPrice:   t.FinalPrice.StringFixed(domain.PriceScale),
		Status:       t.Status,
		IssuedAt:     t.IssuedAt.Format(timeFormat),
	}
}

func ToSaleResponse(sale *domain.RecordedSale) *SaleResponse {
	return &SaleResponse{
		ID:            sale.ID,
		UserID:        sale.UserID,
		Status:        sale.TransactionStatus,
		Subtotal:      sale.Subtotal.StringFixed(domain.PriceScale),
		TotalAmount:   sale.TotalAmount.StringFixed(domain.PriceScale),
		PaymentMethod: sale.PaymentMethod,
		SaleDate:      sale.SaleDate.Format(timeFormat),
		TicketIDs:     sale.TicketIDs,
	}
}

func ToSaleResultResponse(result *service.SaleResult) *SaleResponse {
	resp := ToSaleResponse(result.Sale)
	resp.TicketIDs = nil
	resp.Tickets = make([]*TicketResponse, len(result.Tickets))
	for i, t := range result.Tickets {
		resp.Tickets[i] = ToTicketResponse(t)
	}
	resp.RejectedOffers = result.RejectedOffers
	return resp
}

func ToQuoteResponse(q *service.QuoteResult) *QuoteResponse {
	prices := make([]string, len(q.UnitPrices))
	for i, p := range q.UnitPrices {
		prices[i] = p.StringFixed(domain.PriceScale)
	}
	return &QuoteResponse{
		TicketTypeID: q.TicketTypeID,
		Quantity:     q.Quantity,
		UnitPrices:   prices,
		Total:        q.Total.StringFixed(domain.PriceScale),
	}
}

func ToInventoryResponse(ticketTypeID string, snap inventory.Snapshot) *InventoryResponse {
	return &InventoryResponse{
		TicketTypeID:  ticketTypeID,
		Capacity:      snap.Capacity,
		Available:     snap.Available,
		Reserved:      snap.Reserved,
		Sold:          snap.Sold,
		Refunded:      snap.Refunded,
		OccupancyRate: snap.OccupancyRate(),
	}
}

// formatPrice renders a decimal at the currency minor unit.
func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(domain.PriceScale)
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
