package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/events"
	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/internal/service"
	"github.com/stagepass/backoffice/pkg/clock"
	"github.com/stagepass/backoffice/pkg/middleware"
)

type handlerFixture struct {
	router *gin.Engine
	types  *repository.MemoryTicketTypeRepository
	ledger *inventory.MemoryLedger
	sales  *repository.MemorySaleRepository
	clk    *clock.Fixed
	svc    service.SaleService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewFixed(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	types := repository.NewMemoryTicketTypeRepository()
	tickets := repository.NewMemoryTicketRepository()
	rules := repository.NewMemoryPricingRuleRepository()
	offers := repository.NewMemorySpecialOfferRepository()
	sales := repository.NewMemorySaleRepository(tickets, types, offers)
	ledger := inventory.NewMemoryLedger(clk)
	logger := zap.NewNop()

	validator := service.NewOfferValidator(offers, clk, logger)
	svc := service.NewSaleService(ledger, types, tickets, rules, sales,
		validator, events.NoopPublisher{}, clk, logger, service.DefaultSaleServiceConfig())

	h := NewSaleHandler(svc)

	router := gin.New()
	// Stand-in for the JWT middleware: inject a fixed user identity.
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "user-1")
		c.Set(middleware.ContextKeyRole, "user")
		c.Next()
	})
	v1 := router.Group("/api/v1")
	{
		v1.POST("/sales", h.Record)
		v1.GET("/sales/:id", h.GetByID)
		v1.POST("/sales/:id/refund", h.Refund)
		v1.POST("/quotes", h.Quote)
		v1.GET("/tickets/:code", h.GetTicket)
		v1.GET("/inventory/:ticket_type_id", h.GetInventory)
	}

	return &handlerFixture{
		router: router,
		types:  types,
		ledger: ledger,
		sales:  sales,
		clk:    clk,
		svc:    svc,
	}
}

func (f *handlerFixture) seedType(t *testing.T, id string, basePrice int64, capacity int) {
	t.Helper()
	tt := &domain.TicketType{
		ID:        id,
		EventID:   "event-1",
		ZoneID:    "zone-a",
		Name:      id,
		BasePrice: decimal.NewFromInt(basePrice),
		Capacity:  capacity,
		Status:    domain.TicketTypeStatusActive,
	}
	require.NoError(t, f.types.Create(context.Background(), tt))
	require.NoError(t, f.ledger.Register(context.Background(), id, capacity, 0, 0))
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSaleHandler_Record(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedType(t, "tt-standard", 2000, 10)

	w := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{{"ticket_type_id": "tt-standard", "quantity": 2}},
		"payment_method": "card",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	var sale struct {
		ID          string `json:"id"`
		UserID      string `json:"user_id"`
		TotalAmount string `json:"total_amount"`
		Tickets     []struct {
			Code string `json:"code"`
		} `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, "user-1", sale.UserID)
	assert.Equal(t, "4000.00", sale.TotalAmount)
	assert.Len(t, sale.Tickets, 2)

	snap, err := f.ledger.Snapshot(context.Background(), "tt-standard")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Sold)
}

func TestSaleHandler_Record_InvalidBody(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{"items": []gin.H{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestSaleHandler_Record_UnknownTicketType(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{{"ticket_type_id": "tt-missing", "quantity": 1}},
		"payment_method": "card",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaleHandler_Record_InsufficientInventory(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedType(t, "tt-small", 2000, 1)

	w := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{{"ticket_type_id": "tt-small", "quantity": 3}},
		"payment_method": "card",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", env.Error.Code)
}

func TestSaleHandler_GetByID_NotFound(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/sales/sale-missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaleHandler_Refund(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedType(t, "tt-standard", 2000, 10)

	result, err := f.svc.RecordSale(context.Background(), &service.RecordSaleInput{
		UserID:        "user-1",
		Items:         []service.LineItem{{TicketTypeID: "tt-standard", Quantity: 2}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/sales/"+result.Sale.ID+"/refund", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var sale struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.Equal(t, domain.SaleStatusRefunded, sale.Status)

	// Second refund is rejected.
	w = f.do(t, http.MethodPost, "/api/v1/sales/"+result.Sale.ID+"/refund", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	env = decodeEnvelope(t, w)
	assert.Equal(t, "SALE_NOT_REFUNDABLE", env.Error.Code)
}

func TestSaleHandler_Quote(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedType(t, "tt-standard", 2000, 10)

	w := f.do(t, http.MethodPost, "/api/v1/quotes", gin.H{
		"ticket_type_id": "tt-standard",
		"quantity":       2,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var quote struct {
		Total      string   `json:"total"`
		UnitPrices []string `json:"unit_prices"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.Equal(t, "4000.00", quote.Total)
	assert.Len(t, quote.UnitPrices, 2)

	// Quoting reserves nothing.
	snap, err := f.ledger.Snapshot(context.Background(), "tt-standard")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Available)
}

func TestSaleHandler_GetInventory(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedType(t, "tt-standard", 2000, 10)

	w := f.do(t, http.MethodGet, "/api/v1/inventory/tt-standard", nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var inv struct {
		Capacity  int `json:"capacity"`
		Available int `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, 10, inv.Capacity)
	assert.Equal(t, 10, inv.Available)
}

func TestSaleHandler_GetTicket(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedType(t, "tt-standard", 2000, 10)

	result, err := f.svc.RecordSale(context.Background(), &service.RecordSaleInput{
		UserID:        "user-1",
		Items:         []service.LineItem{{TicketTypeID: "tt-standard", Quantity: 1}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	code := result.Tickets[0].Code

	w := f.do(t, http.MethodGet, "/api/v1/tickets/"+code, nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var ticket struct {
		Code   string `json:"code"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Equal(t, code, ticket.Code)
	assert.Equal(t, domain.TicketStatusSold, ticket.Status)

	w = f.do(t, http.MethodGet, "/api/v1/tickets/TKT-DOESNOTEXIST", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
