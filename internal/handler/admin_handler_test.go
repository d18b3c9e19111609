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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/internal/service"
	"github.com/stagepass/backoffice/pkg/clock"
)

type adminFixture struct {
	router *gin.Engine
	ledger *inventory.MemoryLedger
	clk    *clock.Fixed
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewFixed(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	types := repository.NewMemoryTicketTypeRepository()
	rules := repository.NewMemoryPricingRuleRepository()
	offers := repository.NewMemorySpecialOfferRepository()
	ledger := inventory.NewMemoryLedger(clk)

	svc := service.NewCatalogService(types, rules, offers, ledger, clk, zap.NewNop())
	h := NewAdminHandler(svc)

	router := gin.New()
	admin := router.Group("/api/v1/admin")
	{
		admin.POST("/ticket-types", h.CreateTicketType)
		admin.GET("/ticket-types", h.ListTicketTypes)
		admin.GET("/ticket-types/:id", h.GetTicketType)
		admin.DELETE("/ticket-types/:id", h.RetireTicketType)
		admin.POST("/pricing-rules", h.CreatePricingRule)
		admin.GET("/pricing-rules", h.ListPricingRules)
		admin.GET("/pricing-rules/:id", h.GetPricingRule)
		admin.PUT("/pricing-rules/:id", h.UpdatePricingRule)
		admin.POST("/special-offers", h.CreateSpecialOffer)
		admin.GET("/special-offers", h.ListSpecialOffers)
		admin.GET("/special-offers/:id", h.GetSpecialOffer)
	}

	return &adminFixture{router: router, ledger: ledger, clk: clk}
}

func (f *adminFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
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

func TestAdminHandler_CreateTicketType(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/ticket-types", gin.H{
		"event_id":   "event-1",
		"zone_id":    "zone-a",
		"name":       "Standard",
		"base_price": "2000",
		"capacity":   100,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var tt struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Capacity int    `json:"capacity"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tt))
	assert.NotEmpty(t, tt.ID)
	assert.Equal(t, "active", tt.Status)
	assert.Equal(t, 100, tt.Capacity)

	// Creation registers the type with the ledger.
	snap, err := f.ledger.Snapshot(context.Background(), tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Available)
}

func TestAdminHandler_CreateTicketType_NegativePrice(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/ticket-types", gin.H{
		"event_id":   "event-1",
		"zone_id":    "zone-a",
		"name":       "Broken",
		"base_price": "-5",
		"capacity":   10,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_CreateTicketType_UnknownRule(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/ticket-types", gin.H{
		"event_id":        "event-1",
		"zone_id":         "zone-a",
		"name":            "Standard",
		"base_price":      "2000",
		"capacity":        10,
		"pricing_rule_id": "rule-missing",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_PricingRuleLifecycle(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/pricing-rules", gin.H{
		"name":                   "demand",
		"minimum_price":          "1000",
		"maximum_price":          "5000",
		"occupancy_percentage_1": 50,
		"occupancy_threshold_1":  "1.2",
		"occupancy_percentage_2": 80,
		"occupancy_threshold_2":  "1.5",
		"early_bird_percentage":  "20",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var rule struct {
		ID       string `json:"id"`
		Modifier string `json:"modifier"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rule))
	assert.Equal(t, "1", rule.Modifier)

	w = f.do(t, http.MethodPut, "/api/v1/admin/pricing-rules/"+rule.ID, gin.H{
		"name":          "demand-v2",
		"minimum_price": "1500",
		"maximum_price": "6000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env = decodeEnvelope(t, w)
	var updated struct {
		Name         string `json:"name"`
		MinimumPrice string `json:"minimum_price"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "demand-v2", updated.Name)
	assert.Equal(t, "1500.00", updated.MinimumPrice)

	w = f.do(t, http.MethodGet, "/api/v1/admin/pricing-rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_CreatePricingRule_Invalid(t *testing.T) {
	f := newAdminFixture(t)

	// Minimum above maximum fails rule validation.
	w := f.do(t, http.MethodPost, "/api/v1/admin/pricing-rules", gin.H{
		"name":          "inverted",
		"minimum_price": "5000",
		"maximum_price": "1000",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_PRICING_RULE", env.Error.Code)
}

func TestAdminHandler_SpecialOffers(t *testing.T) {
	f := newAdminFixture(t)
	now := f.clk.Now()

	body := gin.H{
		"code":           "SUMMER10",
		"offer_type":     "percentage",
		"discount_value": "10",
		"start_date":     now.Format(time.RFC3339),
		"end_date":       now.Add(24 * time.Hour).Format(time.RFC3339),
		"ticket_limit":   100,
	}

	w := f.do(t, http.MethodPost, "/api/v1/admin/special-offers", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var offer struct {
		ID        string `json:"id"`
		Remaining int    `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &offer))
	assert.Equal(t, 100, offer.Remaining)

	// Duplicate code is rejected.
	w = f.do(t, http.MethodPost, "/api/v1/admin/special-offers", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/special-offers/"+offer.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/special-offers/offer-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_RetireTicketType(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/ticket-types", gin.H{
		"event_id":   "event-1",
		"zone_id":    "zone-a",
		"name":       "Standard",
		"base_price": "2000",
		"capacity":   10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	var tt struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tt))

	w = f.do(t, http.MethodDelete, "/api/v1/admin/ticket-types/"+tt.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/admin/ticket-types/tt-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
