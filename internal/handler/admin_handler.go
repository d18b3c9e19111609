package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/dto"
	"github.com/stagepass/backoffice/internal/service"
	"github.com/stagepass/backoffice/pkg/response"
)

// AdminHandler handles catalog administration requests. All routes are
// mounted behind RequireRole("admin").
type AdminHandler struct {
	catalogService service.CatalogService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(catalogService service.CatalogService) *AdminHandler {
	return &AdminHandler{
		catalogService: catalogService,
	}
}

// CreateTicketType handles POST /admin/ticket-types
func (h *AdminHandler) CreateTicketType(c *gin.Context) {
	var req dto.CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	if ok, msg := req.Validate(); !ok {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	tt := &domain.TicketType{
		EventID:       req.EventID,
		ZoneID:        req.ZoneID,
		Name:          req.Name,
		Description:   req.Description,
		BasePrice:     req.BasePrice,
		Capacity:      req.Capacity,
		Status:        req.Status,
		PricingRuleID: req.PricingRuleID,
	}

	created, err := h.catalogService.CreateTicketType(c.Request.Context(), tt)
	if err != nil {
		if errors.Is(err, service.ErrPricingRuleNotFound) {
			c.JSON(http.StatusBadRequest, response.BadRequest("Pricing rule not found"))
			return
		}
		var inputErr *domain.InvalidInputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, response.BadRequest(inputErr.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to create ticket type"))
		return
	}

	c.JSON(http.StatusCreated, response.Success(dto.ToTicketTypeResponse(created)))
}

// ListTicketTypes handles GET /admin/ticket-types
func (h *AdminHandler) ListTicketTypes(c *gin.Context) {
	types, err := h.catalogService.ListTicketTypes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list ticket types"))
		return
	}

	resp := make([]*dto.TicketTypeResponse, len(types))
	for i, tt := range types {
		resp[i] = dto.ToTicketTypeResponse(tt)
	}
	c.JSON(http.StatusOK, response.Success(resp))
}

// GetTicketType handles GET /admin/ticket-types/:id
func (h *AdminHandler) GetTicketType(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	tt, err := h.catalogService.GetTicketType(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTicketTypeNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Ticket type not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get ticket type"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToTicketTypeResponse(tt)))
}

// RetireTicketType handles DELETE /admin/ticket-types/:id
func (h *AdminHandler) RetireTicketType(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	if err := h.catalogService.RetireTicketType(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrTicketTypeNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Ticket type not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to retire ticket type"))
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"id": id, "status": domain.TicketTypeStatusInactive}))
}

// CreatePricingRule handles POST /admin/pricing-rules
func (h *AdminHandler) CreatePricingRule(c *gin.Context) {
	var req dto.CreatePricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	created, err := h.catalogService.CreatePricingRule(c.Request.Context(), req.ToDomain())
	if err != nil {
		var ruleErr *domain.InvalidRuleError
		if errors.As(err, &ruleErr) {
			c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeInvalidPricingRule, ruleErr.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to create pricing rule"))
		return
	}

	c.JSON(http.StatusCreated, response.Success(dto.ToPricingRuleResponse(created)))
}

// ListPricingRules handles GET /admin/pricing-rules
func (h *AdminHandler) ListPricingRules(c *gin.Context) {
	rules, err := h.catalogService.ListPricingRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list pricing rules"))
		return
	}

	resp := make([]*dto.PricingRuleResponse, len(rules))
	for i, rule := range rules {
		resp[i] = dto.ToPricingRuleResponse(rule)
	}
	c.JSON(http.StatusOK, response.Success(resp))
}

// GetPricingRule handles GET /admin/pricing-rules/:id
func (h *AdminHandler) GetPricingRule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	rule, err := h.catalogService.GetPricingRule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPricingRuleNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Pricing rule not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get pricing rule"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToPricingRuleResponse(rule)))
}

// UpdatePricingRule handles PUT /admin/pricing-rules/:id
func (h *AdminHandler) UpdatePricingRule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	var req dto.CreatePricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	rule := req.ToDomain()
	rule.ID = id

	updated, err := h.catalogService.UpdatePricingRule(c.Request.Context(), rule)
	if err != nil {
		if errors.Is(err, service.ErrPricingRuleNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Pricing rule not found"))
			return
		}
		var ruleErr *domain.InvalidRuleError
		if errors.As(err, &ruleErr) {
			c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeInvalidPricingRule, ruleErr.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to update pricing rule"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToPricingRuleResponse(updated)))
}

// CreateSpecialOffer handles POST /admin/special-offers
func (h *AdminHandler) CreateSpecialOffer(c *gin.Context) {
	var req dto.CreateSpecialOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	created, err := h.catalogService.CreateSpecialOffer(c.Request.Context(), req.ToDomain())
	if err != nil {
		if errors.Is(err, service.ErrDuplicateOfferCode) {
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeConflict, "Offer code already exists"))
			return
		}
		var inputErr *domain.InvalidInputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, response.BadRequest(inputErr.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to create special offer"))
		return
	}

	c.JSON(http.StatusCreated, response.Success(dto.ToSpecialOfferResponse(created)))
}

// ListSpecialOffers handles GET /admin/special-offers
func (h *AdminHandler) ListSpecialOffers(c *gin.Context) {
	offers, err := h.catalogService.ListSpecialOffers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list special offers"))
		return
	}

	resp := make([]*dto.SpecialOfferResponse, len(offers))
	for i, offer := range offers {
		resp[i] = dto.ToSpecialOfferResponse(offer)
	}
	c.JSON(http.StatusOK, response.Success(resp))
}

// GetSpecialOffer handles GET /admin/special-offers/:id
func (h *AdminHandler) GetSpecialOffer(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	offer, err := h.catalogService.GetSpecialOffer(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSpecialOfferNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Special offer not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get special offer"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToSpecialOfferResponse(offer)))
}
