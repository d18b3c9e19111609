package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagepass/backoffice/internal/domain"
	"github.com/stagepass/backoffice/internal/dto"
	"github.com/stagepass/backoffice/internal/service"
	"github.com/stagepass/backoffice/pkg/middleware"
	"github.com/stagepass/backoffice/pkg/response"
)

// SaleHandler handles sale-related HTTP requests
type SaleHandler struct {
	saleService service.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService service.SaleService) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
	}
}

// Record handles POST /sales - records a completed sale transaction
func (h *SaleHandler) Record(c *gin.Context) {
	var req dto.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}
	req.UserID = userID

	result, err := h.saleService.RecordSale(c.Request.Context(), req.ToInput())
	if err != nil {
		h.writeSaleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(dto.ToSaleResultResponse(result)))
}

// Quote handles POST /quotes - prices a prospective purchase without reserving
func (h *SaleHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	quote, err := h.saleService.Quote(c.Request.Context(), req.TicketTypeID, req.Quantity, req.EarlyBird)
	if err != nil {
		h.writeSaleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToQuoteResponse(quote)))
}

// GetByID handles GET /sales/:id - retrieves a recorded sale
func (h *SaleHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Sale not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get sale"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToSaleResponse(sale)))
}

// Refund handles POST /sales/:id/refund - refunds a recorded sale
func (h *SaleHandler) Refund(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return
	}

	sale, err := h.saleService.RefundSale(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Sale not found"))
			return
		}
		if errors.Is(err, service.ErrSaleNotRefundable) {
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeSaleNotRefundable, "Sale cannot be refunded"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to refund sale"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToSaleResponse(sale)))
}

// GetTicket handles GET /tickets/:code - looks up a ticket by its code
func (h *SaleHandler) GetTicket(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Code is required"))
		return
	}

	ticket, err := h.saleService.GetTicketByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Ticket not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get ticket"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToTicketResponse(ticket)))
}

// GetInventory handles GET /inventory/:ticket_type_id - returns live counters
func (h *SaleHandler) GetInventory(c *gin.Context) {
	id := c.Param("ticket_type_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Ticket type ID is required"))
		return
	}

	snap, err := h.saleService.InventorySnapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTicketTypeNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Ticket type not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get inventory"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.ToInventoryResponse(id, snap)))
}

// writeSaleError maps coordinator failures to API responses. Insufficient
// inventory and invalid input keep their original messages so callers can
// show them to operators.
func (h *SaleHandler) writeSaleError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrTicketTypeNotFound) {
		c.JSON(http.StatusNotFound, response.NotFound("Ticket type not found"))
		return
	}
	if domain.IsInsufficientInventory(err) {
		c.JSON(http.StatusConflict, response.InsufficientInventory(err.Error()))
		return
	}
	var inputErr *domain.InvalidInputError
	if errors.As(err, &inputErr) {
		c.JSON(http.StatusBadRequest, response.BadRequest(inputErr.Error()))
		return
	}
	var ruleErr *domain.InvalidRuleError
	if errors.As(err, &ruleErr) {
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeInvalidPricingRule, ruleErr.Error()))
		return
	}
	c.JSON(http.StatusInternalServerError, response.InternalError("Failed to record sale"))
}
