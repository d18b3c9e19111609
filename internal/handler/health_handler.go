package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stagepass/backoffice/pkg/database"
	"github.com/stagepass/backoffice/pkg/response"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	db *database.PostgresDB
}

// NewHealthHandler creates a new HealthHandler. db may be nil when the
// service runs without Postgres (memory backend in local development).
func NewHealthHandler(db *database.PostgresDB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /health - process liveness
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}))
}

// Ready handles GET /ready - dependency readiness
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Error(response.ErrCodeServiceUnavailable, "Database unreachable"))
			return
		}
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ready"}))
}
