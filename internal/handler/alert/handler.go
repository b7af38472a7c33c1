package alert

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/handler"
	"github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/pkg/httputil"
)

type Handler struct {
	alerts *alert.Service
}

func NewHandler(alerts *alert.Service) *Handler {
	return &Handler{alerts: alerts}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.GET("", h.ListAlerts)
		alerts.POST("/:id/read", h.MarkRead)
	}
}

func (h *Handler) ListAlerts(c *gin.Context) {
	var pkgID *uuid.UUID
	if raw := c.Query("package_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
			return
		}
		pkgID = &id
	}
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	alerts, err := h.alerts.List(c.Request.Context(), pkgID, unreadOnly, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(alerts))
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid alert ID"))
		return
	}

	if err := h.alerts.MarkRead(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "read"}))
}
