package message

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/handler"
	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/service/message"
	"github.com/blockpreventer/bridge/internal/service/queue"
	"github.com/blockpreventer/bridge/pkg/httputil"
)

type Handler struct {
	messages *message.Service
	queue    *queue.Service
}

func NewHandler(messages *message.Service, q *queue.Service) *Handler {
	return &Handler{messages: messages, queue: q}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	msgs := r.Group("/messages")
	{
		msgs.POST("", h.SubmitProactive)
		msgs.POST("/reactive", h.SubmitReactive)
		msgs.POST("/inbound", h.RecordInbound)
		msgs.GET("", h.ListMessages)
		msgs.GET("/:id", h.GetMessage)
	}
	r.GET("/packages/:id/queue", h.GetQueueStatus)
	r.GET("/packages/:id/queue/items", h.ListQueueItems)
	r.DELETE("/queue/:id", h.CancelQueueItem)
}

type submitProactiveRequest struct {
	PackageID   string     `json:"package_id" binding:"required,uuid"`
	Recipients  []string   `json:"recipients" binding:"required,min=1,dive,required"`
	Content     string     `json:"content" binding:"required"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	DripSeconds int        `json:"drip_seconds" binding:"omitempty,min=1"`
	Priority    int        `json:"priority"`
}

type submitReactiveRequest struct {
	PackageID string `json:"package_id" binding:"required,uuid"`
	Recipient string `json:"recipient" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

type inboundRequest struct {
	PackageID       string `json:"package_id" binding:"required,uuid"`
	CustomerAddress string `json:"customer_address" binding:"required"`
}

func (h *Handler) SubmitProactive(c *gin.Context) {
	var req submitProactiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	pkgID, err := uuid.Parse(req.PackageID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	res, err := h.messages.SubmitProactive(c.Request.Context(), pkgID, req.Recipients, req.Content, message.SubmitOptions{
		ScheduledAt: req.ScheduledAt,
		DripSeconds: req.DripSeconds,
		Priority:    req.Priority,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(res))
}

func (h *Handler) SubmitReactive(c *gin.Context) {
	var req submitReactiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	pkgID, err := uuid.Parse(req.PackageID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	res, err := h.messages.SubmitReactive(c.Request.Context(), pkgID, req.Recipient, req.Content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) RecordInbound(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	pkgID, err := uuid.Parse(req.PackageID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	if err := h.messages.RecordInbound(c.Request.Context(), pkgID, req.CustomerAddress); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "recorded"}))
}

func (h *Handler) GetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) ListMessages(c *gin.Context) {
	pkgID, err := uuid.Parse(c.Query("package_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("package_id query parameter is required"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := model.MessageStatus(c.Query("status"))

	msgs, err := h.messages.ListMessages(c.Request.Context(), pkgID, status, limit, offset)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) GetQueueStatus(c *gin.Context) {
	pkgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	status, err := h.messages.GetQueueStatus(c.Request.Context(), pkgID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(status))
}

func (h *Handler) ListQueueItems(c *gin.Context) {
	pkgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	status := model.QueueStatus(c.DefaultQuery("status", string(model.QueueStatusWaiting)))

	items, err := h.messages.ListQueueItems(c.Request.Context(), pkgID, status, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
}

func (h *Handler) CancelQueueItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid queue item ID"))
		return
	}

	cancelled, err := h.queue.CancelItem(c.Request.Context(), id, "cancelled by operator")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, handler.NewErrorResponse("item is no longer waiting"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "cancelled"}))
}
