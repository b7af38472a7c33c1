package profile

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/handler"
	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/service/message"
	"github.com/blockpreventer/bridge/internal/service/registry"
	"github.com/blockpreventer/bridge/pkg/httputil"
)

type Handler struct {
	registry *registry.Service
	messages *message.Service
}

func NewHandler(reg *registry.Service, messages *message.Service) *Handler {
	return &Handler{registry: reg, messages: messages}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	profiles := r.Group("/profiles")
	{
		profiles.POST("", h.CreateProfile)
		profiles.GET("/:id", h.GetProfile)
		profiles.GET("/:id/health", h.GetProfileHealth)
		profiles.POST("/:id/pause", h.PauseProfile)
		profiles.POST("/:id/resume", h.ResumeProfile)
	}
	r.GET("/packages/:id/profiles", h.ListProfiles)
}

type createProfileRequest struct {
	PackageID     string `json:"package_id" binding:"required,uuid"`
	Name          string `json:"name" binding:"required"`
	Address       string `json:"address" binding:"required"`
	ProviderUUID  string `json:"provider_uuid" binding:"required"`
	ProviderToken string `json:"provider_token" binding:"required"`

	ManualPriority   int `json:"manual_priority"`
	AccountAgeMonths int `json:"account_age_months"`

	MaxPerHour   *int `json:"max_per_hour"`
	MaxPer3Hours *int `json:"max_per_3_hours"`
	MaxPerDay    *int `json:"max_per_day"`
}

type pauseProfileRequest struct {
	Reason   string     `json:"reason"`
	ResumeAt *time.Time `json:"resume_at"`
}

func (h *Handler) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pkgID, err := uuid.Parse(req.PackageID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	profile := &model.Profile{
		PackageID:        pkgID,
		Name:             req.Name,
		Address:          req.Address,
		ProviderUUID:     req.ProviderUUID,
		ProviderToken:    req.ProviderToken,
		ManualPriority:   req.ManualPriority,
		AccountAgeMonths: req.AccountAgeMonths,
		MaxPerHour:       req.MaxPerHour,
		MaxPer3Hours:     req.MaxPer3Hours,
		MaxPerDay:        req.MaxPerDay,
	}
	if err := h.registry.CreateProfile(c.Request.Context(), profile); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(profile))
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid profile ID"))
		return
	}

	profile, err := h.registry.GetProfile(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) ListProfiles(c *gin.Context) {
	pkgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	profiles, err := h.registry.ListProfiles(c.Request.Context(), pkgID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profiles))
}

// GetProfileHealth recomputes the profile's health, risk and weight scores
// and returns the full breakdown with recommendations.
func (h *Handler) GetProfileHealth(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid profile ID"))
		return
	}

	assessment, err := h.messages.GetProfileHealth(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(assessment))
}

func (h *Handler) PauseProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid profile ID"))
		return
	}

	var req pauseProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.registry.PauseProfile(c.Request.Context(), id, req.Reason, req.ResumeAt); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "paused"}))
}

func (h *Handler) ResumeProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid profile ID"))
		return
	}

	if err := h.registry.ResumeProfile(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "active"}))
}
