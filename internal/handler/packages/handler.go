package packages

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/handler"
	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/service/registry"
	"github.com/blockpreventer/bridge/pkg/httputil"
)

type Handler struct {
	registry *registry.Service
}

func NewHandler(reg *registry.Service) *Handler {
	return &Handler{registry: reg}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	pkgs := r.Group("/packages")
	{
		pkgs.POST("", h.CreatePackage)
		pkgs.GET("", h.ListPackages)
		pkgs.GET("/:id", h.GetPackage)
		pkgs.PUT("/:id", h.UpdatePackage)
	}
}

type createPackageRequest struct {
	Name             string `json:"name" binding:"required"`
	Description      string `json:"description"`
	DistributionMode string `json:"distribution_mode" binding:"required,oneof=round_robin random weighted smart"`

	MaxPerHour   int `json:"max_per_hour" binding:"required,min=1"`
	MaxPer3Hours int `json:"max_per_3_hours" binding:"required,min=1"`
	MaxPerDay    int `json:"max_per_day" binding:"required,min=1"`
	MinPerHour   int `json:"min_per_hour"`
	MinPer3Hours int `json:"min_per_3_hours"`
	MinPerDay    int `json:"min_per_day"`
	CapPerHour   int `json:"cap_per_hour"`
	CapPer3Hours int `json:"cap_per_3_hours"`
	CapPerDay    int `json:"cap_per_day"`

	MaxConcurrentSends  int `json:"max_concurrent_sends"`
	FreezeDurationHours int `json:"freeze_duration_hours"`

	RushThreshold   int     `json:"rush_threshold"`
	RushMultiplier  float64 `json:"rush_multiplier"`
	QuietThreshold  int     `json:"quiet_threshold"`
	QuietMultiplier float64 `json:"quiet_multiplier"`

	AutoAdjustLimits     bool    `json:"auto_adjust_limits"`
	AutoPauseOnFailures  *bool   `json:"auto_pause_on_failures"`
	AutoPauseFailures    int     `json:"auto_pause_failures"`
	AutoPauseSuccessRate float64 `json:"auto_pause_success_rate"`
	AlertRiskThreshold   int     `json:"alert_risk_threshold"`

	RetryFailedSends  *bool `json:"retry_failed_sends"`
	RetryMaxAttempts  int   `json:"retry_max_attempts"`
	RetryBaseDelaySec int   `json:"retry_base_delay_sec"`
}

func (h *Handler) CreatePackage(c *gin.Context) {
	var req createPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pkg := req.toModel()
	if err := h.registry.CreatePackage(c.Request.Context(), pkg); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(pkg))
}

func (req *createPackageRequest) toModel() *model.Package {
	autoPause := true
	if req.AutoPauseOnFailures != nil {
		autoPause = *req.AutoPauseOnFailures
	}
	retry := true
	if req.RetryFailedSends != nil {
		retry = *req.RetryFailedSends
	}
	return &model.Package{
		Name:                 req.Name,
		Description:          req.Description,
		DistributionMode:     model.DistributionMode(req.DistributionMode),
		MaxPerHour:           req.MaxPerHour,
		MaxPer3Hours:         req.MaxPer3Hours,
		MaxPerDay:            req.MaxPerDay,
		MinPerHour:           req.MinPerHour,
		MinPer3Hours:         req.MinPer3Hours,
		MinPerDay:            req.MinPerDay,
		CapPerHour:           req.CapPerHour,
		CapPer3Hours:         req.CapPer3Hours,
		CapPerDay:            req.CapPerDay,
		MaxConcurrentSends:   req.MaxConcurrentSends,
		FreezeDurationHours:  req.FreezeDurationHours,
		RushThreshold:        req.RushThreshold,
		RushMultiplier:       req.RushMultiplier,
		QuietThreshold:       req.QuietThreshold,
		QuietMultiplier:      req.QuietMultiplier,
		AutoAdjustLimits:     req.AutoAdjustLimits,
		AutoPauseOnFailures:  autoPause,
		AutoPauseFailures:    req.AutoPauseFailures,
		AutoPauseSuccessRate: req.AutoPauseSuccessRate,
		AlertRiskThreshold:   req.AlertRiskThreshold,
		RetryFailedSends:     retry,
		RetryMaxAttempts:     req.RetryMaxAttempts,
		RetryBaseDelaySec:    req.RetryBaseDelaySec,
	}
}

func (h *Handler) GetPackage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	pkg, err := h.registry.GetPackage(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(pkg))
}

func (h *Handler) ListPackages(c *gin.Context) {
	pkgs, err := h.registry.ListPackages(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(pkgs))
}

func (h *Handler) UpdatePackage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid package ID"))
		return
	}

	pkg, err := h.registry.GetPackage(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if err := c.ShouldBindJSON(pkg); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	pkg.ID = id

	if err := h.registry.UpdatePackage(c.Request.Context(), pkg); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(pkg))
}
