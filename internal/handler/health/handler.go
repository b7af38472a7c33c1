package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/blockpreventer/bridge/pkg/messaging"
)

// Handler serves the liveness and readiness probes. Readiness requires the
// database; the broker is reported but does not fail the probe, because the
// engine degrades to store-only alerts without it.
type Handler struct {
	db     *sqlx.DB
	broker messaging.Broker
}

func NewHandler(db *sqlx.DB, broker messaging.Broker) *Handler {
	return &Handler{db: db, broker: broker}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.Liveness)
		health.GET("/ready", h.Readiness)
	}
}

func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

func (h *Handler) Readiness(c *gin.Context) {
	checks := gin.H{"database": "up", "broker": "up"}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		checks["database"] = "down"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "checks": checks})
		return
	}
	if h.broker == nil {
		checks["broker"] = "disabled"
	}

	c.JSON(http.StatusOK, gin.H{"status": "up", "checks": checks})
}
