package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"trafficwaker/pkg/autoscaler"
	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Reconciler admin surface of the wake/sleep reconciler
type Reconciler interface {
	GetStatus(ctx context.Context) (*autoscaler.Status, error)
	GetHistory(ctx context.Context, limit int) ([]*interfaces.WakeEvent, error)
	Enable()
	Disable()
	GetSettings() autoscaler.Settings
	UpdateSettings(ctx context.Context, s autoscaler.Settings) error
	Reconcile(ctx context.Context) error
}

// WakerHandler handles reconciler admin operations
type WakerHandler struct {
	reconciler Reconciler
}

// NewWakerHandler creates waker handler
func NewWakerHandler(reconciler Reconciler) *WakerHandler {
	return &WakerHandler{reconciler: reconciler}
}

// GetStatus gets reconciler status
// @Summary Get reconciler status
// @Description State, idle bookkeeping, last traffic sample, active sleep windows and recent events
// @Tags Waker
// @Produce json
// @Success 200 {object} autoscaler.Status
// @Router /api/v1/waker/status [get]
func (h *WakerHandler) GetStatus(c *gin.Context) {
	status, err := h.reconciler.GetStatus(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to get reconciler status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetEvents gets recent wake/sleep events
// @Summary Get recent events
// @Tags Waker
// @Param limit query int false "Event limit (default 20)"
// @Produce json
// @Success 200 {array} interfaces.WakeEvent
// @Router /api/v1/waker/events [get]
func (h *WakerHandler) GetEvents(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	events, err := h.reconciler.GetHistory(c.Request.Context(), limit)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to get events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, events)
}

// Enable enables reconciler
// @Summary Enable reconciler
// @Tags Waker
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/waker/enable [post]
func (h *WakerHandler) Enable(c *gin.Context) {
	h.reconciler.Enable()
	logger.InfoCtx(c.Request.Context(), "reconciler enabled via api")
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

// Disable disables reconciler
// @Summary Disable reconciler
// @Description Stop issuing wake/sleep actions. Wake signals are still recorded.
// @Tags Waker
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/waker/disable [post]
func (h *WakerHandler) Disable(c *gin.Context) {
	h.reconciler.Disable()
	logger.InfoCtx(c.Request.Context(), "reconciler disabled via api")
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

// Reconcile manually runs one cycle
// @Summary Trigger reconcile
// @Tags Waker
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/waker/reconcile [post]
func (h *WakerHandler) Reconcile(c *gin.Context) {
	if err := h.reconciler.Reconcile(c.Request.Context()); err != nil {
		logger.ErrorCtx(c.Request.Context(), "manual reconcile failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
}

// settingsResponse human-readable settings
type settingsResponse struct {
	Enabled       bool    `json:"enabled"`
	WakeThreshold float64 `json:"wakeThreshold"`
	IdleTimeout   string  `json:"idleTimeout"`
}

// settingsRequest partial update; omitted fields keep their value
type settingsRequest struct {
	Enabled       *bool    `json:"enabled"`
	WakeThreshold *float64 `json:"wakeThreshold"`
	IdleTimeout   *string  `json:"idleTimeout"` // Go duration, e.g. "5m"
}

func toSettingsResponse(s autoscaler.Settings) settingsResponse {
	return settingsResponse{
		Enabled:       s.Enabled,
		WakeThreshold: s.WakeThreshold,
		IdleTimeout:   s.IdleTimeout.String(),
	}
}

// GetSettings gets runtime settings
// @Summary Get runtime settings
// @Tags Waker
// @Produce json
// @Success 200 {object} settingsResponse
// @Router /api/v1/waker/settings [get]
func (h *WakerHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, toSettingsResponse(h.reconciler.GetSettings()))
}

// UpdateSettings updates runtime settings
// @Summary Update runtime settings
// @Tags Waker
// @Accept json
// @Param settings body settingsRequest true "Settings"
// @Produce json
// @Success 200 {object} settingsResponse
// @Router /api/v1/waker/settings [put]
func (h *WakerHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.ErrorCtx(c.Request.Context(), "invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	settings := h.reconciler.GetSettings()
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.WakeThreshold != nil {
		settings.WakeThreshold = *req.WakeThreshold
	}
	if req.IdleTimeout != nil {
		d, err := time.ParseDuration(*req.IdleTimeout)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid idleTimeout: " + err.Error()})
			return
		}
		settings.IdleTimeout = d
	}

	if err := h.reconciler.UpdateSettings(c.Request.Context(), settings); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interfaces.ErrConfigInvalid) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(h.reconciler.GetSettings()))
}
