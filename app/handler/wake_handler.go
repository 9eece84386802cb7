package handler

import (
	"context"
	"net/http"

	"trafficwaker/pkg/autoscaler"
	"trafficwaker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WakeSignaler receives inbound traffic signals
type WakeSignaler interface {
	HandleSignal(ctx context.Context) (*autoscaler.ApplyResult, error)
}

// WakeHandler traffic signal endpoint: any request records traffic and wakes the namespace
type WakeHandler struct {
	signaler WakeSignaler
}

// NewWakeHandler creates wake handler
func NewWakeHandler(signaler WakeSignaler) *WakeHandler {
	return &WakeHandler{signaler: signaler}
}

// Wake records traffic and issues the wake synchronously
// @Summary Wake signal
// @Description Record inbound traffic now and wake all workloads. Returns once the wake is issued.
// @Tags Wake
// @Produce json
// @Success 200 {object} map[string]interface{} "status is recorded when the reconciler is disabled"
// @Failure 500 {object} map[string]string
// @Router /wake [get]
func (h *WakeHandler) Wake(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.signaler.HandleSignal(ctx)
	if err != nil {
		logger.ErrorCtx(ctx, "wake signal failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"status": "awake", "mutations": 0}
	if result != nil && result.Disabled {
		// traffic recorded, no wake issued
		resp["status"] = "recorded"
	}
	if result != nil {
		resp["mutations"] = result.Mutations
		if len(result.Workloads) > 0 {
			resp["workloads"] = result.Workloads
		}
	}
	c.JSON(http.StatusOK, resp)
}
