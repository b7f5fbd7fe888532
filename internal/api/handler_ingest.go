package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tremor-monitor-backend/internal/analysis"
	"tremor-monitor-backend/internal/store"
)

type sampleBody struct {
	Timestamp int64   `json:"timestamp" binding:"required"` // unix milliseconds
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

type submitSamplesRequest struct {
	BatteryLevel int          `json:"battery_level"`
	Samples      []sampleBody `json:"samples" binding:"required"`
}

// SubmitSamples handles POST /api/devices/:id/samples. The device itself is
// the caller here (its gateway forwards with a device role header); an
// unbound device gets a DeviceNotBound conflict and nothing is buffered.
func (h *Handler) SubmitSamples(c *gin.Context) {
	deviceID := c.Param("id")

	var body submitSamplesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	samples := make([]analysis.Sample, len(body.Samples))
	for i, s := range body.Samples {
		samples[i] = analysis.Sample{
			Timestamp: time.UnixMilli(s.Timestamp).UTC(),
			X:         s.X,
			Y:         s.Y,
			Z:         s.Z,
		}
	}

	result, err := h.ingest.Submit(c.Request.Context(), deviceID, body.BatteryLevel, samples)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveSession) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "device not bound", "code": "DEVICE_NOT_BOUND"})
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}
