package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tremor-monitor-backend/internal/auth"
)

type createSessionRequest struct {
	DeviceID  string `json:"device_id" binding:"required"`
	PatientID string `json:"patient_id" binding:"required"`
	Notes     string `json:"notes"`
}

// CreateSession handles POST /api/sessions: bind a device to a patient.
func (h *Handler) CreateSession(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	var body createSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.auth.Authorize(req, auth.Resource{Type: "session", PatientID: body.PatientID}, auth.ActionCreate) {
		forbidden(c)
		return
	}

	session, err := h.store.CreateSession(c.Request.Context(), body.DeviceID, body.PatientID, req.ID, body.Notes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// EndSession handles POST /api/sessions/:id/end. Ending an already completed
// session succeeds again with the same result, so client retries are safe.
func (h *Handler) EndSession(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")

	session, err := h.store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	res := auth.Resource{Type: "session", PatientID: session.PatientID, CreatedBy: session.CreatedBy}
	if !h.auth.Authorize(req, res, auth.ActionEnd) {
		forbidden(c)
		return
	}

	session, err = h.store.EndSession(c.Request.Context(), sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	// Discard any partial windows so they cannot be attributed to a later
	// binding of the same device.
	h.ingest.DropDeviceBuffers(session.DeviceID)

	c.JSON(http.StatusOK, gin.H{"status": session.Status, "ended_at": session.EndedAt})
}

// GetSession handles GET /api/sessions/:id.
func (h *Handler) GetSession(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	session, err := h.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	res := auth.Resource{Type: "session", PatientID: session.PatientID, CreatedBy: session.CreatedBy}
	if !h.auth.Authorize(req, res, auth.ActionRead) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetCurrentSession handles GET /api/devices/:id/current-session.
func (h *Handler) GetCurrentSession(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	session, err := h.store.GetActiveSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	res := auth.Resource{Type: "session", PatientID: session.PatientID, CreatedBy: session.CreatedBy}
	if !h.auth.Authorize(req, res, auth.ActionRead) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"patient_id": session.PatientID,
		"status":     session.Status,
		"started_at": session.StartedAt,
	})
}
