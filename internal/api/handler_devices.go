package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tremor-monitor-backend/internal/auth"
	"tremor-monitor-backend/internal/model"
)

// ListDevices handles GET /api/devices (clinician/admin view of the pool).
func (h *Handler) ListDevices(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}
	if req.Role != auth.RoleDoctor && req.Role != auth.RoleAdmin {
		forbidden(c)
		return
	}

	devices, err := h.store.ListDevices(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

type registerDeviceRequest struct {
	ID              string `json:"id" binding:"required"`
	MACAddress      string `json:"mac_address" binding:"required"`
	Name            string `json:"name"`
	FirmwareVersion string `json:"firmware_version"`
}

// RegisterDevice handles POST /api/devices (admin only).
func (h *Handler) RegisterDevice(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}
	if !h.auth.Authorize(req, auth.Resource{Type: "device"}, auth.ActionManage) {
		forbidden(c)
		return
	}

	var body registerDeviceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := model.Device{
		ID:              body.ID,
		MACAddress:      body.MACAddress,
		Name:            body.Name,
		FirmwareVersion: body.FirmwareVersion,
		Status:          model.DeviceAvailable,
	}
	if err := h.store.RegisterDevice(c.Request.Context(), &device); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

type setDeviceStatusRequest struct {
	Status model.DeviceStatus `json:"status" binding:"required"`
}

// SetDeviceStatus handles PATCH /api/devices/:id/status, the administrative
// override to maintenance/decommissioned/available. Binding a device is only
// ever done through sessions, so in_use is rejected here, and a bound device
// must have its session ended first.
func (h *Handler) SetDeviceStatus(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}
	if !h.auth.Authorize(req, auth.Resource{Type: "device"}, auth.ActionManage) {
		forbidden(c)
		return
	}

	var body setDeviceStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch body.Status {
	case model.DeviceAvailable, model.DeviceMaintenance, model.DeviceDecommissioned:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target status"})
		return
	}

	if err := h.store.SetDeviceStatus(c.Request.Context(), c.Param("id"), body.Status); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": body.Status})
}
