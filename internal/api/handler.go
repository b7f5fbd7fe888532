package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tremor-monitor-backend/internal/auth"
	"tremor-monitor-backend/internal/ingest"
	"tremor-monitor-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store  store.Store
	auth   auth.Authorizer
	ingest *ingest.Service
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, authorizer auth.Authorizer, ingestSvc *ingest.Service) *Handler {
	return &Handler{
		store:  s,
		auth:   authorizer,
		ingest: ingestSvc,
	}
}

// requester extracts the identity asserted by the upstream auth layer. The
// external collaborator terminates tokens and forwards identity headers.
func requester(c *gin.Context) (auth.Requester, bool) {
	req := auth.Requester{
		ID:   c.GetHeader("X-User-ID"),
		Role: auth.Role(c.GetHeader("X-User-Role")),
	}
	if req.ID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity headers"})
		return auth.Requester{}, false
	}
	return req, true
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed"})
}

// abortWithError maps the store's sentinel errors onto HTTP status codes.
// Anything unrecognized is treated as a transient storage error.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrDeviceNotFound), errors.Is(err, store.ErrSessionNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNoActiveSession):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NO_ACTIVE_SESSION"})
	case errors.Is(err, store.ErrDeviceAlreadyBound):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "DEVICE_IN_USE"})
	case errors.Is(err, store.ErrDeviceUnavailable):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "DEVICE_UNAVAILABLE"})
	case errors.Is(err, store.ErrDeviceExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "DEVICE_EXISTS"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
	}
}
