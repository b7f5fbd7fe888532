package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tremor-monitor-backend/internal/auth"
)

// analysisQuery is the shared query surface of the analysis endpoints.
type analysisQuery struct {
	PatientID string
	Start     time.Time
	End       time.Time
	Limit     int
}

func parseAnalysisQuery(c *gin.Context) (analysisQuery, bool) {
	q := analysisQuery{PatientID: c.Query("patient_id")}
	if q.PatientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "patient_id is required"})
		return q, false
	}

	var err error
	if s := c.Query("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid 'start' timestamp, use RFC3339"})
			return q, false
		}
	}
	q.End = time.Now().UTC()
	if s := c.Query("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid 'end' timestamp, use RFC3339"})
			return q, false
		}
	}
	if s := c.Query("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'"})
			return q, false
		}
	}
	return q, true
}

func (h *Handler) authorizeAnalysisRead(c *gin.Context, patientID string) bool {
	req, ok := requester(c)
	if !ok {
		return false
	}
	if !h.auth.Authorize(req, auth.Resource{Type: "analysis", PatientID: patientID}, auth.ActionRead) {
		forbidden(c)
		return false
	}
	return true
}

// GetAnalysis handles GET /api/analysis?patient_id&start&end&limit. Records
// come back ordered by window_end ascending; a limit returns the latest N
// within the range.
func (h *Handler) GetAnalysis(c *gin.Context) {
	q, ok := parseAnalysisQuery(c)
	if !ok || !h.authorizeAnalysisRead(c, q.PatientID) {
		return
	}

	records, err := h.store.GetRange(c.Request.Context(), q.PatientID, q.Start, q.End, q.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetLatestAnalysis handles GET /api/analysis/latest?patient_id&since&limit,
// the incremental read for 1 Hz pollers. A client that advances `since` to
// the last window_end it saw is never handed the same record twice.
func (h *Handler) GetLatestAnalysis(c *gin.Context) {
	patientID := c.Query("patient_id")
	if patientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "patient_id is required"})
		return
	}
	if !h.authorizeAnalysisRead(c, patientID) {
		return
	}

	var since time.Time
	if s := c.Query("since"); s != "" {
		var err error
		if since, err = time.Parse(time.RFC3339, s); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid 'since' timestamp, use RFC3339"})
			return
		}
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'"})
			return
		}
	}

	records, err := h.store.GetLatest(c.Request.Context(), patientID, since, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetStatistics handles GET /api/statistics?patient_id&start&end.
func (h *Handler) GetStatistics(c *gin.Context) {
	q, ok := parseAnalysisQuery(c)
	if !ok || !h.authorizeAnalysisRead(c, q.PatientID) {
		return
	}

	stats, err := h.store.GetStatistics(c.Request.Context(), q.PatientID, q.Start, q.End)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
