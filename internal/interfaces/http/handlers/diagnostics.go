// internal/interfaces/http/handlers/diagnostics.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/diagnostics"
)

// DiagnosticsHandler exposes the cart divergence ledger to operators
type DiagnosticsHandler struct {
	service *diagnostics.Service
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(service *diagnostics.Service) *DiagnosticsHandler {
	return &DiagnosticsHandler{service: service}
}

// ListDivergence handles GET /admin/cart-divergence
func (h *DiagnosticsHandler) ListDivergence(c *gin.Context) {
	filter := diagnostics.ListFilter{
		SessionID: c.Query("session_id"),
		Operation: c.Query("operation"),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "since must be an RFC3339 timestamp",
			})
			return
		}
		filter.Since = t
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	filter.Limit = limit
	filter.Offset = offset

	events, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve divergence events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Divergence events retrieved successfully",
		"data":    events,
		"meta": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// DivergenceSummary handles GET /admin/cart-divergence/summary
func (h *DiagnosticsHandler) DivergenceSummary(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "hours must be a positive integer",
		})
		return
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	counts, err := h.service.Summary(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to summarize divergence events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Divergence summary retrieved successfully",
		"data": gin.H{
			"since":      since,
			"operations": counts,
		},
	})
}
