package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"container-request-board/internal/cleanup"
)

// ManualCleanup runs one cleanup cycle on demand.
func (h *Handler) ManualCleanup(c *gin.Context) {
	removed, err := h.cleanup.RunManual(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"removed":       removed,
		"removed_count": len(removed),
	})
}

// CleanupStatus reports the cleanup service state.
func (h *Handler) CleanupStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cleanup.Status())
}

// CleanupLogs returns recent cleanup cycle records, newest first.
func (h *Handler) CleanupLogs(c *gin.Context) {
	logs := h.cleanup.RunLog()
	if logs == nil {
		logs = []cleanup.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
