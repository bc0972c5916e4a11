package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"container-request-board/internal/erp"
)

// GetContainersByPart lists the containers available for a part,
// flagging the ones that already have an open request.
func (h *Handler) GetContainersByPart(c *gin.Context) {
	partNo := c.Param("part_no")

	activeSerials, err := h.store.ActiveSerials(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.erp.ContainersByPart(c.Request.Context(), partNo, activeSerials)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []erp.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"part_no": partNo, "containers": rows})
}

// GetContainerBySerial looks up a single container.
func (h *Handler) GetContainerBySerial(c *gin.Context) {
	serialNo := c.Param("serial_no")

	rows, err := h.erp.ContainerBySerial(c.Request.Context(), serialNo)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "container not found"})
		return
	}
	c.JSON(http.StatusOK, rows[0])
}

// GetContainersByMasterUnit resolves a master unit number and lists
// its containers.
func (h *Handler) GetContainersByMasterUnit(c *gin.Context) {
	masterUnitNo := c.Param("master_unit")

	key, err := h.erp.MasterUnitKey(c.Request.Context(), masterUnitNo)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	activeSerials, err := h.store.ActiveSerials(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.erp.ContainersByMasterUnit(c.Request.Context(), key, activeSerials)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []erp.Row{}
	}
	c.JSON(http.StatusOK, gin.H{"master_unit_no": masterUnitNo, "containers": rows})
}
