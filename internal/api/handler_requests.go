package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"container-request-board/internal/model"
	"container-request-board/internal/store"
	"container-request-board/internal/ws"
)

// passcodeHeader carries the operator passcode on destructive calls.
const passcodeHeader = "X-Operator-Passcode"

// GetRequests returns the open requests, oldest first.
func (h *Handler) GetRequests(c *gin.Context) {
	requests, err := h.store.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if requests == nil {
		requests = []model.Request{}
	}
	h.metrics.SetActiveRequests(int64(len(requests)))
	c.JSON(http.StatusOK, requests)
}

type createRequestRequest struct {
	SerialNo     string          `json:"serial_no" binding:"required"`
	PartNo       string          `json:"part_no" binding:"required"`
	Revision     string          `json:"revision"`
	Quantity     decimal.Decimal `json:"quantity"`
	Location     string          `json:"location"`
	DeliverTo    string          `json:"deliver_to" binding:"required"`
	RequestType  string          `json:"request_type"`
	MasterUnitNo string          `json:"master_unit_no"`
}

// CreateRequest opens a new container request and announces it to
// connected boards.
func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestType := body.RequestType
	if requestType == "" {
		requestType = model.RequestTypePickUp
	}
	if requestType != model.RequestTypePickUp && requestType != model.RequestTypePutBack {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request_type"})
		return
	}

	req := model.Request{
		SerialNo:     body.SerialNo,
		PartNo:       body.PartNo,
		Revision:     body.Revision,
		Quantity:     body.Quantity,
		Location:     body.Location,
		DeliverTo:    body.DeliverTo,
		ReqTime:      time.Now().UTC(),
		RequestType:  requestType,
		MasterUnitNo: body.MasterUnitNo,
	}

	if err := h.store.CreateRequest(c.Request.Context(), &req); err != nil {
		if errors.Is(err, store.ErrDuplicateSerial) {
			c.JSON(http.StatusConflict, gin.H{"error": "an active request already exists for this serial"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.metrics.RequestCreated()
	h.hub.Broadcast(req)
	c.JSON(http.StatusCreated, req)
}

// DeleteRequest removes an open request, archiving it as a manual
// deletion. Pick-up requests require the operator passcode.
func (h *Handler) DeleteRequest(c *gin.Context) {
	serialNo := c.Param("serial_no")

	req, err := h.store.GetBySerial(c.Request.Context(), serialNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.RequestType == model.RequestTypePickUp && c.GetHeader(passcodeHeader) != h.passcode {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid operator passcode"})
		return
	}

	_, err = h.store.FulfillRequest(c.Request.Context(), serialNo, req.Location, model.FulfillmentManualDelete, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.metrics.RequestFulfilled(model.FulfillmentManualDelete)
	h.hub.Broadcast(ws.NewDeleteEvent(serialNo))
	if h.notify != nil {
		h.notify.Dispatch(serialNo)
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "serial_no": serialNo})
}
