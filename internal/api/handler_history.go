package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"container-request-board/internal/model"
	"container-request-board/internal/store"
)

// parseHistoryQuery extracts the pagination and filter parameters
// shared by the history listing and export.
func parseHistoryQuery(c *gin.Context) (store.HistoryQuery, error) {
	q := store.HistoryQuery{
		SerialNo:        c.Query("serial_no"),
		PartNo:          c.Query("part_no"),
		RequestType:     c.Query("request_type"),
		FulfillmentType: c.Query("fulfillment_type"),
	}

	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("invalid page: %q", v)
		}
		q.Page = page
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %q", v)
		}
		q.Limit = limit
	}

	var err error
	if q.StartDate, err = parseDateParam(c.Query("start_date"), false); err != nil {
		return q, err
	}
	if q.EndDate, err = parseDateParam(c.Query("end_date"), true); err != nil {
		return q, err
	}
	return q, nil
}

// parseDateParam accepts either a plain date or an RFC3339 timestamp.
// Plain end dates are pushed to the end of the day so the range is
// inclusive.
func parseDateParam(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %q", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

// GetHistory returns a page of fulfilled requests.
func (h *Handler) GetHistory(c *gin.Context) {
	q, err := parseHistoryQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, pagination, err := h.store.ListHistory(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []model.RequestHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "pagination": pagination})
}

// GetHistoryStats returns the analytics payload for the requested
// period.
func (h *Handler) GetHistoryStats(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid days: %q", v)})
			return
		}
		days = parsed
	}

	stats, err := h.store.HistoryStats(c.Request.Context(), days, c.Query("part_no"), h.loc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

var exportHeader = []string{
	"Serial No", "Part No", "Revision", "Quantity", "Location",
	"Deliver To", "Request Type", "Request Time", "Fulfilled Time",
	"Duration (min)", "Fulfillment Type", "Current Location",
}

// ExportHistory streams the filtered history as a CSV attachment.
// Every field is quoted so serials with leading zeros survive
// spreadsheet imports.
func (h *Handler) ExportHistory(c *gin.Context) {
	q, err := parseHistoryQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q.Page = 1
	q.Limit = 500

	var records []model.RequestHistory
	for {
		page, pagination, err := h.store.ListHistory(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		records = append(records, page...)
		if !pagination.HasNext {
			break
		}
		q.Page++
	}

	filename := fmt.Sprintf("request_history_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	writeCSVRow(c, exportHeader)
	for _, r := range records {
		writeCSVRow(c, []string{
			r.SerialNo,
			r.PartNo,
			r.Revision,
			r.Quantity.String(),
			r.Location,
			r.DeliverTo,
			r.RequestType,
			r.ReqTime.UTC().Format("2006-01-02 15:04:05"),
			r.FulfilledTime.UTC().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.FulfillmentDurationMinutes),
			r.FulfillmentType,
			r.CurrentLocation,
		})
	}
}

func writeCSVRow(c *gin.Context, fields []string) {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	c.Writer.WriteString(strings.Join(quoted, ",") + "\r\n")
}

// ClearHistory deletes every history record. Gated on the operator
// passcode.
func (h *Handler) ClearHistory(c *gin.Context) {
	if c.GetHeader(passcodeHeader) != h.passcode {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid operator passcode"})
		return
	}

	deleted, err := h.store.ClearHistory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted_count": deleted})
}
