package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-request-board/internal/model"
	"container-request-board/internal/store"
)

func setupHistoryRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/api/history", h.GetHistory)
	r.GET("/api/history/stats", h.GetHistoryStats)
	r.GET("/api/history/export", h.ExportHistory)
	r.DELETE("/api/history/clear-all", h.ClearHistory)
	return r
}

func fulfillTestRequest(t *testing.T, st store.Store, serialNo string) {
	t.Helper()
	createTestRequest(t, st, serialNo, model.RequestTypePickUp)
	_, err := st.FulfillRequest(context.Background(), serialNo, "PROD-A", model.FulfillmentAutoCleanup, time.Now().UTC())
	require.NoError(t, err)
}

func TestGetHistory(t *testing.T) {
	h, st, _ := newTestHandler(t)
	router := setupHistoryRouter(h)
	fulfillTestRequest(t, st, "S1")
	fulfillTestRequest(t, st, "S2")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/history?limit=1&page=2", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Records    []model.RequestHistory `json:"data"`
		Pagination store.Pagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 1)
	assert.Equal(t, 2, resp.Pagination.CurrentPage)
	assert.Equal(t, int64(2), resp.Pagination.TotalRecords)
	assert.True(t, resp.Pagination.HasPrev)
	assert.False(t, resp.Pagination.HasNext)
}

func TestGetHistoryInvalidDate(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := setupHistoryRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/history?start_date=yesterday", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistoryStats(t *testing.T) {
	h, st, _ := newTestHandler(t)
	router := setupHistoryRouter(h)
	fulfillTestRequest(t, st, "S1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/history/stats?days=7", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats store.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 7, stats.PeriodDays)
	assert.Equal(t, int64(1), stats.Overall.TotalFulfilled)
}

func TestExportHistoryCSV(t *testing.T) {
	h, st, _ := newTestHandler(t)
	router := setupHistoryRouter(h)
	fulfillTestRequest(t, st, "S1")
	fulfillTestRequest(t, st, "S2")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/history/export", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 3) // header plus two records

	// Every field is quoted, including the header.
	for _, line := range lines {
		for _, field := range strings.Split(line, ",") {
			assert.True(t, strings.HasPrefix(field, `"`), "field %q not quoted", field)
			assert.True(t, strings.HasSuffix(field, `"`), "field %q not quoted", field)
		}
	}
	assert.Contains(t, lines[0], `"Serial No"`)
	assert.Contains(t, w.Body.String(), `"S1"`)
	assert.Contains(t, w.Body.String(), `"S2"`)
}

func TestClearHistoryRequiresPasscode(t *testing.T) {
	h, st, _ := newTestHandler(t)
	router := setupHistoryRouter(h)
	fulfillTestRequest(t, st, "S1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/history/clear-all", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/history/clear-all", nil)
	req.Header.Set(passcodeHeader, testPasscode)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"cleared","deleted_count":1}`, w.Body.String())

	records, _, err := st.ListHistory(context.Background(), store.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)
}
