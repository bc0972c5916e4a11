package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-request-board/internal/erp"
)

func setupERPRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/api/parts/:part_no/containers", h.GetContainersByPart)
	r.GET("/api/containers/:serial_no", h.GetContainerBySerial)
	r.GET("/api/master-units/:master_unit/containers", h.GetContainersByMasterUnit)
	r.POST("/api/cleanup/manual", h.ManualCleanup)
	r.GET("/api/cleanup/status", h.CleanupStatus)
	return r
}

func TestGetContainersByPart(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.erp = &fakeERP{containers: map[string][]erp.Row{
		"P-100": {{"Serial_No": "S1", "Location": "WH-01", "isRequested": false}},
	}}
	router := setupERPRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/parts/P-100/containers", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"S1"`)
	assert.Contains(t, w.Body.String(), `"part_no":"P-100"`)
}

func TestGetContainerBySerialNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := setupERPRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/containers/NOPE", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetContainersByMasterUnit(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.erp = &fakeERP{
		masterKeys: map[string]string{"MU-1": "12345"},
		containers: map[string][]erp.Row{
			"12345": {{"Serial_No": "S1"}, {"Serial_No": "S2"}},
		},
	}
	router := setupERPRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/master-units/MU-1/containers", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"S2"`)

	// Unknown master unit fails the key lookup.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/master-units/MU-9/containers", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestManualCleanupEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.cleanup = &fakeRunner{removed: []string{"S1", "S2"}}
	router := setupERPRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/cleanup/manual", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"completed","removed":["S1","S2"],"removed_count":2}`, w.Body.String())
}

func TestManualCleanupEndpointError(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.cleanup = &fakeRunner{err: assert.AnError}
	router := setupERPRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/cleanup/manual", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCleanupStatusEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := setupERPRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/cleanup/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":true`)
}
