package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"container-request-board/internal/cleanup"
	"container-request-board/internal/erp"
	"container-request-board/internal/model"
	"container-request-board/internal/store"
	"container-request-board/internal/ws"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type fakeHub struct {
	events []any
}

func (f *fakeHub) Broadcast(v any) {
	f.events = append(f.events, v)
}

type fakeERP struct {
	containers map[string][]erp.Row
	masterKeys map[string]string
}

func (f *fakeERP) ContainerBySerial(ctx context.Context, serialNo string) ([]erp.Row, error) {
	return f.containers[serialNo], nil
}

func (f *fakeERP) ContainersByPart(ctx context.Context, partNo string, activeSerials map[string]struct{}) ([]erp.Row, error) {
	return f.containers[partNo], nil
}

func (f *fakeERP) ContainersByMasterUnit(ctx context.Context, masterUnitKey string, activeSerials map[string]struct{}) ([]erp.Row, error) {
	return f.containers[masterUnitKey], nil
}

func (f *fakeERP) MasterUnitKey(ctx context.Context, masterUnitNo string) (string, error) {
	key, ok := f.masterKeys[masterUnitNo]
	if !ok {
		return "", assert.AnError
	}
	return key, nil
}

type fakeRunner struct {
	removed []string
	err     error
}

func (f *fakeRunner) RunManual(ctx context.Context) ([]string, error) {
	return f.removed, f.err
}

func (f *fakeRunner) Status() cleanup.Status {
	return cleanup.Status{Enabled: true}
}

func (f *fakeRunner) RunLog() []cleanup.RunRecord {
	return nil
}

const testPasscode = "1234"

func newTestHandler(t *testing.T) (*Handler, store.Store, *fakeHub) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Request{}, &model.RequestHistory{},
		&model.PushSubscription{}, &model.SubscribedSerial{},
	))
	st := store.NewGormStore(db, 30)
	hub := &fakeHub{}
	h := NewHandler(st, &fakeERP{}, &fakeRunner{}, hub, nil, nil, testPasscode, time.UTC)
	return h, st, hub
}

func setupRequestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/api/requests", h.GetRequests)
	r.POST("/api/requests", h.CreateRequest)
	r.DELETE("/api/requests/:serial_no", h.DeleteRequest)
	return r
}

func createTestRequest(t *testing.T, st store.Store, serialNo, requestType string) {
	t.Helper()
	req := &model.Request{
		SerialNo:    serialNo,
		PartNo:      "P-100",
		Quantity:    decimal.NewFromInt(5),
		Location:    "WH-01",
		DeliverTo:   "LINE-1",
		ReqTime:     time.Now().UTC().Add(-time.Hour),
		RequestType: requestType,
	}
	require.NoError(t, st.CreateRequest(context.Background(), req))
}

func TestGetRequestsEmpty(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := setupRequestRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/requests", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCreateRequest(t *testing.T) {
	h, st, hub := newTestHandler(t)
	router := setupRequestRouter(h)

	body := `{"serial_no":"S100","part_no":"P-100","quantity":"12.5","location":"WH-01","deliver_to":"LINE-2"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/requests", bytes.NewBufferString(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "S100", created.SerialNo)
	assert.Equal(t, model.RequestTypePickUp, created.RequestType)

	stored, err := st.GetBySerial(context.Background(), "S100")
	require.NoError(t, err)
	assert.Equal(t, "LINE-2", stored.DeliverTo)

	// The new request was announced to connected boards.
	require.Len(t, hub.events, 1)
	announced, ok := hub.events[0].(model.Request)
	require.True(t, ok)
	assert.Equal(t, "S100", announced.SerialNo)
}

func TestCreateRequestDuplicateSerial(t *testing.T) {
	h, st, _ := newTestHandler(t)
	router := setupRequestRouter(h)
	createTestRequest(t, st, "S100", model.RequestTypePickUp)

	body := `{"serial_no":"S100","part_no":"P-100","deliver_to":"LINE-2"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/requests", bytes.NewBufferString(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateRequestInvalidType(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := setupRequestRouter(h)

	body := `{"serial_no":"S100","part_no":"P-100","deliver_to":"LINE-2","request_type":"TELEPORT"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/requests", bytes.NewBufferString(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteRequestRequiresPasscodeForPickUp(t *testing.T) {
	h, st, hub := newTestHandler(t)
	router := setupRequestRouter(h)
	createTestRequest(t, st, "S100", model.RequestTypePickUp)

	// No passcode header.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/requests/S100", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, hub.events)

	// Wrong passcode.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/requests/S100", nil)
	req.Header.Set(passcodeHeader, "0000")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Correct passcode archives the request and broadcasts the delete.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/requests/S100", nil)
	req.Header.Set(passcodeHeader, testPasscode)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := st.GetBySerial(context.Background(), "S100")
	assert.ErrorIs(t, err, store.ErrNotFound)

	records, _, err := st.ListHistory(context.Background(), store.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.FulfillmentManualDelete, records[0].FulfillmentType)

	require.Len(t, hub.events, 1)
	ev, ok := hub.events[0].(ws.DeleteEvent)
	require.True(t, ok)
	assert.Equal(t, "S100", ev.SerialNo)
}

func TestDeleteRequestPutBackNeedsNoPasscode(t *testing.T) {
	h, st, _ := newTestHandler(t)
	router := setupRequestRouter(h)
	createTestRequest(t, st, "S200", model.RequestTypePutBack)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/requests/S200", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	_, err := st.GetBySerial(context.Background(), "S200")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRequestNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := setupRequestRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/requests/NOPE", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
