package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"container-request-board/internal/cleanup"
	"container-request-board/internal/erp"
	"container-request-board/internal/metrics"
	"container-request-board/internal/store"
)

// ContainerSource answers container lookups against the ERP. Satisfied
// by the ERP client.
type ContainerSource interface {
	ContainerBySerial(ctx context.Context, serialNo string) ([]erp.Row, error)
	ContainersByPart(ctx context.Context, partNo string, activeSerials map[string]struct{}) ([]erp.Row, error)
	ContainersByMasterUnit(ctx context.Context, masterUnitKey string, activeSerials map[string]struct{}) ([]erp.Row, error)
	MasterUnitKey(ctx context.Context, masterUnitNo string) (string, error)
}

// CleanupRunner exposes the cleanup service to the API.
type CleanupRunner interface {
	RunManual(ctx context.Context) ([]string, error)
	Status() cleanup.Status
	RunLog() []cleanup.RunRecord
}

// Broadcaster pushes events to connected board clients.
type Broadcaster interface {
	Broadcast(v any)
}

// Notifier queues fulfillment notices for a serial number.
type Notifier interface {
	Dispatch(serialNo string)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	erp      ContainerSource
	cleanup  CleanupRunner
	hub      Broadcaster
	notify   Notifier
	webpush  *webpush.Options
	passcode string
	loc      *time.Location
	metrics  *metrics.Metrics
}

// NewHandler creates a new API handler. notify may be nil when push
// delivery is not configured.
func NewHandler(s store.Store, erpClient ContainerSource, runner CleanupRunner, hub Broadcaster, notify Notifier, webpushOptions *webpush.Options, passcode string, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store:    s,
		erp:      erpClient,
		cleanup:  runner,
		hub:      hub,
		notify:   notify,
		webpush:  webpushOptions,
		passcode: passcode,
		loc:      loc,
		metrics:  metrics.New(),
	}
}
