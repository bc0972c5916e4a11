package cleanup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"container-request-board/config"
	"container-request-board/internal/erp"
	"container-request-board/internal/metrics"
	"container-request-board/internal/model"
	"container-request-board/internal/store"
	"container-request-board/internal/ws"
)

// Locator answers where a container currently sits. Satisfied by the
// ERP client.
type Locator interface {
	ProductionLocations(ctx context.Context) ([]string, error)
	ContainerBySerial(ctx context.Context, serialNo string) ([]erp.Row, error)
}

// Broadcaster pushes events to connected board clients.
type Broadcaster interface {
	Broadcast(v any)
}

// Notifier queues fulfillment notices for a serial number.
type Notifier interface {
	Dispatch(serialNo string)
}

// RunRecord captures the outcome of one cleanup cycle for the run log.
type RunRecord struct {
	Time    time.Time `json:"time"`
	Trigger string    `json:"trigger"`
	Removed []string  `json:"removed"`
	Error   string    `json:"error,omitempty"`
}

// Status reports the service state for the status endpoint.
type Status struct {
	Enabled         bool       `json:"enabled"`
	Running         bool       `json:"running"`
	IntervalSeconds int        `json:"interval_seconds"`
	SafetyLimit     int        `json:"safety_limit"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

const runLogSize = 50

// Service periodically removes requests whose containers have already
// reached a production location.
type Service struct {
	cfg     *config.CleanupConfig
	store   store.Store
	locator Locator
	hub     Broadcaster
	notify  Notifier
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	lastRun *time.Time
	lastErr string
	runLog  []RunRecord
}

// NewService creates a cleanup service. notify may be nil when push
// delivery is not configured.
func NewService(cfg *config.CleanupConfig, st store.Store, locator Locator, hub Broadcaster, notify Notifier) *Service {
	return &Service{
		cfg:     cfg,
		store:   st,
		locator: locator,
		hub:     hub,
		notify:  notify,
		metrics: metrics.New(),
	}
}

// Run starts the periodic cleanup loop plus a daily history prune. It
// returns when ctx is cancelled. Manual cycles via RunManual work even
// when the loop is disabled.
func (s *Service) Run(ctx context.Context) {
	pruneTicker := time.NewTicker(24 * time.Hour)
	defer pruneTicker.Stop()

	if !s.cfg.Enabled {
		log.Println("cleanup: automatic loop disabled")
		for {
			select {
			case <-ctx.Done():
				return
			case <-pruneTicker.C:
				s.pruneHistory(ctx)
			}
		}
	}

	log.Println("Starting cleanup service...")
	s.runOnce(ctx, "auto")

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cleanup service shutting down.")
			return
		case <-timer.C:
			s.runOnce(ctx, "auto")
			timer.Reset(s.cfg.Interval)
		case <-pruneTicker.C:
			s.pruneHistory(ctx)
		}
	}
}

// RunManual executes a single cleanup cycle on demand and returns the
// serial numbers removed.
func (s *Service) RunManual(ctx context.Context) ([]string, error) {
	return s.runOnce(ctx, "manual")
}

// Status returns a snapshot of the service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Enabled:         s.cfg.Enabled,
		Running:         s.running,
		IntervalSeconds: s.cfg.IntervalSeconds,
		SafetyLimit:     s.cfg.SafetyLimit,
		LastRun:         s.lastRun,
		LastError:       s.lastErr,
	}
}

// RunLog returns recent cycle records, newest first.
func (s *Service) RunLog() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, len(s.runLog))
	copy(out, s.runLog)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Service) runOnce(ctx context.Context, trigger string) ([]string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("cleanup cycle already in progress")
	}
	s.running = true
	s.mu.Unlock()

	removed, err := s.cycle(ctx, trigger)

	now := time.Now().UTC()
	record := RunRecord{Time: now, Trigger: trigger, Removed: removed}
	s.mu.Lock()
	s.running = false
	s.lastRun = &now
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
		record.Error = err.Error()
	}
	s.runLog = append(s.runLog, record)
	if len(s.runLog) > runLogSize {
		s.runLog = s.runLog[len(s.runLog)-runLogSize:]
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.CleanupRun("error", len(removed))
		s.hub.Broadcast(map[string]any{
			"type":    ws.EventCleanupError,
			"message": err.Error(),
		})
		return removed, err
	}

	s.metrics.CleanupRun("ok", len(removed))
	s.hub.Broadcast(map[string]any{
		"type":          ws.EventCleanupComplete,
		"removed_count": len(removed),
	})
	return removed, nil
}

// cycle performs one pass over the open requests. It removes requests
// whose container has arrived at a production location.
func (s *Service) cycle(ctx context.Context, trigger string) ([]string, error) {
	log.Printf("cleanup: executing %s cycle", trigger)

	prodLocations, err := s.locator.ProductionLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching production locations: %w", err)
	}
	// An empty location list would match nothing or, worse, reflect an
	// ERP outage. Never act on it.
	if len(prodLocations) == 0 {
		return nil, fmt.Errorf("no production locations returned, aborting cycle")
	}
	prodSet := make(map[string]struct{}, len(prodLocations))
	for _, loc := range prodLocations {
		prodSet[loc] = struct{}{}
	}

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active requests: %w", err)
	}

	type candidate struct {
		serialNo string
		location string
	}
	var candidates []candidate
	for _, req := range active {
		// Put-back requests are waiting to leave production, not
		// arrive there.
		if req.RequestType == model.RequestTypePutBack {
			continue
		}
		rows, err := s.locator.ContainerBySerial(ctx, req.SerialNo)
		if err != nil {
			return nil, fmt.Errorf("locating container %s: %w", req.SerialNo, err)
		}
		if len(rows) == 0 {
			continue
		}
		location := rows[0].Str("Location")
		if _, delivered := prodSet[location]; delivered {
			candidates = append(candidates, candidate{serialNo: req.SerialNo, location: location})
		}
	}

	if len(candidates) > s.cfg.SafetyLimit {
		return nil, fmt.Errorf("cycle would remove %d requests, exceeding safety limit %d", len(candidates), s.cfg.SafetyLimit)
	}

	fulfillmentType := model.FulfillmentAutoCleanup
	if trigger == "manual" {
		fulfillmentType = model.FulfillmentManualCleanup
	}

	var removed []string
	now := time.Now().UTC()
	for _, c := range candidates {
		if _, err := s.store.FulfillRequest(ctx, c.serialNo, c.location, fulfillmentType, now); err != nil {
			log.Printf("cleanup: error fulfilling %s: %v", c.serialNo, err)
			continue
		}
		removed = append(removed, c.serialNo)
		s.metrics.RequestFulfilled(fulfillmentType)
		s.hub.Broadcast(ws.NewDeleteEvent(c.serialNo))
		if s.notify != nil {
			s.notify.Dispatch(c.serialNo)
		}
	}

	if len(removed) > 0 {
		log.Printf("cleanup: removed %d delivered requests", len(removed))
	}
	return removed, nil
}

func (s *Service) pruneHistory(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.store.PruneHistory(ctx, cutoff)
	if err != nil {
		log.Printf("cleanup: history prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("cleanup: pruned %d history records older than %s", n, cutoff.Format("2006-01-02"))
	}
}
