package board

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patrickmn/go-cache"

	"container-request-board/config"
	"container-request-board/internal/model"
	"container-request-board/internal/ws"
)

// ErrBadPasscode is returned when a pick-up completion is attempted
// with the wrong operator passcode. No server call is made in that
// case.
var ErrBadPasscode = errors.New("operator passcode does not match")

// ErrNotOnBoard is returned when the serial is not among the rows.
var ErrNotOnBoard = errors.New("request is not on the board")

const mirrorKey = "rows"

func init() {
	gob.Register([]model.Request{})
}

// Board mirrors the open requests of a tracker service. Rows are kept
// in request-time order and reconciled from two sources: whole-list
// polls and incremental websocket events. A version counter advances
// on every event so a poll result that raced an event can be detected
// and discarded.
type Board struct {
	cfg    *config.BoardConfig
	client *http.Client

	mu      sync.Mutex
	rows    []model.Request
	version uint64

	mirror *cache.Cache
}

// New creates a board client for the service at cfg.BaseURL. When a
// mirror file from a previous run exists, its rows are used until the
// first refresh lands.
func New(cfg *config.BoardConfig) *Board {
	b := &Board{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		mirror: cache.New(cache.NoExpiration, 0),
	}
	if cfg.MirrorFile != "" {
		if err := b.mirror.LoadFile(cfg.MirrorFile); err == nil {
			if v, ok := b.mirror.Get(mirrorKey); ok {
				if rows, ok := v.([]model.Request); ok {
					b.rows = rows
					sortRows(b.rows)
				}
			}
		}
	}
	return b
}

// Rows returns a snapshot of the board in request-time order.
func (b *Board) Rows() []model.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Request, len(b.rows))
	copy(out, b.rows)
	return out
}

// Version returns the current mutation counter.
func (b *Board) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

func sortRows(rows []model.Request) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].ReqTime.Equal(rows[j].ReqTime) {
			return rows[i].ReqTime.Before(rows[j].ReqTime)
		}
		return rows[i].SerialNo < rows[j].SerialNo
	})
}

// Refresh fetches the full request list and replaces the board with
// it. A network or decode error leaves the current rows untouched. If
// an event arrived while the fetch was in flight, the fetched list is
// stale and is discarded; the next poll will catch up.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	start := b.version
	b.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/api/requests", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching requests: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching requests: unexpected status %d", resp.StatusCode)
	}

	var fetched []model.Request
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return fmt.Errorf("decoding requests: %w", err)
	}
	sortRows(fetched)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.version != start {
		return nil
	}
	// A poll that changed the board counts as a mutation too, so
	// watchers keyed on Version see changes that arrived without a
	// websocket event.
	if !rowsEqual(b.rows, fetched) {
		b.version++
	}
	b.rows = fetched
	b.saveMirrorLocked()
	return nil
}

func rowsEqual(a, b []model.Request) bool {
	if len(a) != len(b) {
		return false
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// ApplyEvent reconciles one websocket event into the board. Unknown
// event shapes are ignored.
func (b *Board) ApplyEvent(data []byte) {
	var envelope struct {
		Type     string `json:"type"`
		SerialNo string `json:"serial_no"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case ws.EventDelete:
		b.removeSerial(envelope.SerialNo)
	case ws.EventCleanupComplete, ws.EventCleanupError:
		// Informational only. Any removals arrive as delete events.
	case "":
		var req model.Request
		if err := json.Unmarshal(data, &req); err != nil || req.SerialNo == "" {
			return
		}
		b.upsert(req)
	}
}

// upsert merges a pushed request into the board. An existing row with
// the same serial is updated in place, so a repeated push can never
// duplicate a row.
func (b *Board) upsert(req model.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
	for i := range b.rows {
		if b.rows[i].SerialNo == req.SerialNo {
			b.rows[i] = req
			sortRows(b.rows)
			b.saveMirrorLocked()
			return
		}
	}
	b.rows = append(b.rows, req)
	sortRows(b.rows)
	b.saveMirrorLocked()
}

func (b *Board) removeSerial(serialNo string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].SerialNo == serialNo {
			b.version++
			b.rows = append(b.rows[:i], b.rows[i+1:]...)
			b.saveMirrorLocked()
			return
		}
	}
}

// takeSerial removes and returns a row for an optimistic completion.
func (b *Board) takeSerial(serialNo string) (model.Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].SerialNo == serialNo {
			row := b.rows[i]
			b.version++
			b.rows = append(b.rows[:i], b.rows[i+1:]...)
			b.saveMirrorLocked()
			return row, true
		}
	}
	return model.Request{}, false
}

// Complete marks a request as done: the row is hidden immediately and
// the deletion is sent to the service. If the service rejects it, the
// row comes back. Pick-up rows are checked against the configured
// passcode before any network traffic happens.
func (b *Board) Complete(ctx context.Context, serialNo, passcode string) error {
	b.mu.Lock()
	var found *model.Request
	for i := range b.rows {
		if b.rows[i].SerialNo == serialNo {
			found = &b.rows[i]
			break
		}
	}
	if found == nil {
		b.mu.Unlock()
		return ErrNotOnBoard
	}
	needsPasscode := found.RequestType == model.RequestTypePickUp
	b.mu.Unlock()

	if needsPasscode && passcode != b.cfg.Passcode {
		return ErrBadPasscode
	}

	row, ok := b.takeSerial(serialNo)
	if !ok {
		return ErrNotOnBoard
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.cfg.BaseURL+"/api/requests/"+serialNo, nil)
	if err != nil {
		b.upsert(row)
		return err
	}
	if needsPasscode {
		req.Header.Set("X-Operator-Passcode", passcode)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.upsert(row)
		return fmt.Errorf("completing request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.upsert(row)
		return fmt.Errorf("completing request: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Run polls the service and listens for websocket events until ctx is
// cancelled. The websocket connection is re-dialed with a flat backoff
// when it drops; polling carries the board through the gaps.
func (b *Board) Run(ctx context.Context) {
	go b.listen(ctx)

	if err := b.Refresh(ctx); err != nil {
		log.Printf("board: initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.SaveMirror()
			return
		case <-ticker.C:
			if err := b.Refresh(ctx); err != nil {
				log.Printf("board: refresh failed: %v", err)
			}
		}
	}
}

func (b *Board) listen(ctx context.Context) {
	wsURL := strings.Replace(b.cfg.BaseURL, "http", "ws", 1) + "/ws"
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			log.Printf("board: websocket dial failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		b.readEvents(ctx, conn)
	}
}

// readEvents pumps events from one connection until it drops or ctx is
// cancelled. The cancellation watcher is tied to this connection and
// exits with it, so reconnects do not pile up goroutines.
func (b *Board) readEvents(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.ApplyEvent(data)
	}
}

// saveMirrorLocked updates the in-memory mirror. Callers hold b.mu.
func (b *Board) saveMirrorLocked() {
	rows := make([]model.Request, len(b.rows))
	copy(rows, b.rows)
	b.mirror.Set(mirrorKey, rows, cache.NoExpiration)
}

// SaveMirror persists the board to the configured mirror file so a
// restart starts from the last known rows.
func (b *Board) SaveMirror() {
	if b.cfg.MirrorFile == "" {
		return
	}
	if err := b.mirror.SaveFile(b.cfg.MirrorFile); err != nil {
		log.Printf("board: saving mirror: %v", err)
	}
}
