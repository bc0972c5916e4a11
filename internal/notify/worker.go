package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"container-request-board/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers fulfillment notices to operators subscribed to a
// serial number.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notify: worker %d started", id)
	for {
		select {
		case serialNo := <-wp.jobs:
			wp.sendForSerial(ctx, serialNo)
		case <-ctx.Done():
			log.Printf("notify: worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a fulfilled serial number for notification delivery.
func (wp *WorkerPool) Dispatch(serialNo string) {
	wp.jobs <- serialNo
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// sendForSerial fetches subscriptions watching the serial and pushes a
// fulfillment notice to each.
func (wp *WorkerPool) sendForSerial(ctx context.Context, serialNo string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscribed_serials ss ON ss.endpoint = push_subscriptions.endpoint").
		Where("ss.serial_no = ?", serialNo).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("notify: error fetching subscriptions for serial %s: %v", serialNo, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("notify: sending %d notifications for serial %s", len(subscriptions), serialNo)
	message := fmt.Sprintf("Container %s has been delivered.", serialNo)
	for _, sub := range subscriptions {
		wp.sendOne(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("notify: error sending to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions.
	if resp.StatusCode == http.StatusGone {
		log.Printf("notify: subscription %s expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("notify: failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
