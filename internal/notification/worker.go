package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"canteen-occupancy-backend/internal/metrics"
	"canteen-occupancy-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the workers need.
type SubscriptionStore interface {
	SubscriptionsCrossed(ctx context.Context, previous, current int) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Drop describes a fall in recorded occupancy.
type Drop struct {
	Previous int
	Current  int
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Drop
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options, logger *zap.Logger, m *metrics.Metrics) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Drop, size), // Buffered channel
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger.Named("notification"),
		metrics: m,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case drop := <-wp.jobs:
			wp.notifyDrop(ctx, drop)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a job without blocking. When every worker is busy and the
// queue is full the drop is discarded, so a stuck push service cannot stall
// the caller.
func (wp *WorkerPool) Dispatch(drop Drop) {
	select {
	case wp.jobs <- drop:
	default:
		wp.metrics.NotificationSent("dropped")
		wp.logger.Warn("notification queue full, dropping job",
			zap.Int("previous", drop.Previous),
			zap.Int("current", drop.Current),
		)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Drop {
	return wp.jobs
}

// Message renders the notification text for a drop.
func Message(drop Drop) string {
	if drop.Current == 1 {
		return "The canteen is quiet now: 1 person present."
	}
	return fmt.Sprintf("The canteen is quiet now: %d people present.", drop.Current)
}

func (wp *WorkerPool) notifyDrop(ctx context.Context, drop Drop) {
	subscriptions, err := wp.store.SubscriptionsCrossed(ctx, drop.Previous, drop.Current)
	if err != nil {
		wp.logger.Error("error fetching subscriptions",
			zap.Int("previous", drop.Previous),
			zap.Int("current", drop.Current),
			zap.Error(err),
		)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("sending notifications",
		zap.Int("count", len(subscriptions)),
		zap.Int("occupancy", drop.Current),
	)

	payload := []byte(Message(drop))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.NotificationSent("failed")
		wp.logger.Warn("error sending notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.metrics.NotificationSent("expired")
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	wp.metrics.NotificationSent("sent")
}
