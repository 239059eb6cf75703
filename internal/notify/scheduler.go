package notify

import (
	"context"

	"github.com/noah-isme/backend-travio/internal/events"
	"github.com/noah-isme/backend-travio/internal/queue"
	"github.com/noah-isme/backend-travio/internal/store"
)

// QueueScheduler implements events.DeliveryScheduler by fanning emitted
// events out to the async worker queues.
type QueueScheduler struct {
	Queue       queue.Enqueuer
	MaxAttempts int
}

// Schedule enqueues the follow-up tasks for the event. The event id doubles
// as the deduplication key, so a re-emitted event never double-enqueues.
func (s QueueScheduler) Schedule(ctx context.Context, event store.DomainEvent) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 6
	}
	eventID := store.UUIDString(event.ID)
	if err := s.Queue.Enqueue(ctx, queue.Task{
		Kind:           queue.KindBookingNotification,
		Payload:        event.Payload,
		IdempotencyKey: eventID,
		MaxAttempts:    attempts,
	}); err != nil {
		return err
	}
	if event.Topic == events.TopicBookingCreated {
		return s.Queue.Enqueue(ctx, queue.Task{
			Kind:           queue.KindPaymentCapture,
			Payload:        event.Payload,
			IdempotencyKey: "capture:" + eventID,
			MaxAttempts:    attempts,
		})
	}
	return nil
}
