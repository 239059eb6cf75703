package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/lock"
)

// NotificationWorker sends queued booking notification emails. Deliveries are
// locked per task key so a redelivered task cannot send twice concurrently.
type NotificationWorker struct {
	Mail    common.EmailSender
	Locker  lock.Locker
	LockTTL time.Duration
}

// Handle processes one booking-notification task payload.
func (w NotificationWorker) Handle(ctx context.Context, key string, payload []byte) error {
	if w.Mail == nil {
		return errors.New("notify worker: mail sender not configured")
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("notify worker: decode payload: %w", err)
	}
	to := extractRecipient(body)
	if to == "" {
		return nil
	}
	ttl := w.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	send := func(context.Context) error {
		ref, _ := body["referenceCode"].(string)
		subject := "Booking update"
		if ref != "" {
			subject = fmt.Sprintf("Booking %s update", ref)
		}
		return w.Mail.Send(to, subject, bodyFor("booking.notification", body, time.Now()))
	}
	if w.Locker.R == nil || key == "" {
		return send(ctx)
	}
	return w.Locker.WithLock(ctx, "lock:notify:"+key, ttl, send)
}
