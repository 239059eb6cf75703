package events

// Topic constants for domain events emitted by the settlement core.
const (
	TopicBookingCreated          = "booking.created"
	TopicBookingCancelled        = "booking.cancelled"
	TopicBookingModified         = "booking.modified"
	TopicPaymentCaptureRequested = "payment.capture_requested"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicBookingCancelled,
		TopicBookingModified,
		TopicPaymentCaptureRequested,
	}
}
