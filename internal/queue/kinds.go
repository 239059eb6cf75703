package queue

// Task kinds processed by the settlement worker.
const (
	// KindBookingNotification emails booking lifecycle updates to the requester.
	KindBookingNotification = "booking-notification"
	// KindPaymentCapture asks the payment provider to capture the final amount.
	KindPaymentCapture = "payment-capture"
)
