package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BookingsTotal counts settled bookings by vertical and outcome.
	BookingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_total",
		Help: "Count of booking settlement outcomes.",
	}, []string{"vertical", "result"})
	// SettlementDuration records end-to-end settlement latency in milliseconds.
	SettlementDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_ms",
		Help:    "Latency for booking settlements in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"vertical"})
	// RefcodeRetriesTotal counts reference code mints repeated after a storage conflict.
	RefcodeRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refcode_retries_total",
		Help: "Number of reference code mints retried after a uniqueness conflict.",
	})
	// InventoryConflictsTotal counts availability rejections by vertical and reason.
	InventoryConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_conflicts_total",
		Help: "Count of availability rejections.",
	}, []string{"vertical", "reason"})
	// BookingReconciliationTotal counts post-commit steps that failed and need reconciliation.
	BookingReconciliationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_reconciliation_total",
		Help: "Count of post-commit settlement steps that failed.",
	}, []string{"stage"})
	// PaymentCaptureTotal counts capture intent outcomes by provider.
	PaymentCaptureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_capture_total",
		Help: "Count of payment capture intent outcomes.",
	}, []string{"provider", "result"})
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_total",
		Help: "Count of processed payment webhooks by outcome.",
	}, []string{"provider", "result"})
	// LoyaltyPointsTotal tracks point movements by direction.
	LoyaltyPointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loyalty_points_total",
		Help: "Loyalty points redeemed and earned through settlements.",
	}, []string{"direction"})
)

// MustRegisterDomainMetrics registers the booking-domain Prometheus collectors.
func MustRegisterDomainMetrics(reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		mustRegisterCollector(reg, BookingsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingsTotal = v
			}
		})
		mustRegisterCollector(reg, SettlementDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SettlementDuration = v
			}
		})
		mustRegisterCollector(reg, RefcodeRetriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RefcodeRetriesTotal = v
			}
		})
		mustRegisterCollector(reg, InventoryConflictsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InventoryConflictsTotal = v
			}
		})
		mustRegisterCollector(reg, BookingReconciliationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingReconciliationTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentCaptureTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentCaptureTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, LoyaltyPointsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LoyaltyPointsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
