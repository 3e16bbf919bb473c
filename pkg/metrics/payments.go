package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts payment notification and gateway outcomes.
type PaymentMetrics struct {
	notifications *prometheus.CounterVec
	gatewayErrors *prometheus.CounterVec
}

// Notification outcome labels.
const (
	NotificationApplied   = "applied"
	NotificationDuplicate = "duplicate"
	NotificationRejected  = "rejected"
	NotificationFailed    = "failed"
)

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Payment notifications grouped by handling outcome.",
	}, []string{"outcome"})
	gatewayErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_errors_total",
		Help: "Failed calls to the payment gateway.",
	}, []string{"operation"})
	reg.MustRegister(notifications, gatewayErrors)
	return &PaymentMetrics{
		notifications: notifications,
		gatewayErrors: gatewayErrors,
	}
}

// IncNotification counts a processed notification by outcome.
func (p *PaymentMetrics) IncNotification(outcome string) {
	if p == nil || p.notifications == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	p.notifications.WithLabelValues(outcome).Inc()
}

// IncGatewayError counts a failed gateway call for the named operation.
func (p *PaymentMetrics) IncGatewayError(operation string) {
	if p == nil || p.gatewayErrors == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	p.gatewayErrors.WithLabelValues(operation).Inc()
}
