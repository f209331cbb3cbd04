package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics holds the Prometheus instruments for the payment lifecycle
type PaymentMetrics struct {
	PaymentsRegisteredTotal prometheus.Counter
	PaymentsAuthorizedTotal prometheus.Counter
	PaymentsCapturedTotal   prometheus.Counter
	PaymentsCancelledTotal  prometheus.Counter
	PaymentsFailedTotal     prometheus.Counter
	ZeroSettlementsTotal    prometheus.Counter
	HoldReleasesTotal       *prometheus.CounterVec

	RefundsTotal        prometheus.Counter
	RefundedAmountTotal prometheus.Counter

	StateConflictsTotal *prometheus.CounterVec
	ProviderCallSeconds *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on reg
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	factory := promauto.With(reg)

	return &PaymentMetrics{
		PaymentsRegisteredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_registered_total",
			Help: "Number of payments registered",
		}),
		PaymentsAuthorizedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_authorized_total",
			Help: "Number of payments confirmed as authorized",
		}),
		PaymentsCapturedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_captured_total",
			Help: "Number of payments captured",
		}),
		PaymentsCancelledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_cancelled_total",
			Help: "Number of payments cancelled before capture",
		}),
		PaymentsFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_failed_total",
			Help: "Number of payments that ended in FAILED",
		}),
		ZeroSettlementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_zero_settlements_total",
			Help: "Number of captures settled at zero without a provider call",
		}),
		HoldReleasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_hold_releases_total",
			Help: "Number of authorization hold releases by outcome",
		}, []string{"outcome"}),
		RefundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_refunds_total",
			Help: "Number of completed refunds",
		}),
		RefundedAmountTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_refunded_amount_total",
			Help: "Sum of refunded amounts in minor currency units",
		}),
		StateConflictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_state_conflicts_total",
			Help: "Number of operations rejected for being in the wrong state",
		}, []string{"operation"}),
		ProviderCallSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payments_provider_call_seconds",
			Help:    "Duration of provider gateway calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
}
