// internal/notification/metrics.go

package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Notification deliveries by channel and result",
	}, []string{"channel", "result"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notification_queue_depth",
		Help: "Deliveries waiting for a worker",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notification_breaker_state",
		Help: "Circuit breaker state per channel (0 closed, 1 half-open, 2 open)",
	}, []string{"channel"})

	notificationsCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_cleanup_deleted_total",
		Help: "Read notifications removed by the retention job",
	})
)

const (
	resultSent      = "sent"
	resultFailed    = "failed"
	resultDuplicate = "duplicate"
	resultSkipped   = "skipped"
	resultDropped   = "dropped"
	resultRejected  = "breaker_open"
)

func recordDelivery(channel, result string) {
	deliveriesTotal.WithLabelValues(channel, result).Inc()
}
