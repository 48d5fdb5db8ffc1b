package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_offers_created_total",
			Help: "Total number of match requests created",
		},
	)

	acceptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_accepts_total",
			Help: "Accept attempts by outcome",
		},
		[]string{"result"},
	)

	confirmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_confirms_total",
			Help: "Confirm attempts by outcome",
		},
		[]string{"result"},
	)

	candidatesPerRequest = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_candidates_per_request",
			Help:    "Eligible candidates found per match request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	matchScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_candidate_scores",
			Help:    "Distribution of notified candidate scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	notifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_notify_failures_total",
			Help: "Notifications the dispatcher could not take",
		},
		[]string{"kind"},
	)

	sweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_requests_swept_total",
			Help: "Requests rewritten to EXPIRED by the sweeper",
		},
		[]string{"from"},
	)
)

func recordOfferCreated(candidates int) {
	offersCreatedTotal.Inc()
	candidatesPerRequest.Observe(float64(candidates))
}

func recordScore(score float64) {
	matchScores.Observe(score)
}

// outcome maps an operation error to a metric label
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func recordAccept(err error) {
	acceptsTotal.WithLabelValues(outcome(err)).Inc()
}

func recordConfirm(err error) {
	confirmsTotal.WithLabelValues(outcome(err)).Inc()
}

func recordNotifyFailure(kind string) {
	notifyFailuresTotal.WithLabelValues(kind).Inc()
}

func recordSwept(from Status, n int) {
	sweptTotal.WithLabelValues(string(from)).Add(float64(n))
}
