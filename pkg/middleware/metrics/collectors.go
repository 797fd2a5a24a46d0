package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)
)

// Exchange collectors. Exported so tests can read them with prometheus/testutil.
var (
	PendingExchanges = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bridge_pending_exchanges", Help: "exchanges dispatched to the core and not yet completed"},
	)

	ExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bridge_exchanges_total", Help: "finished exchanges by outcome"},
		[]string{"outcome"},
	)

	ExchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_exchange_duration_seconds",
			Help:    "time from dispatch to completion.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ResponsesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bridge_responses_dropped_total", Help: "core responses that matched no pending exchange"},
		[]string{"reason"},
	)

	RequestsAborted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bridge_requests_aborted_total", Help: "requests whose body never completed"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsToUri,
		totalHttpRequests,
		PendingExchanges,
		ExchangesTotal,
		ExchangeDuration,
		ResponsesDropped,
		RequestsAborted,
	)
}

func SetPending(n int) { PendingExchanges.Set(float64(n)) }

func ObserveExchange(outcome string, d time.Duration) {
	ExchangesTotal.WithLabelValues(outcome).Inc()
	ExchangeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func ResponseDropped(reason string) { ResponsesDropped.WithLabelValues(reason).Inc() }

func RequestAborted() { RequestsAborted.Inc() }
