package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instgate_orders_total",
		Help: "The total number of orders processed",
	}, []string{"status", "market"})

	RateLimitRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "instgate_rate_limit_rejects_total",
		Help: "Requests rejected by the per-credential rate limiter",
	})

	OnboardingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instgate_onboardings_total",
		Help: "Institutional onboarding attempts by outcome",
	}, []string{"status", "tier"})

	BulkBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "instgate_bulk_batch_size",
		Help:    "Order count of accepted bulk batches",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 2000, 5000},
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "instgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ExecutorBreakerOpen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "instgate_executor_breaker_open_total",
		Help: "Orders rejected locally while the executor circuit breaker is open",
	})
)
