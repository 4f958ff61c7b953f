package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sales_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sales_aggregation_duration_seconds",
		Help:    "Duration of analytics aggregations",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation"})

	datasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_dataset_records",
		Help: "Number of invoice lines currently loaded",
	})

	storageWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_storage_writes_total",
		Help: "Dataset saves by resulting format",
	}, []string{"format"})

	classifierLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_classifier_loads_total",
		Help: "Product classifier loads by outcome",
	}, []string{"result"})
)

func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TimeAggregation starts a timer for operation; call the result when done.
func TimeAggregation(operation string) func() {
	timer := prometheus.NewTimer(aggregationDuration.WithLabelValues(operation))
	return func() { timer.ObserveDuration() }
}

func SetDatasetRecords(n int) {
	datasetRecords.Set(float64(n))
}

// CountStorageWrite records a save outcome: a format name or "failed".
func CountStorageWrite(outcome string) {
	storageWritesTotal.WithLabelValues(outcome).Inc()
}

func CountClassifierLoad(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	classifierLoadsTotal.WithLabelValues(result).Inc()
}
