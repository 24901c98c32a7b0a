package search

import "github.com/prometheus/client_golang/prometheus"

var indexOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cratedig",
	Subsystem: "search",
	Name:      "index_ops",
}, []string{"op", "result"})

var findDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "cratedig",
	Subsystem: "search",
	Name:      "find_duration_ms",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
})

var workerDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "cratedig",
	Subsystem: "search",
	Name:      "worker_dropped_jobs",
})

// Metrics lists the package collectors for registration by the binary.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{indexOps, findDuration, workerDropped}
}
