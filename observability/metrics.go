package observability

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VestingMetrics records engine activity for the RPC surface.
type VestingMetrics struct {
	PoolsCreated    *prometheus.CounterVec
	ReservedTotal   prometheus.Gauge
	Claims          prometheus.Counter
	ClaimedAmount   prometheus.Counter
	Batches         prometheus.Counter
	RequestLatency  *prometheus.HistogramVec
	RequestFailures *prometheus.CounterVec
}

var (
	vestingMetricsOnce sync.Once
	vestingRegistry    *VestingMetrics
)

// Metrics returns the lazily-initialised vesting metrics registry.
func Metrics() *VestingMetrics {
	vestingMetricsOnce.Do(func() {
		vestingRegistry = &VestingMetrics{
			PoolsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dfv",
				Subsystem: "vesting",
				Name:      "pools_created_total",
				Help:      "Total vesting pools created, segmented by category.",
			}, []string{"category"}),
			ReservedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "dfv",
				Subsystem: "vesting",
				Name:      "reserved_total",
				Help:      "Sum of all pool amounts ever created, in base units.",
			}),
			Claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dfv",
				Subsystem: "vesting",
				Name:      "claims_total",
				Help:      "Total successful claim settlements.",
			}),
			ClaimedAmount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dfv",
				Subsystem: "vesting",
				Name:      "claimed_amount_total",
				Help:      "Total amount transferred by claims, in base units.",
			}),
			Batches: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dfv",
				Subsystem: "vesting",
				Name:      "batches_total",
				Help:      "Total committed pool-creation batches.",
			}),
			RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dfv",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			RequestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dfv",
				Subsystem: "rpc",
				Name:      "request_failures_total",
				Help:      "Total JSON-RPC failures segmented by method and code.",
			}, []string{"method", "code"}),
		}
		prometheus.MustRegister(
			vestingRegistry.PoolsCreated,
			vestingRegistry.ReservedTotal,
			vestingRegistry.Claims,
			vestingRegistry.ClaimedAmount,
			vestingRegistry.Batches,
			vestingRegistry.RequestLatency,
			vestingRegistry.RequestFailures,
		)
	})
	return vestingRegistry
}

// AmountToFloat converts a base-unit amount for gauge/counter use. Precision
// loss past 2^53 is acceptable for operational metrics.
func AmountToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
