package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics records pool operation activity: request counts segmented by
// opcode and outcome, latency, swap volume, and accrued fee volume.
type PoolMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	swapVolume *prometheus.CounterVec
	feeVolume  *prometheus.CounterVec
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// Pool returns the lazily-initialised pool metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Total pool operations segmented by opcode and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for pool operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			swapVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "swap_volume_total",
				Help:      "Input token volume moved through swaps, by token.",
			}, []string{"token"}),
			feeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "pool",
				Name:      "fee_volume_total",
				Help:      "Fee units accrued, by token and fee class.",
			}, []string{"token", "class"}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.latency,
			poolRegistry.swapVolume,
			poolRegistry.feeVolume,
		)
	})
	return poolRegistry
}

// ObserveOperation records one completed operation.
func (m *PoolMetrics) ObserveOperation(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	op = normalizeLabel(op)
	m.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// AddSwapVolume accumulates the input leg of a committed swap.
func (m *PoolMetrics) AddSwapVolume(token string, units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.swapVolume.WithLabelValues(normalizeLabel(token)).Add(units)
}

// AddFeeVolume accumulates accrued fee units for one class.
func (m *PoolMetrics) AddFeeVolume(token, class string, units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.feeVolume.WithLabelValues(normalizeLabel(token), normalizeLabel(class)).Add(units)
}

// OperationCounter exposes one operations series for assertions in tests.
func (m *PoolMetrics) OperationCounter(op, outcome string) prometheus.Counter {
	return m.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome))
}

// SwapVolumeCounter exposes one swap-volume series for assertions in tests.
func (m *PoolMetrics) SwapVolumeCounter(token string) prometheus.Counter {
	return m.swapVolume.WithLabelValues(normalizeLabel(token))
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
