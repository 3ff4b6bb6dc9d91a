package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics records engine operation activity for the gateway's
// /metrics endpoint.
type StakingMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	staked     *prometheus.GaugeVec
}

var (
	stakingOnce sync.Once
	stakingReg  *StakingMetrics
)

// Metrics returns the lazily-initialised staking metrics registry.
func Metrics() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingReg = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			staked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "staked_nfts",
				Help:      "Number of NFTs currently escrowed, per pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(stakingReg.operations, stakingReg.latency, stakingReg.staked)
	})
	return stakingReg
}

// Observe records one operation with its outcome and duration.
func (m *StakingMetrics) Observe(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetStakedCount updates the escrowed NFT gauge for one pool.
func (m *StakingMetrics) SetStakedCount(pool string, count uint64) {
	if m == nil {
		return
	}
	m.staked.WithLabelValues(pool).Set(float64(count))
}
