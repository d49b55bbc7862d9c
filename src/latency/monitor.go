package latency

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the percentile/min/mean/max summary over the current
// reservoir window.
type Stats struct {
	Count int
	Min   int64
	Mean  int64
	Max   int64
	P50   int64
	P95   int64
	P99   int64
	P999  int64
}

// ViolationStats summarizes the violation log.
type ViolationStats struct {
	Count          int
	TotalProcessed int64
	RatePercent    float64
}

// Monitor maintains a bounded reservoir of the most recent N completed
// timelines (default 10,000), computes percentile statistics on demand,
// and tracks a bounded violation log. It also feeds a Prometheus
// histogram and counters for operator dashboards; those are additive,
// not a replacement for the reservoir, since Prometheus histograms
// cannot report arbitrary percentiles of exactly the last N samples.
type Monitor struct {
	mu            sync.Mutex
	capacity      int
	latencies     []int64 // ring buffer of end-to-end nanos
	writeIdx      int
	filled        bool
	total         int64
	thresholds    Thresholds
	violations    []Violation
	maxViolations int

	promHistogram prometheus.Histogram
	promTrades    prometheus.Counter
	promCancels   prometheus.Counter
	promRejects   prometheus.Counter
}

// NewMonitor constructs a Monitor with the given reservoir capacity
// (<=0 defaults to 10,000) and latency thresholds.
func NewMonitor(capacity int, thresholds Thresholds, registerer prometheus.Registerer) *Monitor {
	if capacity <= 0 {
		capacity = 10_000
	}
	m := &Monitor{
		capacity:      capacity,
		latencies:     make([]int64, capacity),
		thresholds:    thresholds,
		maxViolations: 1000,
	}

	m.promHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "matchcore",
		Subsystem: "admission",
		Name:      "end_to_end_latency_seconds",
		Help:      "End-to-end admission latency from arrival to response.",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 20),
	})
	m.promTrades = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matchcore", Subsystem: "engine", Name: "trades_executed_total",
		Help: "Total trades executed across all instruments.",
	})
	m.promCancels = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matchcore", Subsystem: "engine", Name: "orders_cancelled_total",
		Help: "Total orders cancelled by explicit cancel or quote removal requests.",
	})
	m.promRejects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matchcore", Subsystem: "engine", Name: "orders_rejected_total",
		Help: "Total orders rejected (validation or FOK).",
	})

	if registerer != nil {
		registerer.MustRegister(m.promHistogram, m.promTrades, m.promCancels, m.promRejects)
	}

	return m
}

// RecordTimeline folds a completed timeline into the reservoir, updates
// the Prometheus histogram, and checks/records threshold violations.
func (m *Monitor) RecordTimeline(t *Timeline) *Violation {
	e2e := t.EndToEndNanos()

	m.mu.Lock()
	m.latencies[m.writeIdx] = e2e
	m.writeIdx = (m.writeIdx + 1) % m.capacity
	if m.writeIdx == 0 {
		m.filled = true
	}
	m.total++
	v := t.CheckThresholds(m.thresholds)
	if v != nil {
		m.violations = append(m.violations, *v)
		if len(m.violations) > m.maxViolations {
			m.violations = m.violations[len(m.violations)-m.maxViolations:]
		}
	}
	m.mu.Unlock()

	m.promHistogram.Observe(float64(e2e) / 1e9)
	return v
}

// IncTrades/IncCancels/IncRejects feed the Prometheus counters wired
// alongside the reservoir.
func (m *Monitor) IncTrades(n int)  { m.promTrades.Add(float64(n)) }
func (m *Monitor) IncCancels(n int) { m.promCancels.Add(float64(n)) }
func (m *Monitor) IncRejects(n int) { m.promRejects.Add(float64(n)) }

// Stats computes percentile/min/mean/max over the current window.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	if m.filled {
		n = m.capacity
	} else {
		n = m.writeIdx
	}
	if n == 0 {
		return Stats{}
	}

	window := make([]int64, n)
	copy(window, m.latencies[:n])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	var sum int64
	for _, v := range window {
		sum += v
	}

	return Stats{
		Count: n,
		Min:   window[0],
		Mean:  sum / int64(n),
		Max:   window[n-1],
		P50:   percentile(window, 50),
		P95:   percentile(window, 95),
		P99:   percentile(window, 99),
		P999:  percentile(window, 99.9),
	}
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ViolationStats reports the current violation rate.
func (m *Monitor) ViolationStats() ViolationStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rate float64
	if m.total > 0 {
		rate = float64(len(m.violations)) / float64(m.total) * 100
	}
	return ViolationStats{
		Count:          len(m.violations),
		TotalProcessed: m.total,
		RatePercent:    rate,
	}
}

// RecentViolations returns up to limit of the most recently recorded
// violations, newest first.
func (m *Monitor) RecentViolations(limit int) []Violation {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.violations)
	if limit > n {
		limit = n
	}
	out := make([]Violation, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.violations[n-1-i]
	}
	return out
}
