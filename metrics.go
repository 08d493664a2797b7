package goOTC

import (
	"sync/atomic"
	"time"
)

// MetricID names an Engine counter.
type MetricID uint16

const (
	MetricCodeRequested MetricID = iota
	MetricCodeRequestFailure
	MetricCodeDeliveryFailure
	MetricCodeVerified
	MetricCodeInvalid
	MetricCodeExpired
	MetricCodeMaxAttempts
	MetricFederatedSuccess
	MetricFederatedFailure
	MetricSessionIssued
	MetricSessionValidated
	MetricSessionRejected
	MetricSessionEnded
	MetricRateLimitHit
	MetricUpsertRetry
	MetricStorageFailure
	MetricCodesSwept
	// MetricVerifyLatency is the only histogram; its counter stays zero.
	MetricVerifyLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricCodeRequested:       "code_requested",
	MetricCodeRequestFailure:  "code_request_failure",
	MetricCodeDeliveryFailure: "code_delivery_failure",
	MetricCodeVerified:        "code_verified",
	MetricCodeInvalid:         "code_invalid",
	MetricCodeExpired:         "code_expired_or_absent",
	MetricCodeMaxAttempts:     "code_max_attempts",
	MetricFederatedSuccess:    "federated_success",
	MetricFederatedFailure:    "federated_failure",
	MetricSessionIssued:       "session_issued",
	MetricSessionValidated:    "session_validated",
	MetricSessionRejected:     "session_rejected",
	MetricSessionEnded:        "session_ended",
	MetricRateLimitHit:        "rate_limit_hit",
	MetricUpsertRetry:         "identity_upsert_retry",
	MetricStorageFailure:      "storage_failure",
	MetricCodesSwept:          "codes_swept",
	MetricVerifyLatency:       "verify_latency",
}

// String returns the snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs lists every defined metric in order.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the inclusive upper bounds of the first seven latency
// buckets. The eighth bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil *Metrics discards everything.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	verify        metricHistogram
}

type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increases a counter by n.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records a latency sample. Only MetricVerifyLatency is bucketed.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.verify.buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Counters keep running during the copy, so
// values are individually but not mutually consistent.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.verify.buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
