package goOTC

import (
	"sync/atomic"
	"testing"
	"time"
)

type incrementer interface {
	Inc(MetricID)
}

// packedCounters is the unpadded layout the padded Metrics is compared to.
type packedCounters struct {
	counters [metricIDCount]uint64
}

func (m *packedCounters) Inc(id MetricID) {
	atomic.AddUint64(&m.counters[id], 1)
}

// loginTraffic approximates one code login followed by session checks:
// validation dominates, the code path runs once.
var loginTraffic = [...]MetricID{
	MetricCodeRequested,
	MetricCodeVerified,
	MetricSessionIssued,
	MetricSessionValidated,
	MetricSessionValidated,
	MetricSessionValidated,
	MetricSessionValidated,
	MetricSessionRejected,
}

// mixedFailureTraffic spreads writes over unrelated counters.
var mixedFailureTraffic = [...]MetricID{
	MetricCodeInvalid,
	MetricCodeExpired,
	MetricRateLimitHit,
	MetricFederatedFailure,
	MetricSessionRejected,
	MetricStorageFailure,
	MetricCodeDeliveryFailure,
	MetricUpsertRetry,
}

func BenchmarkMetricsInc(b *testing.B) {
	for _, tc := range []struct {
		name    string
		enabled bool
	}{{"enabled", true}, {"disabled", false}} {
		b.Run(tc.name, func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: tc.enabled})
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m.Inc(MetricSessionValidated)
			}
		})
		b.Run(tc.name+"/parallel", func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: tc.enabled})
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Inc(MetricSessionValidated)
				}
			})
		})
	}
}

func BenchmarkMetricsTrafficParallel(b *testing.B) {
	layouts := []struct {
		name string
		new  func() incrementer
	}{
		{"padded", func() incrementer { return NewMetrics(MetricsConfig{Enabled: true}) }},
		{"packed", func() incrementer { return &packedCounters{} }},
	}
	mixes := []struct {
		name string
		ids  []MetricID
	}{
		{"login", loginTraffic[:]},
		{"failures", mixedFailureTraffic[:]},
	}

	for _, layout := range layouts {
		for _, mix := range mixes {
			b.Run(layout.name+"/"+mix.name, func(b *testing.B) {
				m := layout.new()
				ids := mix.ids
				b.ReportAllocs()
				b.RunParallel(func(pb *testing.PB) {
					// xorshift64 keeps goroutines off a shared index
					s := uint64(0x9e3779b97f4a7c15)
					for pb.Next() {
						s ^= s << 13
						s ^= s >> 7
						s ^= s << 17
						m.Inc(ids[s%uint64(len(ids))])
					}
				})
			})
		}
	}
}

func BenchmarkMetricsObserveVerifyLatency(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	samples := [...]time.Duration{
		2 * time.Millisecond,
		8 * time.Millisecond,
		40 * time.Millisecond,
		120 * time.Millisecond,
		700 * time.Millisecond,
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Observe(MetricVerifyLatency, samples[i%len(samples)])
			i++
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, id := range loginTraffic {
		m.Inc(id)
	}
	m.Observe(MetricVerifyLatency, 30*time.Millisecond)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
