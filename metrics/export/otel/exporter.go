package otel

import (
	"context"
	"errors"
	"fmt"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goOTC.MetricsSnapshot
	AuditDropped() uint64
}

type boundGroup struct {
	instrument metric.Int64ObservableCounter
	series     []internaldefs.Series
	attrs      []metric.ObserveOption
}

// OTelExporter publishes Engine metrics through an OTel meter. Values are
// read from a snapshot on every collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	groups       []boundGroup
	verifyBucket metric.Int64ObservableGauge
	verifyCount  metric.Int64ObservableGauge
	bucketAttrs  []metric.ObserveOption
	auditDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *goOTC.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+3)

	for _, f := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(f.OTelName, metric.WithUnit(f.Unit), metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.OTelName, err)
		}
		bg := boundGroup{instrument: ins, series: f.Series}
		for _, s := range f.Series {
			bg.attrs = append(bg.attrs, metric.WithAttributes(attribute.String(f.Label, s.Value)))
		}
		e.groups = append(e.groups, bg)
		observables = append(observables, ins)
	}

	var err error
	e.verifyBucket, err = meter.Int64ObservableGauge(internaldefs.VerifyLatency.OTelName+".bucket",
		metric.WithDescription("Cumulative code verification latency samples per upper bound in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create verify bucket gauge: %w", err)
	}
	e.verifyCount, err = meter.Int64ObservableGauge(internaldefs.VerifyLatency.OTelName+".count",
		metric.WithDescription("Code verification latency samples."))
	if err != nil {
		return nil, fmt.Errorf("create verify count gauge: %w", err)
	}
	for _, le := range internaldefs.HistogramBounds {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", le)))
	}

	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedOTelName,
		metric.WithUnit("{event}"),
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.verifyBucket, e.verifyCount, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, g := range e.groups {
		for i, s := range g.series {
			o.ObserveInt64(g.instrument, int64(snapshot.Counters[s.ID]), g.attrs[i])
		}
	}

	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[internaldefs.VerifyLatency.ID]))
	for i, v := range cumulative {
		o.ObserveInt64(e.verifyBucket, int64(v), e.bucketAttrs[i])
	}
	o.ObserveInt64(e.verifyCount, int64(cumulative[len(cumulative)-1]))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
