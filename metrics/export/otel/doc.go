// Package otel binds goOTC Engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per metric family,
// with the family label as an attribute, and exposes verification latency as
// cumulative bucket gauges keyed by "le". One callback reads
// [goOTC.Engine.MetricsSnapshot] on each collection cycle. Callers own the
// MeterProvider.
package otel
