// Package prometheus renders goOTC Engine metrics in Prometheus text
// exposition format. Related counters share a family with one label, e.g.
// gootc_codes_total{outcome="verified"}, and verification latency is the
// gootc_code_verify_duration_seconds histogram. Callers mount the Handler;
// no global registry is touched.
package prometheus
