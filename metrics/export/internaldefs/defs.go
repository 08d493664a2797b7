package internaldefs

import (
	goOTC "github.com/MrEthical07/goOTC"
)

// Series is one label value of a Family.
type Series struct {
	ID    goOTC.MetricID
	Value string
}

// Family folds related Engine counters into one metric keyed by Label.
type Family struct {
	Name     string // Prometheus name
	OTelName string
	Unit     string
	Help     string
	Label    string
	Series   []Series
}

var Families = []Family{
	{
		Name: "gootc_codes_total", OTelName: "gootc.codes", Unit: "{code}",
		Help: "Code lifecycle events by outcome.", Label: "outcome",
		Series: []Series{
			{goOTC.MetricCodeRequested, "requested"},
			{goOTC.MetricCodeRequestFailure, "request_failure"},
			{goOTC.MetricCodeDeliveryFailure, "delivery_failure"},
			{goOTC.MetricCodeVerified, "verified"},
			{goOTC.MetricCodeInvalid, "invalid"},
			{goOTC.MetricCodeExpired, "expired_or_absent"},
			{goOTC.MetricCodeMaxAttempts, "max_attempts"},
			{goOTC.MetricCodesSwept, "swept"},
		},
	},
	{
		Name: "gootc_sessions_total", OTelName: "gootc.sessions", Unit: "{session}",
		Help: "Session token events.", Label: "event",
		Series: []Series{
			{goOTC.MetricSessionIssued, "issued"},
			{goOTC.MetricSessionValidated, "validated"},
			{goOTC.MetricSessionRejected, "rejected"},
			{goOTC.MetricSessionEnded, "ended"},
		},
	},
	{
		Name: "gootc_federated_logins_total", OTelName: "gootc.federated.logins", Unit: "{login}",
		Help: "Identity provider assertions by result.", Label: "result",
		Series: []Series{
			{goOTC.MetricFederatedSuccess, "success"},
			{goOTC.MetricFederatedFailure, "failure"},
		},
	},
	{
		Name: "gootc_failures_total", OTelName: "gootc.failures", Unit: "{event}",
		Help: "Denied or failed operations.", Label: "kind",
		Series: []Series{
			{goOTC.MetricRateLimitHit, "rate_limited"},
			{goOTC.MetricUpsertRetry, "upsert_retry"},
			{goOTC.MetricStorageFailure, "storage"},
		},
	},
}

// VerifyLatency is the only histogram the Engine records.
var VerifyLatency = struct {
	ID       goOTC.MetricID
	Name     string
	OTelName string
	Help     string
}{
	ID:       goOTC.MetricVerifyLatency,
	Name:     "gootc_code_verify_duration_seconds",
	OTelName: "gootc.code.verify.duration",
	Help:     "Code verification latency.",
}

const (
	AuditDroppedName     = "gootc_audit_dropped_total"
	AuditDroppedOTelName = "gootc.audit.dropped"
	AuditDroppedHelp     = "Audit events dropped because the buffer was full."
)

// HistogramBounds are the "le" labels matching goOTC.HistogramBounds plus +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling a short or
// missing slice.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative "le" counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
