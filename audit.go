package goOTC

import (
	"io"

	"github.com/MrEthical07/goOTC/internal/audit"
	"github.com/MrEthical07/goOTC/internal/flows"
)

// AuditEvent is one audit record. Emails are masked before they reach a sink.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
)

// Audit event types.
const (
	AuditEventCodeRequested    = flows.EventCodeRequested
	AuditEventCodeVerified     = flows.EventCodeVerified
	AuditEventFederatedLogin   = flows.EventFederatedLogin
	AuditEventSessionIssued    = flows.EventSessionIssued
	AuditEventSessionValidated = flows.EventSessionValidated
	AuditEventSessionEnded     = flows.EventSessionEnded
	AuditEventRateLimited      = flows.EventRateLimited
	AuditEventCodesSwept       = "codes_swept"
)

// Flow states carried in AuditEvent.Metadata["state"].
const (
	StateRequested         = flows.StateRequested
	StateCodeIssued        = flows.StateCodeIssued
	StateCodeVerified      = flows.StateCodeVerified
	StateVerifyFailed      = flows.StateVerifyFailed
	StateRateLimited       = flows.StateRateLimited
	StateIdentityVerified  = flows.StateIdentityVerified
	StateAssertionRejected = flows.StateAssertionRejected
	StateSessionIssued     = flows.StateSessionIssued
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
