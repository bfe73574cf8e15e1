// Package tracer provides a lightweight tracing abstraction for the registry.
//
// Services depend on the Tracer interface rather than on OpenTelemetry directly.
// Implementations:
//   - NoopTracer: for tests and when tracing is disabled
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// If err is non-nil, the span is marked as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	// The returned context contains the new span and should be passed to child operations.
	//
	// Example:
	//   ctx, span := tracer.Start(ctx, tracer.SpanIssueCredential,
	//       tracer.String(tracer.AttrCaller, caller.String()),
	//   )
	//   defer func() { span.End(err) }()
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names, one per registry operation.
const (
	SpanIssueCredential         = "registry.credential.issue"
	SpanVerifyCredential        = "registry.credential.verify"
	SpanGetCredential           = "registry.credential.get"
	SpanRevokeCredential        = "registry.credential.revoke"
	SpanAuthorizeInstitution    = "registry.institution.authorize"
	SpanRevokeInstitutionAccess = "registry.institution.revoke"
	SpanRegistryState           = "registry.state"
)

// Attribute keys.
const (
	AttrCaller       = "registry.caller"
	AttrCredentialID = "registry.credential_id"
	AttrIdentity     = "registry.identity"
	AttrRejection    = "registry.rejection"
)

// Event names.
const (
	EventPublished = "registry.event.published"
)
