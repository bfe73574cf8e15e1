// Package requestcontext carries request-scoped values set by transport middleware:
// the correlation ID, the authenticated caller and client metadata.
package requestcontext

import (
	"context"
	"sync"

	id "edureg/pkg/domain"
)

type (
	contextKeyRequestID  struct{}
	contextKeyCaller     struct{}
	contextKeyCallerSlot struct{}
	contextKeyClient     struct{}
)

// callerSlot lets middleware that runs before authentication see the caller
// that a later middleware attached to a derived context.
type callerSlot struct {
	mu     sync.Mutex
	caller id.Identity
}

// ClientMetadata describes the remote client of an HTTP request.
type ClientMetadata struct {
	IP        string
	UserAgent string
	Platform  string
}

// WithRequestID stores the correlation ID for the request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the correlation ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithCaller stores the identity the hosting environment authenticated for this call.
// It also fills the caller slot installed by WithCallerSlot, if any.
func WithCaller(ctx context.Context, caller id.Identity) context.Context {
	if slot, ok := ctx.Value(contextKeyCallerSlot{}).(*callerSlot); ok {
		slot.mu.Lock()
		slot.caller = caller
		slot.mu.Unlock()
	}
	return context.WithValue(ctx, contextKeyCaller{}, caller)
}

// WithCallerSlot prepares ctx so that SlotCaller(ctx) reports a caller attached
// later, on any context derived from the returned one.
func WithCallerSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyCallerSlot{}, &callerSlot{})
}

// SlotCaller returns the caller recorded in the slot, falling back to Caller(ctx).
func SlotCaller(ctx context.Context) id.Identity {
	if slot, ok := ctx.Value(contextKeyCallerSlot{}).(*callerSlot); ok {
		slot.mu.Lock()
		defer slot.mu.Unlock()
		if !slot.caller.IsNil() {
			return slot.caller
		}
	}
	return Caller(ctx)
}

// Caller returns the authenticated identity, or the empty identity for anonymous calls.
func Caller(ctx context.Context) id.Identity {
	if v, ok := ctx.Value(contextKeyCaller{}).(id.Identity); ok {
		return v
	}
	return ""
}

// WithClientMetadata stores client IP and user agent details.
func WithClientMetadata(ctx context.Context, md ClientMetadata) context.Context {
	return context.WithValue(ctx, contextKeyClient{}, md)
}

// Client returns the stored client metadata (zero value if absent).
func Client(ctx context.Context) ClientMetadata {
	if v, ok := ctx.Value(contextKeyClient{}).(ClientMetadata); ok {
		return v
	}
	return ClientMetadata{}
}

// ClientIP is a shorthand for Client(ctx).IP.
func ClientIP(ctx context.Context) string {
	return Client(ctx).IP
}
