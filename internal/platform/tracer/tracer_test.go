package tracer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopTracer_Start(t *testing.T) {
	tr := NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, SpanIssueCredential, String(AttrCaller, "did:example:owner"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(Int64(AttrCredentialID, 1))
	span.AddEvent(EventPublished)
	span.End(errors.New("test error"))
}

func TestOTelTracer_Start(t *testing.T) {
	tr := NewOTel(WithOTelTracer(noop.NewTracerProvider().Tracer(InstrumentationName)))

	ctx, span := tr.Start(context.Background(), SpanRevokeCredential, Int64(AttrCredentialID, 7))
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.SetAttributes(String(AttrRejection, "already_revoked"))
	span.AddEvent(EventPublished, Bool("ok", true))
	span.End(errors.New("already revoked"))
}

func TestNewOTel_DefaultsToGlobalProvider(t *testing.T) {
	tr := NewOTel()
	assert.NotNil(t, tr.tracer)
}

func TestToOTelAttributes(t *testing.T) {
	got := toOTelAttributes([]Attribute{
		String("s", "v"),
		Bool("b", true),
		Int64("i64", 42),
		{Key: "i", Value: 7},
		{Key: "u", Value: uint64(9)},
		Float64("f", 1.5),
		{Key: "dropped", Value: struct{}{}},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "v"),
		attribute.Bool("b", true),
		attribute.Int64("i64", 42),
		attribute.Int64("i", 7),
		attribute.Int64("u", 9),
		attribute.Float64("f", 1.5),
	}, got)
	assert.Nil(t, toOTelAttributes(nil))
}

func TestToOTelAttributes_LargeUnsigned(t *testing.T) {
	got := toOTelAttributes([]Attribute{
		{Key: "max", Value: uint64(math.MaxInt64)},
		{Key: "over", Value: uint64(math.MaxInt64) + 1},
		{Key: "all_ones", Value: ^uint64(0)},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.Int64("max", math.MaxInt64),
		attribute.String("over", "9223372036854775808"),
		attribute.String("all_ones", "18446744073709551615"),
	}, got)
}

func TestAttributeConstructors(t *testing.T) {
	assert.Equal(t, Attribute{Key: "k", Value: "v"}, String("k", "v"))
	assert.Equal(t, Attribute{Key: "latency", Value: int64(150)}, Duration("latency", 150*1e6))
}
