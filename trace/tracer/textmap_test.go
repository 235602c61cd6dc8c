// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrace/client-go/trace"
)

func TestTextMapInjectExtractRoundTrip(t *testing.T) {
	sc := newRootSpanContext(0, 42, 42, flagSampled).withBaggageItem("user_id", "17")

	carrier := trace.TextMapCarrier{}
	codec := NewTextMapPropagator()
	require.NoError(t, codec.Inject(sc, carrier))

	assert.Equal(t, sc.String(), carrier[DefaultStateHeaderKey])
	assert.Equal(t, "17", carrier[DefaultBaggagePrefix+"user-id"], "baggage keys are normalized to lowercase-hyphenated on write")

	extracted, err := codec.Extract(carrier)
	require.NoError(t, err)
	assert.Equal(t, sc.TraceIDLow(), extracted.TraceIDLow())
	assert.Equal(t, sc.SpanID(), extracted.SpanID())
	assert.Equal(t, "17", extracted.BaggageItem("user-id"))
}

func TestTextMapExtractEmptyCarrier(t *testing.T) {
	codec := NewTextMapPropagator()
	_, err := codec.Extract(trace.TextMapCarrier{})
	require.Error(t, err)
	_, ok := err.(*EmptyStateError)
	assert.True(t, ok, "expected *EmptyStateError, got %T", err)
}

func TestTextMapExtractDebugIDOnly(t *testing.T) {
	carrier := trace.TextMapCarrier{DefaultDebugHeaderKey: "debug-123"}
	codec := NewTextMapPropagator()
	sc, err := codec.Extract(carrier)
	require.NoError(t, err)
	assert.True(t, sc.IsDebugIDContainerOnly())
	assert.Equal(t, "debug-123", sc.DebugID())
}

func TestTextMapExtractMalformedState(t *testing.T) {
	carrier := trace.TextMapCarrier{DefaultStateHeaderKey: "not-a-valid-context"}
	codec := NewTextMapPropagator()
	_, err := codec.Extract(carrier)
	require.Error(t, err)
	_, ok := err.(*MalformedStateError)
	assert.True(t, ok, "expected *MalformedStateError, got %T", err)
}

func TestTextMapInjectOmitsStateForDebugIDContainer(t *testing.T) {
	sc := newDebugIDContainer("debug-123")
	carrier := trace.TextMapCarrier{}
	codec := NewTextMapPropagator()
	require.NoError(t, codec.Inject(sc, carrier))
	_, present := carrier[DefaultStateHeaderKey]
	assert.False(t, present, "a debug-id-only context has no real identity to propagate as state")
}

func TestHTTPHeadersCaseInsensitiveExtract(t *testing.T) {
	sc := newRootSpanContext(0, 42, 42, flagSampled)
	header := make(trace.HTTPHeadersCarrier)
	header.Set("Uber-Trace-Id", sc.String())

	codec := NewHTTPHeadersPropagator()
	extracted, err := codec.Extract(header)
	require.NoError(t, err)
	assert.Equal(t, sc.SpanID(), extracted.SpanID())
}

func TestHTTPHeadersURLEncodesBaggageValues(t *testing.T) {
	sc := newRootSpanContext(0, 1, 1, flagSampled).withBaggageItem("k", "a value/with special&chars")
	header := make(trace.HTTPHeadersCarrier)
	codec := NewHTTPHeadersPropagator()
	require.NoError(t, codec.Inject(sc, header))

	extracted, err := codec.Extract(header)
	require.NoError(t, err)
	assert.Equal(t, "a value/with special&chars", extracted.BaggageItem("k"))
}

func TestPropagatorRegistryDefaults(t *testing.T) {
	r := NewPropagatorRegistry()
	sc := newRootSpanContext(0, 1, 1, flagSampled)

	carrier := trace.TextMapCarrier{}
	require.NoError(t, r.Inject(trace.FormatTextMap, sc, carrier))
	_, err := r.Extract(trace.FormatTextMap, carrier)
	require.NoError(t, err)

	header := make(trace.HTTPHeadersCarrier)
	require.NoError(t, r.Inject(trace.FormatHTTPHeaders, sc, header))
	_, err = r.Extract(trace.FormatHTTPHeaders, header)
	require.NoError(t, err)
}

func TestPropagatorRegistryUnsupportedFormat(t *testing.T) {
	r := NewPropagatorRegistry()
	_, err := r.Extract(trace.Format("nonexistent"), trace.TextMapCarrier{})
	require.Error(t, err)
	_, ok := err.(*UnsupportedFormatError)
	assert.True(t, ok, "expected *UnsupportedFormatError, got %T", err)
}
