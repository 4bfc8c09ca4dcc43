package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartServiceSpan(context.Background(), "reservation", "reserve",
		WithAttribute(SpanAttrQuantity, 5),
		WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reservation.reserve", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, int64(5), attrMap(spans[0].Attributes())[SpanAttrQuantity].AsInt64())
}

func TestStartSpan_DefaultsToInternal(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "ledger.append")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, trace.SpanKindInternal, sr.Ended()[0].SpanKind())
}

func TestSetAttributes_ConvertsTypes(t *testing.T) {
	sr := setupTestTracer(t)
	locationID := uuid.New()

	_, span := StartSpan(context.Background(), "typed")
	SetAttributes(span,
		SpanAttrLocationID, locationID,
		"count", 3,
		"ratio", 0.5,
		"ok", true,
		"tags", []string{"a", "b"},
		42, "ignored: non-string key",
		"dangling",
	)
	SetAttribute(span, SpanAttrMovementType, "INBOUND")
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, locationID.String(), attrs[SpanAttrLocationID].AsString())
	assert.Equal(t, int64(3), attrs["count"].AsInt64())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.True(t, attrs["ok"].AsBool())
	assert.Equal(t, []string{"a", "b"}, attrs["tags"].AsStringSlice())
	assert.Equal(t, "INBOUND", attrs[SpanAttrMovementType].AsString())
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 6)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "failing")
	RecordError(span, errors.New("insufficient stock"))
	RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "insufficient stock", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
	assert.Equal(t, "exception", ended.Events()[0].Name)
}

func TestSetOKAndAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "ok")
	AddEvent(span, "reservation_admitted", SpanAttrProductID, "p-1", SpanAttrQuantity, 2)
	SetOK(span)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Ok, ended.Status().Code)
	require.Len(t, ended.Events(), 1)
	event := ended.Events()[0]
	assert.Equal(t, "reservation_admitted", event.Name)
	assert.Equal(t, "p-1", attrMap(event.Attributes)[SpanAttrProductID].AsString())
}

func TestTraceAndSpanIDs(t *testing.T) {
	setupTestTracer(t)

	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))

	ctx, span := StartSpan(context.Background(), "ids")
	defer span.End()

	assert.Len(t, GetTraceID(ctx), 32)
	assert.Len(t, GetSpanID(ctx), 16)
	assert.Equal(t, span, SpanFromContext(ctx))

	other := ContextWithSpan(context.Background(), span)
	assert.Equal(t, GetTraceID(ctx), GetTraceID(other))
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "k", "v")
		SetAttribute(nil, "k", "v")
		RecordError(nil, errors.New("x"))
		SetOK(nil)
		AddEvent(nil, "e")
	})
}
