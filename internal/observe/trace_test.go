package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
}

func TestCorrelationID_NoActiveSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID = %q; want empty without an active span", got)
	}
}

func TestCorrelationID_WithActiveSpan(t *testing.T) {
	setupTracing(t)

	ctx, span := StartSpan(context.Background(), "classify cycle")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Errorf("CorrelationID length = %d; want 32 hex chars", len(cid))
	}
}

func TestLogger_WithoutSpanReturnsDefault(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}
}

func TestStartSpan_NestedSpansShareTrace(t *testing.T) {
	setupTracing(t)

	ctx, parent := StartSpan(context.Background(), "cycle")
	defer parent.End()
	ctx2, child := StartSpan(ctx, "classify")
	defer child.End()

	if CorrelationID(ctx) != CorrelationID(ctx2) {
		t.Error("child span does not share the parent's trace ID")
	}
}
