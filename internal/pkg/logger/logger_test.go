package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	return payload
}

func TestCtxInjectsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	Init("saga-coordinator", "debug", &buf)
	t.Cleanup(func() { Init("", "info", nil) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03},
		SpanID:     trace.SpanID{0x0a},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	Ctx(ctx).Info().Str("order_id", "o1").Msg("join decided")

	payload := lastLine(t, &buf)
	if payload["service"] != "saga-coordinator" {
		t.Fatalf("service = %v", payload["service"])
	}
	if payload["trace_id"] != sc.TraceID().String() || payload["span_id"] != sc.SpanID().String() {
		t.Fatalf("trace fields = %v / %v", payload["trace_id"], payload["span_id"])
	}
	if payload["order_id"] != "o1" || payload["message"] != "join decided" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestCtxWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	Init("intake", "warn", &buf)
	t.Cleanup(func() { Init("", "info", nil) })

	Ctx(context.Background()).Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	Ctx(context.Background()).Warn().Msg("kept")
	payload := lastLine(t, &buf)
	if _, ok := payload["trace_id"]; ok {
		t.Fatalf("trace_id set without a span")
	}
}
