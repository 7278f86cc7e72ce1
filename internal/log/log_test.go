package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerAddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentApp).WithComponent(ComponentDistribute)

	logger.Info("hello", FieldPaymentID, "pay-1")

	out := buf.String()
	if strings.Count(out, "component=") != 1 {
		t.Errorf("expected a single component attribute, got %q", out)
	}
	if !strings.Contains(out, "component=distribute") || !strings.Contains(out, "payment_id=pay-1") {
		t.Errorf("unexpected log line %q", out)
	}
}

func TestStructuredLoggerLogDistribution(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))

	sl.LogDistribution(context.Background(), "pay-1", "proj-1", 100000, "BRL", 6, "default")

	out := buf.String()
	for _, want := range []string{"payment_id=pay-1", "project_id=proj-1", "amount_cents=100000", "funds=6", "plan_source=default", "component=distribute"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestStructuredLoggerLogErrorNilFields(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))

	sl.LogError(context.Background(), "failed", errors.New("boom"), ComponentStorage, OpReconcile, nil)

	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("expected error attribute, got %q", buf.String())
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	var got *Logger
	h := Middleware(logger)(ComponentMiddleware(ComponentSummary)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentSummary {
		t.Fatalf("expected component logger in context, got %+v", got)
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Logger == nil {
		t.Fatal("FromContext should fall back to the default logger")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithFund("f1", "marketing").WithScope("project:p1").WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not be recorded")
	}
	if len(f.ToSlice()) != 6 {
		t.Errorf("expected 3 pairs, got %v", f.ToSlice())
	}
}

func TestStructuredLoggerHTTPLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
		r := httptest.NewRequest(http.MethodGet, "/v1/summary?project_id=p1", nil)

		sl.LogHTTPEnd(context.Background(), r, "req_1", "10.0.0.1", tt.status, 15*time.Millisecond)

		out := buf.String()
		if !strings.Contains(out, tt.level) || !strings.Contains(out, "request_id=req_1") {
			t.Errorf("status %d: unexpected log line %q", tt.status, out)
		}
	}
}

func TestStructuredLoggerHTTPStartIsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentHTTP,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})
	NewStructuredLogger(logger).LogHTTPStart(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil), "req_1", "")
	if buf.Len() != 0 {
		t.Errorf("request start should not log at info, got %q", buf.String())
	}
}

func TestDisabledLevelSkipsRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	})
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
