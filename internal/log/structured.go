package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// StructuredLogger emits the fixed-shape records that dashboards and
// alerts key on: HTTP access lines, distributions and failures.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) log(ctx context.Context, level slog.Level, msg string, f LogFields) {
	if !sl.logger.Logger.Enabled(ctx, level) {
		return
	}
	sl.logger.Logger.Log(ctx, level, msg, f.ToSlice()...)
}

// LogHTTPStart records an incoming request at debug level.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.log(ctx, slog.LevelDebug, "HTTP request started", f)
}

// LogHTTPEnd records the response; 4xx log at warn and 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID, clientIP string, status int, took time.Duration) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(status, took.Milliseconds(), status < 400).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.log(ctx, level, "HTTP request completed", f)
}

// LogDistribution records a committed distribution.
func (sl *StructuredLogger) LogDistribution(ctx context.Context, paymentID, projectID string, amountCents int64, currency string, funds int, planSource string) {
	f := NewFields().
		WithPayment(paymentID, projectID, amountCents, currency).
		WithOperation(OpDistribute).
		WithComponent(ComponentDistribute)
	f["funds"] = funds
	f[FieldPlanSource] = planSource
	sl.log(ctx, slog.LevelInfo, "Payment distributed", f)
}

// LogError records a failed operation. fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.log(ctx, slog.LevelError, msg, fields.WithError(err).WithOperation(operation).WithComponent(component))
}
