package log

import (
	"context"
	"net/http"
)

type loggerKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger, or the default logger under
// the app component when none was stored.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return Default(ComponentApp)
}

// derive stores fn(current logger) in each request context.
func derive(fn func(*http.Request, *Logger) *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			next.ServeHTTP(w, r.WithContext(NewContext(ctx, fn(r, FromContext(ctx)))))
		})
	}
}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return derive(func(*http.Request, *Logger) *Logger { return logger })
}

// ComponentMiddleware renames the request logger's component for a route group.
func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return derive(func(_ *http.Request, l *Logger) *Logger { return l.WithComponent(component) })
}

// RequestIDMiddleware tags the request logger with the request id.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return derive(func(r *http.Request, l *Logger) *Logger {
		return l.With(FieldRequestID, extractRequestID(r))
	})
}
