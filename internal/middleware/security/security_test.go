package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		agent   string
		flagged bool
	}{
		{"plain api call", http.MethodGet, "/v1/summary?project_id=p1", "curl/8.4.0", false},
		{"path traversal", http.MethodGet, "/v1/../../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"script in query", http.MethodGet, "/v1/summary?project_id=eval(1)", "", true},
		{"scanner agent", http.MethodGet, "/v1/summary", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/v1/summary", "", true},
	}
	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			assert.Equal(t, tt.flagged, d.DetectSuspiciousRequest(r))
		})
	}
	assert.Equal(t, int64(5), d.SuspiciousCount())
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4000"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.5")
	assert.Equal(t, "203.0.113.9", d.ExtractClientIP(r))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", d.ExtractClientIP(r))

	// Forwarded headers from untrusted peers are ignored.
	r.RemoteAddr = "203.0.113.50:4000"
	assert.Equal(t, "203.0.113.50", d.ExtractClientIP(r))

	require.Error(t, d.AddTrustedProxy("not-a-cidr"))
	require.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
	assert.Equal(t, "198.51.100.7", d.ExtractClientIP(r))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}
