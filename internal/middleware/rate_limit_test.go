package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP_Returns429AfterLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitByIP_IsolatesClients(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	for _, addr := range []string{"203.0.113.7:5000", "203.0.113.8:5000"} {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, addr)
	}
}

func TestRateLimitByIP_ForwardedHeaderNeedsTrustedProxy(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{
		RequestsPerMinute: 1,
		IPConfig:          &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
	})(okHandler())

	send := func(remote, forwarded string) int {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Behind the trusted proxy each forwarded client gets its own bucket
	assert.Equal(t, http.StatusOK, send("10.0.0.1:443", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:443", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:443", "198.51.100.1"))

	// An untrusted peer cannot dodge the limit by rotating the header
	assert.Equal(t, http.StatusOK, send("192.0.2.5:443", "198.51.100.3"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.5:443", "198.51.100.4"))
}

func TestRateLimitByIP_DefaultsWhenUnset(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{})(okHandler())

	for i := 0; i < DefaultAdmissionRateLimit().RequestsPerMinute; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
