package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimitPerKey(t *testing.T) {
	t.Setenv("RATELIMIT_STRICT_RPS", "1")
	t.Setenv("RATELIMIT_STRICT_BURST", "2")

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		RateLimit(RateLimitStrict, KeyByClientIP),
	)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, do("10.0.0.1:1234"))
	require.Equal(t, http.StatusNoContent, do("10.0.0.1:1234"))

	blocked := do("10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, blocked)

	// Another client's bucket is independent.
	require.Equal(t, http.StatusNoContent, do("10.0.0.2:1234"))
}

func TestKeyByClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:55555"
	require.Equal(t, "ip:192.0.2.7", KeyByClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "ip:203.0.113.9", KeyByClientIP(req))
}
