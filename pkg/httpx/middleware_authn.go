package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/orgstack/identity/pkg/jwtx"
)

// RequireBearer verifies the Authorization bearer token and attaches its
// claims to the request context. Requests without a valid session get the 401
// envelope; everything finer-grained (status, role, epoch) is the guard
// middleware's job.
func RequireBearer(verifier jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				WriteUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				WriteUnauthorized(w, r, describeVerifyError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), &claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// describeVerifyError keeps the 401 body generic enough not to leak signing
// internals while still distinguishing expiry for clients that can refresh.
func describeVerifyError(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "token expired"
	case errors.Is(err, jwtx.ErrNotYetValid):
		return "token not yet valid"
	default:
		return "token is invalid"
	}
}
