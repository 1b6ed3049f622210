package http

import (
	"errors"
	"net/http"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/httpx"
	"github.com/orgstack/identity/pkg/idx"
)

// guard is the access-control middleware behind every authenticated route.
// The bearer middleware has already verified the signature; the guard checks
// the parts a signature cannot: the account still exists, is still active,
// and the token's epoch matches the stored signing epoch (a mismatch means
// the password changed after issue, revoking the session).
type guard struct {
	store store.Store
}

// require returns middleware enforcing authentication plus an optional role.
// An empty role admits any active account.
func (g *guard) require(role domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := httpx.ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.WriteUnauthorized(w, r, "missing bearer token")
				return
			}

			accountID, err := idx.Parse(claims.Subject)
			if err != nil {
				httpx.WriteUnauthorized(w, r, "token is invalid")
				return
			}

			account, err := g.store.Accounts().GetByID(r.Context(), accountID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					httpx.WriteUnauthorized(w, r, "session has been revoked")
					return
				}
				httpx.WriteServerError(w, r, err)
				return
			}

			switch {
			case !account.CanAuthenticate():
				httpx.WriteUnauthorized(w, r, "session has been revoked")
			case account.SigningEpoch != claims.Epoch:
				httpx.WriteUnauthorized(w, r, "session has been revoked")
			case account.TenantID.String() != claims.TenantID:
				httpx.WriteUnauthorized(w, r, "session has been revoked")
			case role != "" && account.Role != role:
				httpx.WriteForbidden(w, r, "this operation requires the "+string(role)+" role")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
