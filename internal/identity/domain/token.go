package domain

import (
	"time"

	"github.com/orgstack/identity/pkg/idx"
)

// TokenKind partitions lifecycle tokens by purpose. A token minted for one
// purpose can never be consumed for another.
type TokenKind string

const (
	// TokenKindInvite covers both invitation and account activation: the
	// token mailed on invite is the token redeemed at activation.
	TokenKindInvite TokenKind = "invite"

	TokenKindPasswordReset TokenKind = "password_reset"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindInvite || k == TokenKindPasswordReset
}

// TTL returns the lifetime tokens of this kind are minted with.
func (k TokenKind) TTL() time.Duration {
	switch k {
	case TokenKindPasswordReset:
		return time.Hour
	default:
		return 72 * time.Hour
	}
}

// LifecycleToken is a single-use, expiring credential delivered out of band.
// Only the SHA-256 fingerprint of the secret is stored; the cleartext exists
// solely in the delivery channel.
type LifecycleToken struct {
	ID        idx.ID
	TokenHash string
	Kind      TokenKind
	TenantID  idx.ID
	Email     string

	ExpiresAt  time.Time
	ConsumedAt *time.Time

	// Superseded is set when a newer token of the same kind is minted for
	// the same tenant and email. Superseded tokens cannot be consumed.
	Superseded bool

	CreatedAt time.Time
}

// Consumable reports whether the token can still be redeemed at the given
// instant.
func (t *LifecycleToken) Consumable(now time.Time) bool {
	return t.ConsumedAt == nil && !t.Superseded && now.Before(t.ExpiresAt)
}
