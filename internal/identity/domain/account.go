package domain

import (
	"time"

	"github.com/orgstack/identity/pkg/idx"
)

// Role is the coarse permission tier of an account within its tenant.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// AccountStatus tracks where an account is in its lifecycle. Invited accounts
// exist but cannot authenticate until activation; disabled accounts keep
// their history but are locked out.
type AccountStatus string

const (
	AccountInvited  AccountStatus = "invited"
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Account is a person's identity within one tenant. The same email may exist
// under several tenants as distinct accounts.
type Account struct {
	ID           idx.ID
	TenantID     idx.ID
	Email        string
	PasswordHash string
	Role         Role
	Status       AccountStatus

	// SigningEpoch is compared against the epoch claim inside session tokens.
	// Bumping it invalidates every session issued before the bump.
	SigningEpoch int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanAuthenticate reports whether the account may log in at all.
func (a *Account) CanAuthenticate() bool {
	return a.Status == AccountActive
}
