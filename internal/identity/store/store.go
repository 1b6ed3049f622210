// Package store defines the persistence boundary for the identity service.
// Services depend on these interfaces; drivers live under drivers/.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/pkg/idx"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned on unique-constraint conflicts.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root persistence handle.
type Store interface {
	Accounts() AccountRepo
	Tenants() TenantRepo
	Plans() PlanRepo
	LifecycleTokens() LifecycleTokenRepo
	PaymentCredentials() PaymentCredentialsRepo

	// WithTx runs fn inside a transaction. A non-nil error from fn rolls the
	// transaction back; otherwise it commits.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Tx exposes the same repositories bound to one transaction.
type Tx interface {
	Accounts() AccountRepo
	Tenants() TenantRepo
	Plans() PlanRepo
	LifecycleTokens() LifecycleTokenRepo
	PaymentCredentials() PaymentCredentialsRepo
}

type AccountRepo interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id idx.ID) (*domain.Account, error)
	GetByTenantEmail(ctx context.Context, tenantID idx.ID, email string) (*domain.Account, error)

	// ListByEmail returns every account holding the email across tenants,
	// used for slug-less login resolution.
	ListByEmail(ctx context.Context, email string) ([]*domain.Account, error)

	CountByTenant(ctx context.Context, tenantID idx.ID) (int, error)

	UpdateStatus(ctx context.Context, id idx.ID, status domain.AccountStatus) error

	// SetPassword replaces the hash and bumps the signing epoch in one
	// statement so no session survives a password change.
	SetPassword(ctx context.Context, id idx.ID, passwordHash string) error
}

type TenantRepo interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id idx.ID) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

type PlanRepo interface {
	GetByID(ctx context.Context, id idx.ID) (*domain.Plan, error)
	GetByName(ctx context.Context, name string) (*domain.Plan, error)
}

type LifecycleTokenRepo interface {
	Create(ctx context.Context, token *domain.LifecycleToken) error
	GetByHash(ctx context.Context, hash string) (*domain.LifecycleToken, error)

	// Consume marks the token consumed if and only if it is still live:
	// unconsumed, unsuperseded and unexpired at now. ErrNotFound means the
	// guard failed, which callers map to the precise reason themselves.
	Consume(ctx context.Context, id idx.ID, now time.Time) error

	// SupersedeOlder marks every live token of the same kind for the same
	// tenant and email as superseded, except the one being minted.
	SupersedeOlder(ctx context.Context, kind domain.TokenKind, tenantID idx.ID, email string, keep idx.ID) error

	// DeleteExpired removes tokens that expired before the cutoff and
	// returns how many rows went away.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type PaymentCredentialsRepo interface {
	// Upsert stores the bundle for the tenant, incrementing the version on
	// replacement.
	Upsert(ctx context.Context, creds *domain.PaymentCredentials) (*domain.PaymentCredentials, error)
	Get(ctx context.Context, tenantID idx.ID) (*domain.PaymentCredentials, error)
}
