package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/cryptox"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/slogx"
)

var (
	ErrSlugTaken       = errors.New("tenant slug already taken")
	ErrEmailTaken      = errors.New("email already registered in tenant")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrSeatLimit       = errors.New("tenant has reached its plan's user limit")
)

// AccountService provisions tenants and manages the invite/activate flow.
type AccountService struct {
	store     store.Store
	lifecycle *LifecycleService
	notifier  Notifier
	now       func() time.Time
}

func NewAccountService(s store.Store, lifecycle *LifecycleService, notifier Notifier) *AccountService {
	return &AccountService{store: s, lifecycle: lifecycle, notifier: notifier, now: time.Now}
}

type RegisterParams struct {
	TenantName string
	Slug       string
	Industry   string
	Email      string
	Password   string
}

type RegisterResult struct {
	Tenant  *domain.Tenant
	Account *domain.Account
}

// Register creates a tenant on the free plan together with its first admin
// account, atomically. The admin is active immediately; no activation token
// is involved.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	// 1. Hash outside the transaction; argon2 is deliberately slow.
	hash, err := cryptox.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	slug := params.Slug
	if slug == "" {
		slug = domain.SlugFromName(params.TenantName)
	}

	var result RegisterResult
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		// 2. Every new tenant starts on the free plan.
		plan, err := tx.Plans().GetByName(ctx, "free")
		if err != nil {
			return fmt.Errorf("load free plan: %w", err)
		}

		now := s.now()
		tenant := &domain.Tenant{
			ID:        idx.NewAt(now),
			Name:      params.TenantName,
			Slug:      slug,
			Industry:  params.Industry,
			PlanID:    plan.ID,
			CreatedAt: now,
		}
		if err := tx.Tenants().Create(ctx, tenant); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrSlugTaken
			}
			return fmt.Errorf("create tenant: %w", err)
		}

		// 3. First account is always the admin.
		account := &domain.Account{
			ID:           idx.NewAt(now),
			TenantID:     tenant.ID,
			Email:        normalizeEmail(params.Email),
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			Status:       domain.AccountActive,
			SigningEpoch: 1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Accounts().Create(ctx, account); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create account: %w", err)
		}

		result = RegisterResult{Tenant: tenant, Account: account}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("tenant registered",
		slog.String("tenant_id", result.Tenant.ID.String()),
		slog.String("slug", result.Tenant.Slug),
	)
	return &result, nil
}

type InviteParams struct {
	TenantID idx.ID
	Email    string
	Role     domain.Role
}

// Invite creates an invited account and mints its activation token. Inviting
// the same email again reissues the token and supersedes the old one; an
// already-active account cannot be re-invited.
func (s *AccountService) Invite(ctx context.Context, params InviteParams) (*domain.LifecycleToken, error) {
	email := normalizeEmail(params.Email)

	var (
		token  *domain.LifecycleToken
		secret string
		tenant *domain.Tenant
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		tenant, err = tx.Tenants().GetByID(ctx, params.TenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTenantNotFound
			}
			return err
		}

		// 1. Seat check against the tenant's plan.
		plan, err := tx.Plans().GetByID(ctx, tenant.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		count, err := tx.Accounts().CountByTenant(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}

		// 2. Re-inviting a pending account reissues its token without
		// consuming another seat.
		existing, err := tx.Accounts().GetByTenantEmail(ctx, tenant.ID, email)
		switch {
		case err == nil:
			if existing.Status != domain.AccountInvited {
				return ErrEmailTaken
			}
		case errors.Is(err, store.ErrNotFound):
			if count >= plan.MaxUsers {
				return ErrSeatLimit
			}
			now := s.now()
			if err := tx.Accounts().Create(ctx, &domain.Account{
				ID:           idx.NewAt(now),
				TenantID:     tenant.ID,
				Email:        email,
				Role:         params.Role,
				Status:       domain.AccountInvited,
				SigningEpoch: 1,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				return fmt.Errorf("create invited account: %w", err)
			}
		default:
			return err
		}

		// 3. Mint the activation token inside the same transaction.
		token, secret, err = s.lifecycle.Issue(ctx, tx, domain.TokenKindInvite, tenant.ID, email)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.InviteIssued(ctx, email, tenant.Name, secret, token)
	return token, nil
}

type ActivateParams struct {
	Email    string
	Token    string
	Password string
}

// Activate redeems an invite token, sets the account's first password and
// flips it active. Token consumption and the account mutation commit
// together. The request email must match the token's bound email; a mismatch
// reads as an unknown token so the binding is never confirmed to a guesser.
func (s *AccountService) Activate(ctx context.Context, params ActivateParams) (*domain.Account, error) {
	hash, err := cryptox.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var activated *domain.Account
	err = s.lifecycle.Consume(ctx, params.Token, domain.TokenKindInvite, func(tx store.Tx, token *domain.LifecycleToken) error {
		if token.Email != normalizeEmail(params.Email) {
			return ErrTokenNotFound
		}
		account, err := tx.Accounts().GetByTenantEmail(ctx, token.TenantID, token.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.Status != domain.AccountInvited {
			return ErrTokenAlreadyUsed
		}

		if err := tx.Accounts().SetPassword(ctx, account.ID, hash); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := tx.Accounts().UpdateStatus(ctx, account.ID, domain.AccountActive); err != nil {
			return fmt.Errorf("activate account: %w", err)
		}

		account.Status = domain.AccountActive
		activated = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("account activated",
		slog.String("account_id", activated.ID.String()),
		slog.String("tenant_id", activated.TenantID.String()),
	)
	return activated, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
