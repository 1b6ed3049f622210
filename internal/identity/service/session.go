package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/metrics"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/cryptox"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/jwtx"
	"github.com/orgstack/identity/pkg/orgsdk"
	"github.com/orgstack/identity/pkg/slogx"
)

var (
	// ErrInvalidCredentials is returned for every authentication failure that
	// must not reveal whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAccountNotActive = errors.New("account is not active")
	ErrPasswordMismatch = errors.New("current password does not match")
	ErrSessionRevoked   = errors.New("session has been revoked")
)

// enrichmentBudget bounds the optional profile lookups at login. Enrichment
// never fails a login; when the budget runs out the profile ships without
// the missing pieces.
const enrichmentBudget = 800 * time.Millisecond

// SessionService authenticates accounts and manages their passwords.
type SessionService struct {
	store      store.Store
	lifecycle  *LifecycleService
	notifier   Notifier
	signer     jwtx.Signer
	issuer     string
	sessionTTL time.Duration
	now        func() time.Time
}

func NewSessionService(s store.Store, lifecycle *LifecycleService, notifier Notifier, signer jwtx.Signer, issuer string, sessionTTL time.Duration) *SessionService {
	if sessionTTL <= 0 {
		sessionTTL = jwtx.DefaultSessionTTL
	}
	return &SessionService{
		store:      s,
		lifecycle:  lifecycle,
		notifier:   notifier,
		signer:     signer,
		issuer:     issuer,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

type LoginParams struct {
	Email      string
	Password   string
	TenantSlug string
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	Profile     *orgsdk.UserProfile
}

// Login authenticates and issues a session token. Every failure mode an
// attacker could probe (unknown email, wrong password, ambiguous tenant)
// collapses to ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	account, err := s.resolveAccount(ctx, normalizeEmail(params.Email), params.TenantSlug)
	if err != nil {
		// Burn comparable time so unknown emails are not distinguishable by
		// latency.
		_ = cryptox.VerifyPassword(params.Password, cryptox.DummyHash())
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, err
	}

	if err := cryptox.VerifyPassword(params.Password, account.PasswordHash); err != nil {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if !account.CanAuthenticate() {
		metrics.LoginAttempts.WithLabelValues("not_active").Inc()
		return nil, ErrAccountNotActive
	}

	token, err := s.mintSession(account)
	if err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	slogx.FromContext(ctx).Info("login succeeded",
		slog.String("account_id", account.ID.String()),
		slog.String("tenant_id", account.TenantID.String()),
	)

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   s.sessionTTL,
		Profile:     s.enrichProfile(ctx, account),
	}, nil
}

// resolveAccount finds the login target. With a slug hint the lookup is
// exact; without one the email must resolve to exactly one account across
// all tenants.
func (s *SessionService) resolveAccount(ctx context.Context, email, slug string) (*domain.Account, error) {
	if slug != "" {
		tenant, err := s.store.Tenants().GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		account, err := s.store.Accounts().GetByTenantEmail(ctx, tenant.ID, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		return account, nil
	}

	accounts, err := s.store.Accounts().ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(accounts) != 1 {
		return nil, ErrInvalidCredentials
	}
	return accounts[0], nil
}

func (s *SessionService) mintSession(account *domain.Account) (string, error) {
	claims := jwtx.NewSessionClaims(
		account.ID.String(), account.TenantID.String(), string(account.Role),
		account.SigningEpoch, s.sessionTTL, s.issuer, s.now(),
	)
	token, err := s.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// enrichProfile assembles the identity context returned with a session. Each
// step is isolated: a failing lookup (or a panicking one) drops that piece
// and the rest still ships.
func (s *SessionService) enrichProfile(ctx context.Context, account *domain.Account) *orgsdk.UserProfile {
	ctx, cancel := context.WithTimeout(ctx, enrichmentBudget)
	defer cancel()

	profile := &orgsdk.UserProfile{
		UserID:   account.ID.String(),
		TenantID: account.TenantID.String(),
		Email:    account.Email,
		Role:     string(account.Role),
	}

	var tenant *domain.Tenant
	s.enrichStep(ctx, "tenant", func() error {
		var err error
		tenant, err = s.store.Tenants().GetByID(ctx, account.TenantID)
		if err != nil {
			return err
		}
		profile.Tenant = &orgsdk.TenantInfo{
			Name:     tenant.Name,
			Slug:     tenant.Slug,
			Industry: tenant.Industry,
		}
		return nil
	})

	var plan *domain.Plan
	s.enrichStep(ctx, "plan", func() error {
		if tenant == nil {
			return errors.New("tenant step did not complete")
		}
		var err error
		plan, err = s.store.Plans().GetByID(ctx, tenant.PlanID)
		if err != nil {
			return err
		}
		profile.Plan = &orgsdk.PlanInfo{Name: plan.Name, MaxUsers: plan.MaxUsers}
		return nil
	})

	s.enrichStep(ctx, "modules", func() error {
		if plan == nil {
			return errors.New("plan step did not complete")
		}
		flags := &orgsdk.ModuleFlags{Payments: plan.HasPayments}
		if plan.HasPayments {
			_, err := s.store.PaymentCredentials().Get(ctx, account.TenantID)
			switch {
			case err == nil:
				flags.PaymentsConfigured = true
			case errors.Is(err, store.ErrNotFound):
				// no bundle yet
			default:
				return err
			}
		}
		profile.Modules = flags
		return nil
	})

	return profile
}

func (s *SessionService) enrichStep(ctx context.Context, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EnrichmentFailures.WithLabelValues(step).Inc()
			slogx.FromContext(ctx).Error("profile enrichment step panicked",
				slog.String("step", step), slog.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		metrics.EnrichmentFailures.WithLabelValues(step).Inc()
		slogx.FromContext(ctx).Warn("profile enrichment step skipped",
			slog.String("step", step), slog.Any("err", err))
	}
}

// Profile returns the enriched identity context for an authenticated account.
func (s *SessionService) Profile(ctx context.Context, accountID idx.ID) (*orgsdk.UserProfile, error) {
	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return s.enrichProfile(ctx, account), nil
}

type ChangePasswordParams struct {
	AccountID       idx.ID
	CurrentPassword string
	NewPassword     string
}

// ChangePassword verifies the current password before replacing it. The
// signing epoch bump revokes every outstanding session, including the one
// that made the request.
func (s *SessionService) ChangePassword(ctx context.Context, params ChangePasswordParams) error {
	account, err := s.store.Accounts().GetByID(ctx, params.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if err := cryptox.VerifyPassword(params.CurrentPassword, account.PasswordHash); err != nil {
		return ErrPasswordMismatch
	}

	hash, err := cryptox.HashPassword(params.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Accounts().SetPassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	slogx.FromContext(ctx).Info("password changed",
		slog.String("account_id", account.ID.String()))
	return nil
}

type ResetRequestParams struct {
	Email      string
	TenantSlug string
}

// RequestPasswordReset mints a reset token when the email resolves to an
// active account. Unknown emails are silently ignored so the endpoint cannot
// be used for enumeration; the HTTP response is identical either way.
func (s *SessionService) RequestPasswordReset(ctx context.Context, params ResetRequestParams) error {
	account, err := s.resolveAccount(ctx, normalizeEmail(params.Email), params.TenantSlug)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			slogx.FromContext(ctx).Info("password reset requested for unresolvable email")
			return nil
		}
		return err
	}
	if !account.CanAuthenticate() {
		return nil
	}

	var (
		token  *domain.LifecycleToken
		secret string
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		token, secret, err = s.lifecycle.Issue(ctx, tx, domain.TokenKindPasswordReset, account.TenantID, account.Email)
		return err
	})
	if err != nil {
		return err
	}

	s.notifier.PasswordResetIssued(ctx, account.Email, secret, token)
	return nil
}

type ResetConfirmParams struct {
	Email    string
	Token    string
	Password string
}

// ConfirmPasswordReset redeems a reset token and replaces the password.
// Consumption and the password write commit together; the epoch bump revokes
// all existing sessions. A token presented with the wrong email reads as
// unknown.
func (s *SessionService) ConfirmPasswordReset(ctx context.Context, params ResetConfirmParams) error {
	hash, err := cryptox.HashPassword(params.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.lifecycle.Consume(ctx, params.Token, domain.TokenKindPasswordReset, func(tx store.Tx, token *domain.LifecycleToken) error {
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
		if !account.CanAuthenticate() {
			return ErrAccountNotActive
		}
		return tx.Accounts().SetPassword(ctx, account.ID, hash)
	})
}
