package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/cryptox"
	"github.com/orgstack/identity/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTenant(t *testing.T, s *Store, slug string) *domain.Tenant {
	t.Helper()
	ctx := context.Background()

	plan, err := s.Plans().GetByName(ctx, "growth")
	require.NoError(t, err)

	tenant := &domain.Tenant{
		ID:        idx.New(),
		Name:      "Tenant " + slug,
		Slug:      slug,
		PlanID:    plan.ID,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Tenants().Create(ctx, tenant))
	return tenant
}

func seedAccount(t *testing.T, s *Store, tenantID idx.ID, email string) *domain.Account {
	t.Helper()
	now := time.Now()
	account := &domain.Account{
		ID:           idx.New(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleStaff,
		Status:       domain.AccountActive,
		SigningEpoch: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Accounts().Create(context.Background(), account))
	return account
}

func TestAccountsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")
	account := seedAccount(t, s, tenant.ID, "a@example.com")

	got, err := s.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, account.Email, got.Email)
	require.Equal(t, domain.RoleStaff, got.Role)
	require.Equal(t, int64(1), got.SigningEpoch)

	got, err = s.Accounts().GetByTenantEmail(ctx, tenant.ID, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	count, err := s.Accounts().CountByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAccountsUniquePerTenant(t *testing.T) {
	s := newTestStore(t)
	tenantA := seedTenant(t, s, "alpha")
	tenantB := seedTenant(t, s, "beta")

	seedAccount(t, s, tenantA.ID, "dup@example.com")
	// Same email under another tenant is legal.
	seedAccount(t, s, tenantB.ID, "dup@example.com")

	dup := seedAccount(t, s, tenantA.ID, "other@example.com")
	dup.ID = idx.New()
	dup.Email = "dup@example.com"
	err := s.Accounts().Create(context.Background(), dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	accounts, err := s.Accounts().ListByEmail(context.Background(), "dup@example.com")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
}

func TestSetPasswordBumpsEpoch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")
	account := seedAccount(t, s, tenant.ID, "a@example.com")

	require.NoError(t, s.Accounts().SetPassword(ctx, account.ID, "newhash"))

	got, err := s.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "newhash", got.PasswordHash)
	require.Equal(t, int64(2), got.SigningEpoch)

	err = s.Accounts().SetPassword(ctx, idx.New(), "x")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTenantLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")

	bySlug, err := s.Tenants().GetBySlug(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, tenant.ID, bySlug.ID)

	_, err = s.Tenants().GetBySlug(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := *tenant
	dup.ID = idx.New()
	require.ErrorIs(t, s.Tenants().Create(ctx, &dup), store.ErrAlreadyExists)
}

func TestPlansSeeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	free, err := s.Plans().GetByName(ctx, "free")
	require.NoError(t, err)
	require.False(t, free.HasPayments)
	require.Equal(t, 5, free.MaxUsers)

	growth, err := s.Plans().GetByName(ctx, "growth")
	require.NoError(t, err)
	require.True(t, growth.HasPayments)

	byID, err := s.Plans().GetByID(ctx, growth.ID)
	require.NoError(t, err)
	require.Equal(t, "growth", byID.Name)
}

func mintToken(t *testing.T, s *Store, tenantID idx.ID, kind domain.TokenKind, email string, ttl time.Duration) (*domain.LifecycleToken, string) {
	t.Helper()
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)

	now := time.Now()
	token := &domain.LifecycleToken{
		ID:        idx.New(),
		TokenHash: cryptox.FingerprintToken(secret),
		Kind:      kind,
		TenantID:  tenantID,
		Email:     email,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	require.NoError(t, s.LifecycleTokens().Create(context.Background(), token))
	return token, secret
}

func TestTokenConsumeSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")
	token, secret := mintToken(t, s, tenant.ID, domain.TokenKindInvite, "a@example.com", time.Hour)

	got, err := s.LifecycleTokens().GetByHash(ctx, cryptox.FingerprintToken(secret))
	require.NoError(t, err)
	require.Equal(t, token.ID, got.ID)
	require.Nil(t, got.ConsumedAt)

	require.NoError(t, s.LifecycleTokens().Consume(ctx, token.ID, time.Now()))

	// Second consume loses the guard.
	err = s.LifecycleTokens().Consume(ctx, token.ID, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.LifecycleTokens().GetByHash(ctx, cryptox.FingerprintToken(secret))
	require.NoError(t, err)
	require.NotNil(t, got.ConsumedAt)
}

func TestTokenConsumeConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	tenant := seedTenant(t, s, "acme")
	token, _ := mintToken(t, s, tenant.ID, domain.TokenKindInvite, "a@example.com", time.Hour)

	const racers = 8
	var (
		wg   sync.WaitGroup
		wins int64
		mu   sync.Mutex
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.LifecycleTokens().Consume(context.Background(), token.ID, time.Now())
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("unexpected consume error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), wins)
}

func TestTokenConsumeRejectsExpired(t *testing.T) {
	s := newTestStore(t)
	tenant := seedTenant(t, s, "acme")
	token, _ := mintToken(t, s, tenant.ID, domain.TokenKindInvite, "a@example.com", -time.Minute)

	err := s.LifecycleTokens().Consume(context.Background(), token.ID, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSupersedeOlder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")

	older, _ := mintToken(t, s, tenant.ID, domain.TokenKindPasswordReset, "a@example.com", time.Hour)
	newer, _ := mintToken(t, s, tenant.ID, domain.TokenKindPasswordReset, "a@example.com", time.Hour)
	otherKind, _ := mintToken(t, s, tenant.ID, domain.TokenKindInvite, "a@example.com", time.Hour)

	require.NoError(t, s.LifecycleTokens().SupersedeOlder(ctx,
		domain.TokenKindPasswordReset, tenant.ID, "a@example.com", newer.ID))

	got, err := s.LifecycleTokens().GetByHash(ctx, older.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Superseded)
	require.ErrorIs(t, s.LifecycleTokens().Consume(ctx, older.ID, time.Now()), store.ErrNotFound)

	got, err = s.LifecycleTokens().GetByHash(ctx, newer.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Superseded)

	got, err = s.LifecycleTokens().GetByHash(ctx, otherKind.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Superseded, "other kinds are untouched")
}

func TestDeleteExpired(t *testing.T) {
	s := newTestStore(t)
	tenant := seedTenant(t, s, "acme")
	mintToken(t, s, tenant.ID, domain.TokenKindInvite, "old@example.com", -2*time.Hour)
	fresh, _ := mintToken(t, s, tenant.ID, domain.TokenKindInvite, "new@example.com", time.Hour)

	n, err := s.LifecycleTokens().DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.LifecycleTokens().GetByHash(context.Background(), fresh.TokenHash)
	require.NoError(t, err)
}

func TestPaymentCredentialsVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")

	_, err := s.PaymentCredentials().Get(ctx, tenant.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	first, err := s.PaymentCredentials().Upsert(ctx, &domain.PaymentCredentials{
		TenantID:      tenant.ID,
		KeyID:         "pk_live_abc",
		KeySecret:     "sk_live_secret_value_1",
		WebhookSecret: "whsec_secret_value_1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	second, err := s.PaymentCredentials().Upsert(ctx, &domain.PaymentCredentials{
		TenantID:      tenant.ID,
		KeyID:         "pk_live_def",
		KeySecret:     "sk_live_secret_value_2",
		WebhookSecret: "whsec_secret_value_2",
	})
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
	require.Equal(t, "pk_live_def", second.KeyID)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := seedTenant(t, s, "acme")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now()
		if err := tx.Accounts().Create(ctx, &domain.Account{
			ID: idx.New(), TenantID: tenant.ID, Email: "tx@example.com",
			Role: domain.RoleStaff, Status: domain.AccountActive,
			SigningEpoch: 1, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Accounts().GetByTenantEmail(ctx, tenant.ID, "tx@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}
