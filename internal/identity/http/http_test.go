package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/service"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/internal/identity/store/drivers/sqlite"
	"github.com/orgstack/identity/pkg/cryptox"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/jwtx"
	"github.com/orgstack/identity/pkg/orgsdk"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "identity-http-test-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	// Keep login rate limits out of the way; each test fires many requests
	// from the same loopback address.
	os.Setenv("RATELIMIT_STRICT_RPS", "1000")
	os.Setenv("RATELIMIT_STRICT_BURST", "1000")
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type testServer struct {
	*httptest.Server
	client   *orgsdk.Client
	store    store.Store
	notifier *captureNotifier
}

type captureNotifier struct {
	invites map[string]string
	resets  map[string]string
}

func (n *captureNotifier) InviteIssued(_ context.Context, email, _, secret string, _ *domain.LifecycleToken) {
	n.invites[email] = secret
}

func (n *captureNotifier) PasswordResetIssued(_ context.Context, email, secret string, _ *domain.LifecycleToken) {
	n.resets[email] = secret
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test-key", pemKey)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)

	notifier := &captureNotifier{invites: map[string]string{}, resets: map[string]string{}}
	lifecycle := service.NewLifecycleService(s)

	handler := NewRouter(Deps{
		Store:    s,
		Accounts: service.NewAccountService(s, lifecycle, notifier),
		Sessions: service.NewSessionService(s, lifecycle, notifier, signer, "identity-test", time.Hour),
		Vault:    service.NewVaultService(s),
		Verifier: jwtx.NewVerifierEdDSA(keys, "identity-test"),
		Keys:     keys,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testServer{
		Server:   server,
		client:   orgsdk.NewClient(server.URL),
		store:    s,
		notifier: notifier,
	}
}

func (ts *testServer) registerAndLogin(t *testing.T, tenantName, email, password string) (*orgsdk.RegisterResponse, string) {
	t.Helper()
	ctx := context.Background()

	reg, err := ts.client.Register(ctx, orgsdk.RegisterRequest{
		TenantName: tenantName, Email: email, Password: password,
	})
	require.NoError(t, err)

	login, err := ts.client.Login(ctx, orgsdk.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	return reg, login.AccessToken
}

func TestRegisterAndLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	reg, token := ts.registerAndLogin(t, "Acme Corp", "admin@example.com", "correct-horse-battery")
	require.Equal(t, "acme-corp", reg.Slug)

	me, err := ts.client.Me(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", me.Email)
	require.Equal(t, "admin", me.Role)
	require.NotNil(t, me.Tenant)
	require.Equal(t, "acme-corp", me.Tenant.Slug)
	require.NotNil(t, me.Plan)
	require.Equal(t, "free", me.Plan.Name)
}

func TestValidationEnvelope(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.client.Register(ctx, orgsdk.RegisterRequest{
		TenantName: "A", Email: "not-an-email", Password: "short",
	})
	apiErr, ok := orgsdk.IsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "validation_failed", apiErr.Code)
	require.Contains(t, apiErr.Fields, "tenant_name")
	require.Contains(t, apiErr.Fields, "email")
	require.Contains(t, apiErr.Fields, "password")
}

func TestLoginErrorEnvelopeHidesEnumeration(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.registerAndLogin(t, "Acme", "admin@example.com", "correct-horse-battery")

	_, errWrong := ts.client.Login(ctx, orgsdk.LoginRequest{
		Email: "admin@example.com", Password: "wrong-password-1",
	})
	_, errGhost := ts.client.Login(ctx, orgsdk.LoginRequest{
		Email: "ghost@example.com", Password: "wrong-password-1",
	})

	wrongErr, ok := orgsdk.IsAPIError(errWrong)
	require.True(t, ok)
	ghostErr, ok := orgsdk.IsAPIError(errGhost)
	require.True(t, ok)

	require.Equal(t, http.StatusUnauthorized, wrongErr.StatusCode)
	require.Equal(t, wrongErr.Code, ghostErr.Code)
	require.Equal(t, wrongErr.Description, ghostErr.Description)
}

func TestInviteActivateOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	_, adminToken := ts.registerAndLogin(t, "Acme", "admin@example.com", "correct-horse-battery")

	invite, err := ts.client.Invite(ctx, adminToken, orgsdk.InviteRequest{
		Email: "staff@example.com", Role: "staff",
	})
	require.NoError(t, err)
	require.Equal(t, "staff@example.com", invite.Email)
	require.True(t, invite.ExpiresAt.After(time.Now().Add(71*time.Hour)))

	secret := ts.notifier.invites["staff@example.com"]
	require.NotEmpty(t, secret)

	activated, err := ts.client.Activate(ctx, orgsdk.ActivateRequest{
		Email: "staff@example.com", Token: secret, Password: "staff-password-123",
	})
	require.NoError(t, err)
	require.Equal(t, "staff@example.com", activated.Email)

	t.Run("replay gets token_used", func(t *testing.T) {
		_, err := ts.client.Activate(ctx, orgsdk.ActivateRequest{
			Email: "staff@example.com", Token: secret, Password: "other-password-123",
		})
		apiErr, ok := orgsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "token_used", apiErr.Code)
	})

	t.Run("staff cannot invite", func(t *testing.T) {
		login, err := ts.client.Login(ctx, orgsdk.LoginRequest{
			Email: "staff@example.com", Password: "staff-password-123",
		})
		require.NoError(t, err)

		_, err = ts.client.Invite(ctx, login.AccessToken, orgsdk.InviteRequest{
			Email: "more@example.com", Role: "staff",
		})
		apiErr, ok := orgsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		require.Equal(t, "forbidden", apiErr.Code)
	})
}

func TestPasswordResetOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	_, oldToken := ts.registerAndLogin(t, "Acme", "admin@example.com", "correct-horse-battery")

	t.Run("unknown email gets the same 202", func(t *testing.T) {
		known, err := ts.client.RequestPasswordReset(ctx, orgsdk.PasswordResetRequestRequest{Email: "admin@example.com"})
		require.NoError(t, err)
		unknown, err := ts.client.RequestPasswordReset(ctx, orgsdk.PasswordResetRequestRequest{Email: "ghost@example.com"})
		require.NoError(t, err)
		require.Equal(t, known.Message, unknown.Message)
	})

	secret := ts.notifier.resets["admin@example.com"]
	require.NotEmpty(t, secret)
	require.Empty(t, ts.notifier.resets["ghost@example.com"])

	_, err := ts.client.ConfirmPasswordReset(ctx, orgsdk.PasswordResetConfirmRequest{
		Email: "admin@example.com", Token: secret, Password: "brand-new-password-1",
	})
	require.NoError(t, err)

	t.Run("pre-reset session is revoked", func(t *testing.T) {
		_, err := ts.client.Me(ctx, oldToken)
		apiErr, ok := orgsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("new password works", func(t *testing.T) {
		_, err := ts.client.Login(ctx, orgsdk.LoginRequest{
			Email: "admin@example.com", Password: "brand-new-password-1",
		})
		require.NoError(t, err)
	})
}

func TestPasswordChangeRevokesSessions(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	_, token := ts.registerAndLogin(t, "Acme", "admin@example.com", "correct-horse-battery")

	t.Run("wrong current password", func(t *testing.T) {
		_, err := ts.client.ChangePassword(ctx, token, orgsdk.PasswordChangeRequest{
			CurrentPassword: "nope", NewPassword: "brand-new-password-1",
		})
		apiErr, ok := orgsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		require.Contains(t, apiErr.Fields, "current_password")
	})

	_, err := ts.client.ChangePassword(ctx, token, orgsdk.PasswordChangeRequest{
		CurrentPassword: "correct-horse-battery", NewPassword: "brand-new-password-1",
	})
	require.NoError(t, err)

	// The session that made the change is revoked too.
	_, err = ts.client.Me(ctx, token)
	apiErr, ok := orgsdk.IsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

// seedPaidTenant writes a growth-plan tenant directly; plan changes have no
// HTTP surface.
func seedPaidTenant(t *testing.T, ts *testServer, slug, email, password string) string {
	t.Helper()
	ctx := context.Background()

	plan, err := ts.store.Plans().GetByName(ctx, "growth")
	require.NoError(t, err)
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now()
	tenant := &domain.Tenant{ID: idx.NewAt(now), Name: slug, Slug: slug, PlanID: plan.ID, CreatedAt: now}
	account := &domain.Account{
		ID: idx.NewAt(now), TenantID: tenant.ID, Email: email, PasswordHash: hash,
		Role: domain.RoleAdmin, Status: domain.AccountActive, SigningEpoch: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	err = ts.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tenants().Create(ctx, tenant); err != nil {
			return err
		}
		return tx.Accounts().Create(ctx, account)
	})
	require.NoError(t, err)

	login, err := ts.client.Login(ctx, orgsdk.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	return login.AccessToken
}

func TestPaymentCredentialsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	adminToken := seedPaidTenant(t, ts, "paid-co", "admin@paid.example", "correct-horse-battery")

	const keySecret = "sk_live_0123456789abcdef"
	const webhookSecret = "whsec_0123456789abcdef"

	stored, err := ts.client.PutPaymentCredentials(ctx, adminToken, orgsdk.PaymentCredentialsRequest{
		KeyID: "pk_live_abc123", KeySecret: keySecret, WebhookSecret: webhookSecret,
	})
	require.NoError(t, err)
	require.Equal(t, 1, stored.Version)

	t.Run("masked read never carries full secrets", func(t *testing.T) {
		resp, err := ts.Client().Do(authedRequest(t, ts.URL+"/v1/tenant/payment-credentials", adminToken))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotContains(t, string(body), keySecret)
		require.NotContains(t, string(body), webhookSecret)

		var masked orgsdk.MaskedCredentialsResponse
		require.NoError(t, json.Unmarshal(body, &masked))
		require.Equal(t, "pk_live_abc123", masked.KeyID)
		require.Equal(t, "sk_live_****cdef", masked.KeySecretMasked)
	})

	t.Run("staff can read only the public view", func(t *testing.T) {
		_, err := ts.client.Invite(ctx, adminToken, orgsdk.InviteRequest{
			Email: "staff@paid.example", Role: "staff",
		})
		require.NoError(t, err)
		_, err = ts.client.Activate(ctx, orgsdk.ActivateRequest{
			Email: "staff@paid.example", Token: ts.notifier.invites["staff@paid.example"], Password: "staff-password-123",
		})
		require.NoError(t, err)
		staffLogin, err := ts.client.Login(ctx, orgsdk.LoginRequest{
			Email: "staff@paid.example", Password: "staff-password-123",
		})
		require.NoError(t, err)

		public, err := ts.client.GetPublicPaymentCredentials(ctx, staffLogin.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "pk_live_abc123", public.KeyID)

		_, err = ts.client.GetMaskedPaymentCredentials(ctx, staffLogin.AccessToken)
		apiErr, ok := orgsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

		_, err = ts.client.PutPaymentCredentials(ctx, staffLogin.AccessToken, orgsdk.PaymentCredentialsRequest{
			KeyID: "pk_live_hijack", KeySecret: "sk_live_hijack_secret", WebhookSecret: "whsec_hijack_secret",
		})
		apiErr, ok = orgsdk.IsAPIError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})

	t.Run("no route serves the private bundle", func(t *testing.T) {
		paths := []string{
			"/v1/tenant/payment-credentials/private",
			"/v1/tenant/payment-credentials/full",
			"/v1/tenant/payment-credentials/secret",
		}
		for _, p := range paths {
			resp, err := ts.Client().Do(authedRequest(t, ts.URL+p, adminToken))
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusNotFound, resp.StatusCode, p)
		}
	})
}

func TestUnauthenticatedEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/v1/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	var envelope orgsdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "invalid_token", envelope.Error)
}

func TestGarbageBearerToken(t *testing.T) {
	ts := newTestServer(t)

	req := authedRequest(t, ts.URL+"/v1/me", "not.a.jwt")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	t.Run("metrics exposed", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(body), "identity_"))
	})
}

func authedRequest(t *testing.T, url, token string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
