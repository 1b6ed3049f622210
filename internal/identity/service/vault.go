package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/metrics"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/orgsdk"
	"github.com/orgstack/identity/pkg/slogx"
)

var (
	ErrVaultNotConfigured = errors.New("payment credentials not configured")
	ErrPaymentsNotInPlan  = errors.New("tenant plan does not include payments")
)

// VaultService custodies per-tenant payment-provider credentials. Private
// parts (key secret, webhook secret) never leave the service in full: reads
// return masked or public views; PrivateBundle exists only for in-process
// callers and is never routed.
type VaultService struct {
	store store.Store
}

func NewVaultService(s store.Store) *VaultService {
	return &VaultService{store: s}
}

type PutCredentialsParams struct {
	TenantID      idx.ID
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// Put replaces the tenant's bundle whole. The tenant's plan must include
// payments.
func (s *VaultService) Put(ctx context.Context, params PutCredentialsParams) (*domain.PaymentCredentials, error) {
	if err := s.requirePaymentsPlan(ctx, params.TenantID); err != nil {
		return nil, err
	}

	stored, err := s.store.PaymentCredentials().Upsert(ctx, &domain.PaymentCredentials{
		TenantID:      params.TenantID,
		KeyID:         params.KeyID,
		KeySecret:     params.KeySecret,
		WebhookSecret: params.WebhookSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}

	metrics.CredentialWrites.Inc()
	slogx.FromContext(ctx).Info("payment credentials stored",
		slog.String("tenant_id", params.TenantID.String()),
		slog.Int("version", stored.Version),
	)
	return stored, nil
}

// GetMasked returns the admin read view: the public key in full, private
// parts reduced to a masked prefix and suffix.
func (s *VaultService) GetMasked(ctx context.Context, tenantID idx.ID) (*orgsdk.MaskedCredentialsResponse, error) {
	creds, err := s.get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &orgsdk.MaskedCredentialsResponse{
		KeyID:               creds.KeyID,
		KeySecretMasked:     domain.MaskSecret(creds.KeySecret),
		WebhookSecretMasked: domain.MaskSecret(creds.WebhookSecret),
		Version:             creds.Version,
		UpdatedAt:           creds.UpdatedAt,
	}, nil
}

// GetPublic returns only the publishable key.
func (s *VaultService) GetPublic(ctx context.Context, tenantID idx.ID) (*orgsdk.PublicCredentialsResponse, error) {
	creds, err := s.get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &orgsdk.PublicCredentialsResponse{KeyID: creds.KeyID}, nil
}

// PrivateBundle returns the full bundle for in-process integrations (signing
// provider requests, verifying webhooks). No HTTP route exposes it.
func (s *VaultService) PrivateBundle(ctx context.Context, tenantID idx.ID) (*domain.PaymentCredentials, error) {
	return s.get(ctx, tenantID)
}

func (s *VaultService) get(ctx context.Context, tenantID idx.ID) (*domain.PaymentCredentials, error) {
	creds, err := s.store.PaymentCredentials().Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVaultNotConfigured
		}
		return nil, err
	}
	return creds, nil
}

func (s *VaultService) requirePaymentsPlan(ctx context.Context, tenantID idx.ID) error {
	tenant, err := s.store.Tenants().GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTenantNotFound
		}
		return err
	}
	plan, err := s.store.Plans().GetByID(ctx, tenant.PlanID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if !plan.HasPayments {
		return ErrPaymentsNotInPlan
	}
	return nil
}
