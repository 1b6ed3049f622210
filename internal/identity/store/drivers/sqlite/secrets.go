package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/pkg/idx"
)

type credentialsRepo struct {
	q queryer
}

func (r *credentialsRepo) Upsert(ctx context.Context, creds *domain.PaymentCredentials) (*domain.PaymentCredentials, error) {
	now := time.Now()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_credentials (tenant_id, key_id, key_secret, webhook_secret, version, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			key_id = excluded.key_id,
			key_secret = excluded.key_secret,
			webhook_secret = excluded.webhook_secret,
			version = payment_credentials.version + 1,
			updated_at = excluded.updated_at`,
		creds.TenantID.String(), creds.KeyID, creds.KeySecret, creds.WebhookSecret,
		encodeTime(now),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return r.Get(ctx, creds.TenantID)
}

func (r *credentialsRepo) Get(ctx context.Context, tenantID idx.ID) (*domain.PaymentCredentials, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT tenant_id, key_id, key_secret, webhook_secret, version, updated_at
		FROM payment_credentials WHERE tenant_id = ?`, tenantID.String())

	var (
		creds         domain.PaymentCredentials
		id, updatedAt string
	)
	err := row.Scan(&id, &creds.KeyID, &creds.KeySecret, &creds.WebhookSecret,
		&creds.Version, &updatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if creds.TenantID, err = idx.Parse(id); err != nil {
		return nil, fmt.Errorf("credentials tenant id: %w", err)
	}
	if creds.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, fmt.Errorf("credentials updated_at: %w", err)
	}
	return &creds, nil
}
