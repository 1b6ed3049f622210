package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/pkg/idx"
)

type tokenRepo struct {
	q queryer
}

func (r *tokenRepo) Create(ctx context.Context, token *domain.LifecycleToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO lifecycle_tokens
			(id, token_hash, kind, tenant_id, email, expires_at, consumed_at, superseded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID.String(), token.TokenHash, string(token.Kind),
		token.TenantID.String(), token.Email, encodeTime(token.ExpiresAt),
		encodeTimePtr(token.ConsumedAt), token.Superseded, encodeTime(token.CreatedAt),
	)
	return mapErr(err)
}

func (r *tokenRepo) GetByHash(ctx context.Context, hash string) (*domain.LifecycleToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, token_hash, kind, tenant_id, email, expires_at, consumed_at, superseded, created_at
		FROM lifecycle_tokens WHERE token_hash = ?`, hash)

	var (
		token                domain.LifecycleToken
		id, tenantID, kind   string
		expiresAt, createdAt string
		consumedAt           sql.NullString
	)
	err := row.Scan(&id, &token.TokenHash, &kind, &tenantID, &token.Email,
		&expiresAt, &consumedAt, &token.Superseded, &createdAt)
	if err != nil {
		return nil, mapErr(err)
	}

	if token.ID, err = idx.Parse(id); err != nil {
		return nil, fmt.Errorf("token id: %w", err)
	}
	if token.TenantID, err = idx.Parse(tenantID); err != nil {
		return nil, fmt.Errorf("token tenant id: %w", err)
	}
	token.Kind = domain.TokenKind(kind)
	if token.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return nil, fmt.Errorf("token expires_at: %w", err)
	}
	if token.ConsumedAt, err = decodeTimePtr(consumedAt); err != nil {
		return nil, fmt.Errorf("token consumed_at: %w", err)
	}
	if token.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("token created_at: %w", err)
	}
	return &token, nil
}

// Consume is the single-use guard: the WHERE clause only matches a live
// token, so exactly one concurrent caller can win.
func (r *tokenRepo) Consume(ctx context.Context, id idx.ID, now time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE lifecycle_tokens
		SET consumed_at = ?
		WHERE id = ?
		  AND consumed_at IS NULL
		  AND superseded = 0
		  AND expires_at > ?`,
		encodeTime(now), id.String(), encodeTime(now))
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *tokenRepo) SupersedeOlder(ctx context.Context, kind domain.TokenKind, tenantID idx.ID, email string, keep idx.ID) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE lifecycle_tokens
		SET superseded = 1
		WHERE kind = ? AND tenant_id = ? AND email = ?
		  AND id != ? AND consumed_at IS NULL AND superseded = 0`,
		string(kind), tenantID.String(), email, keep.String())
	return mapErr(err)
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM lifecycle_tokens WHERE expires_at < ?`, encodeTime(cutoff))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
