package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/idx"
)

type accountRepo struct {
	q queryer
}

const accountColumns = `id, tenant_id, email, password_hash, role, status, signing_epoch, created_at, updated_at`

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID.String(), account.TenantID.String(), account.Email,
		account.PasswordHash, string(account.Role), string(account.Status),
		account.SigningEpoch, encodeTime(account.CreatedAt), encodeTime(account.UpdatedAt),
	)
	return mapErr(err)
}

func (r *accountRepo) GetByID(ctx context.Context, id idx.ID) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String())
	return scanAccount(row)
}

func (r *accountRepo) GetByTenantEmail(ctx context.Context, tenantID idx.ID, email string) (*domain.Account, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND email = ?`,
		tenantID.String(), email)
	return scanAccount(row)
}

func (r *accountRepo) ListByEmail(ctx context.Context, email string) ([]*domain.Account, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE email = ? ORDER BY id`, email)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *accountRepo) CountByTenant(ctx context.Context, tenantID idx.ID) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts WHERE tenant_id = ?`, tenantID.String()).Scan(&count)
	return count, mapErr(err)
}

func (r *accountRepo) UpdateStatus(ctx context.Context, id idx.ID, status domain.AccountStatus) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), encodeTime(time.Now()), id.String())
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (r *accountRepo) SetPassword(ctx context.Context, id idx.ID, passwordHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?, signing_epoch = signing_epoch + 1, updated_at = ?
		WHERE id = ?`,
		passwordHash, encodeTime(time.Now()), id.String())
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

// requireRow maps a zero-row update to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		account              domain.Account
		id, tenantID         string
		role, status         string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &tenantID, &account.Email, &account.PasswordHash,
		&role, &status, &account.SigningEpoch, &createdAt, &updatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	if account.ID, err = idx.Parse(id); err != nil {
		return nil, fmt.Errorf("account id: %w", err)
	}
	if account.TenantID, err = idx.Parse(tenantID); err != nil {
		return nil, fmt.Errorf("account tenant id: %w", err)
	}
	account.Role = domain.Role(role)
	account.Status = domain.AccountStatus(status)
	if account.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("account created_at: %w", err)
	}
	if account.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, fmt.Errorf("account updated_at: %w", err)
	}
	return &account, nil
}
