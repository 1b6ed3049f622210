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
	"github.com/orgstack/identity/pkg/slogx"
)

var (
	ErrTokenNotFound    = errors.New("lifecycle token not found")
	ErrTokenExpired     = errors.New("lifecycle token expired")
	ErrTokenAlreadyUsed = errors.New("lifecycle token already used")
	ErrTokenSuperseded  = errors.New("lifecycle token superseded by a newer one")
)

// LifecycleService mints and redeems single-use, expiring tokens. Secrets are
// returned once at mint time; only fingerprints are persisted.
type LifecycleService struct {
	store store.Store
	now   func() time.Time
}

func NewLifecycleService(s store.Store) *LifecycleService {
	return &LifecycleService{store: s, now: time.Now}
}

// Issue mints a token of the given kind for a tenant and email, superseding
// any live token of the same kind for the same target. Returns the cleartext
// secret; it is never recoverable afterwards.
func (s *LifecycleService) Issue(ctx context.Context, tx store.Tx, kind domain.TokenKind, tenantID idx.ID, email string) (*domain.LifecycleToken, string, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	token := &domain.LifecycleToken{
		ID:        idx.NewAt(now),
		TokenHash: cryptox.FingerprintToken(secret),
		Kind:      kind,
		TenantID:  tenantID,
		Email:     email,
		ExpiresAt: now.Add(kind.TTL()),
		CreatedAt: now,
	}

	if err := tx.LifecycleTokens().Create(ctx, token); err != nil {
		return nil, "", fmt.Errorf("store token: %w", err)
	}
	if err := tx.LifecycleTokens().SupersedeOlder(ctx, kind, tenantID, email, token.ID); err != nil {
		return nil, "", fmt.Errorf("supersede older tokens: %w", err)
	}

	metrics.TokensIssued.WithLabelValues(string(kind)).Inc()
	slogx.FromContext(ctx).Info("lifecycle token issued",
		slog.String("kind", string(kind)),
		slog.String("tenant_id", tenantID.String()),
		slog.Time("expires_at", token.ExpiresAt),
	)
	return token, secret, nil
}

// Peek resolves a cleartext secret to its live token without consuming it.
func (s *LifecycleService) Peek(ctx context.Context, secret string, kind domain.TokenKind) (*domain.LifecycleToken, error) {
	token, err := s.store.LifecycleTokens().GetByHash(ctx, cryptox.FingerprintToken(secret))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if err := s.classify(token, kind); err != nil {
		return nil, err
	}
	return token, nil
}

// Consume atomically redeems a token and applies fn in the same transaction.
// If fn fails, the token stays unconsumed. Exactly one concurrent caller can
// redeem a given token.
func (s *LifecycleService) Consume(ctx context.Context, secret string, kind domain.TokenKind, fn func(tx store.Tx, token *domain.LifecycleToken) error) error {
	hash := cryptox.FingerprintToken(secret)

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		token, err := tx.LifecycleTokens().GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		if err := s.classify(token, kind); err != nil {
			return err
		}

		// Guarded update: losing it means someone else consumed the token
		// between our read and now.
		if err := tx.LifecycleTokens().Consume(ctx, token.ID, s.now()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTokenAlreadyUsed
			}
			return err
		}
		return fn(tx, token)
	})

	metrics.TokensConsumed.WithLabelValues(string(kind), consumeOutcome(err)).Inc()
	return err
}

// classify maps a stored token's state against the expected kind to the
// precise sentinel. A kind mismatch reads as not-found so a reset token leaks
// nothing about invites and vice versa.
func (s *LifecycleService) classify(token *domain.LifecycleToken, kind domain.TokenKind) error {
	if token.Kind != kind {
		return ErrTokenNotFound
	}
	if token.ConsumedAt != nil {
		return ErrTokenAlreadyUsed
	}
	if token.Superseded {
		return ErrTokenSuperseded
	}
	if !s.now().Before(token.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

func consumeOutcome(err error) string {
	switch {
	case err == nil:
		return "consumed"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenAlreadyUsed), errors.Is(err, ErrTokenSuperseded):
		return "already_used"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ReapExpired deletes tokens that expired before now. Run by housekeeping.
func (s *LifecycleService) ReapExpired(ctx context.Context) (int64, error) {
	n, err := s.store.LifecycleTokens().DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	if n > 0 {
		metrics.TokensReaped.Add(float64(n))
	}
	return n, nil
}
