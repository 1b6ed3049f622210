package service

import (
	"context"
	"log/slog"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/pkg/slogx"
)

// Notifier delivers lifecycle token secrets out of band. Delivery failures
// must not fail the minting request; implementations log and move on.
type Notifier interface {
	InviteIssued(ctx context.Context, email, tenantName, secret string, token *domain.LifecycleToken)
	PasswordResetIssued(ctx context.Context, email, secret string, token *domain.LifecycleToken)
}

// LogNotifier writes delivery events to the structured log. It stands in for
// a mail integration in development and tests; the secret itself is never
// logged.
type LogNotifier struct{}

func (LogNotifier) InviteIssued(ctx context.Context, email, tenantName, secret string, token *domain.LifecycleToken) {
	slogx.FromContext(ctx).Info("invite delivery requested",
		slog.String("tenant", tenantName),
		slog.Time("expires_at", token.ExpiresAt),
	)
}

func (LogNotifier) PasswordResetIssued(ctx context.Context, email, secret string, token *domain.LifecycleToken) {
	slogx.FromContext(ctx).Info("password reset delivery requested",
		slog.Time("expires_at", token.ExpiresAt),
	)
}
