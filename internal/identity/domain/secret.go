package domain

import (
	"time"

	"github.com/orgstack/identity/pkg/idx"
)

// PaymentCredentials is a tenant's payment-provider bundle. KeyID is
// publishable; KeySecret and WebhookSecret are private and must never leave
// the service in full.
type PaymentCredentials struct {
	TenantID      idx.ID
	KeyID         string
	KeySecret     string
	WebhookSecret string

	// Version increments on every write so operators can tell whether a
	// rotation actually landed without seeing the secret.
	Version   int
	UpdatedAt time.Time
}

// MaskSecret reduces a secret to its first 8 and last 4 characters. Short
// secrets are fully redacted rather than partially revealed.
func MaskSecret(secret string) string {
	if len(secret) < 16 {
		return "****"
	}
	return secret[:8] + "****" + secret[len(secret)-4:]
}
