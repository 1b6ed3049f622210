package orgsdk

import "time"

// RegisterRequest provisions a new tenant together with its first admin
// account. Slug is optional; when empty the server derives one from Name.
type RegisterRequest struct {
	TenantName string `json:"tenant_name" validate:"required,min=2,max=120"`
	Slug       string `json:"slug,omitempty" validate:"omitempty,min=2,max=64,lowercase"`
	Industry   string `json:"industry,omitempty" validate:"omitempty,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=10,max=128"`
}

type RegisterResponse struct {
	TenantID string `json:"tenant_id"`
	Slug     string `json:"slug"`
	UserID   string `json:"user_id"`
}

// LoginRequest authenticates an account. TenantSlug disambiguates when the
// same email exists under more than one tenant; without it the email must be
// globally unique.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	TenantSlug string `json:"tenant_slug,omitempty" validate:"omitempty,min=2,max=64"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	Profile     *UserProfile `json:"profile,omitempty"`
}

// UserProfile is the enriched identity context returned from login and
// GET /v1/me. Plan and Modules are best-effort: either may be nil when the
// corresponding lookup failed, without failing the request.
type UserProfile struct {
	UserID   string       `json:"user_id"`
	TenantID string       `json:"tenant_id"`
	Email    string       `json:"email"`
	Role     string       `json:"role"`
	Tenant   *TenantInfo  `json:"tenant,omitempty"`
	Plan     *PlanInfo    `json:"plan,omitempty"`
	Modules  *ModuleFlags `json:"modules,omitempty"`
}

type TenantInfo struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Industry string `json:"industry,omitempty"`
}

type PlanInfo struct {
	Name     string `json:"name"`
	MaxUsers int    `json:"max_users"`
}

// ModuleFlags reports which optional product areas are switched on for the
// tenant, derived from its plan and stored credentials.
type ModuleFlags struct {
	Payments          bool `json:"payments"`
	PaymentsConfigured bool `json:"payments_configured"`
}

type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin staff"`
}

type InviteResponse struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActivateRequest redeems an invite token, setting the account's first
// password and flipping it to active. Email must match the address the token
// was issued for.
type ActivateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=10,max=128"`
}

type ActivateResponse struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
}

type PasswordResetRequestRequest struct {
	Email      string `json:"email" validate:"required,email"`
	TenantSlug string `json:"tenant_slug,omitempty" validate:"omitempty,min=2,max=64"`
}

// PasswordResetRequestResponse is intentionally identical for known and
// unknown emails.
type PasswordResetRequestResponse struct {
	Message string `json:"message"`
}

type PasswordResetConfirmRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=10,max=128"`
}

type PasswordResetConfirmResponse struct {
	Message string `json:"message"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=10,max=128"`
}

type PasswordChangeResponse struct {
	Message string `json:"message"`
}

// PaymentCredentialsRequest stores a tenant's payment-provider bundle.
// All three parts are replaced together.
type PaymentCredentialsRequest struct {
	KeyID         string `json:"key_id" validate:"required,min=8,max=256"`
	KeySecret     string `json:"key_secret" validate:"required,min=8,max=256"`
	WebhookSecret string `json:"webhook_secret" validate:"required,min=8,max=256"`
}

type PaymentCredentialsResponse struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaskedCredentialsResponse is the admin read view. Secrets never appear in
// full; each is reduced to its first 8 and last 4 characters.
type MaskedCredentialsResponse struct {
	KeyID               string    `json:"key_id"`
	KeySecretMasked     string    `json:"key_secret_masked"`
	WebhookSecretMasked string    `json:"webhook_secret_masked"`
	Version             int       `json:"version"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PublicCredentialsResponse carries only the publishable key, readable by any
// active account in the tenant.
type PublicCredentialsResponse struct {
	KeyID string `json:"key_id"`
}
