package http

import (
	"errors"
	"net/http"

	"github.com/orgstack/identity/internal/identity/service"
	"github.com/orgstack/identity/pkg/httpx"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/orgsdk"
)

type authHandlers struct {
	accounts *service.AccountService
	sessions *service.SessionService
}

func (h *authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	result, err := h.accounts.Register(r.Context(), service.RegisterParams{
		TenantName: req.TenantName,
		Slug:       req.Slug,
		Industry:   req.Industry,
		Email:      req.Email,
		Password:   req.Password,
	})
	switch {
	case err == nil:
		httpx.WriteJSON(w, r, http.StatusCreated, orgsdk.RegisterResponse{
			TenantID: result.Tenant.ID.String(),
			Slug:     result.Tenant.Slug,
			UserID:   result.Account.ID.String(),
		})
	case errors.Is(err, service.ErrSlugTaken):
		httpx.WriteValidationError(w, r, map[string]string{"slug": "this slug is already taken"})
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteValidationError(w, r, map[string]string{"email": "this email is already registered"})
	default:
		httpx.WriteServerError(w, r, err)
	}
}

func (h *authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	result, err := h.sessions.Login(r.Context(), service.LoginParams{
		Email:      req.Email,
		Password:   req.Password,
		TenantSlug: req.TenantSlug,
	})
	switch {
	case err == nil:
		httpx.WriteNoCache(w)
		httpx.WriteJSON(w, r, http.StatusOK, orgsdk.LoginResponse{
			AccessToken: result.AccessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(result.ExpiresIn.Seconds()),
			Profile:     result.Profile,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, r, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, service.ErrAccountNotActive):
		httpx.WriteError(w, r, http.StatusUnauthorized, "account_not_active", "this account cannot log in")
	default:
		httpx.WriteServerError(w, r, err)
	}
}

func (h *authHandlers) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.PasswordResetRequestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	if err := h.sessions.RequestPasswordReset(r.Context(), service.ResetRequestParams{
		Email:      req.Email,
		TenantSlug: req.TenantSlug,
	}); err != nil {
		httpx.WriteServerError(w, r, err)
		return
	}

	// Identical body whether or not the email resolved.
	httpx.WriteJSON(w, r, http.StatusAccepted, orgsdk.PasswordResetRequestResponse{
		Message: "if the email is registered, a reset link has been sent",
	})
}

func (h *authHandlers) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.PasswordResetConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	err := h.sessions.ConfirmPasswordReset(r.Context(), service.ResetConfirmParams{
		Email:    req.Email,
		Token:    req.Token,
		Password: req.Password,
	})
	switch {
	case err == nil:
		httpx.WriteJSON(w, r, http.StatusOK, orgsdk.PasswordResetConfirmResponse{
			Message: "password has been reset",
		})
	default:
		writeTokenError(w, r, err)
	}
}

func (h *authHandlers) passwordChange(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.PasswordChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	accountID, err := idx.Parse(httpx.AccountIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteUnauthorized(w, r, "token is invalid")
		return
	}

	err = h.sessions.ChangePassword(r.Context(), service.ChangePasswordParams{
		AccountID:       accountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	switch {
	case err == nil:
		httpx.WriteJSON(w, r, http.StatusOK, orgsdk.PasswordChangeResponse{
			Message: "password has been changed; all sessions are now invalid",
		})
	case errors.Is(err, service.ErrPasswordMismatch):
		httpx.WriteValidationError(w, r, map[string]string{"current_password": "current password is incorrect"})
	default:
		httpx.WriteServerError(w, r, err)
	}
}

// writeTokenError renders lifecycle token failures. Already-used and
// superseded share one message so a stolen superseded token reveals nothing
// about its replacement.
func writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, r, http.StatusUnauthorized, "token_expired", "this token has expired; request a new one")
	case errors.Is(err, service.ErrTokenAlreadyUsed), errors.Is(err, service.ErrTokenSuperseded):
		httpx.WriteError(w, r, http.StatusUnauthorized, "token_used", "this token is no longer valid")
	case errors.Is(err, service.ErrTokenNotFound), errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrAccountNotActive):
		httpx.WriteError(w, r, http.StatusUnauthorized, "token_invalid", "this token is not valid")
	default:
		httpx.WriteServerError(w, r, err)
	}
}
