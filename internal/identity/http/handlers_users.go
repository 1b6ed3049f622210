package http

import (
	"errors"
	"net/http"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/internal/identity/service"
	"github.com/orgstack/identity/pkg/httpx"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/orgsdk"
)

type userHandlers struct {
	accounts *service.AccountService
	sessions *service.SessionService
}

func (h *userHandlers) invite(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.InviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	tenantID, err := idx.Parse(httpx.TenantIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteUnauthorized(w, r, "token is invalid")
		return
	}

	token, err := h.accounts.Invite(r.Context(), service.InviteParams{
		TenantID: tenantID,
		Email:    req.Email,
		Role:     domain.Role(req.Role),
	})
	switch {
	case err == nil:
		httpx.WriteJSON(w, r, http.StatusCreated, orgsdk.InviteResponse{
			Email:     token.Email,
			Role:      req.Role,
			ExpiresAt: token.ExpiresAt,
		})
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteValidationError(w, r, map[string]string{"email": "this email already has an account"})
	case errors.Is(err, service.ErrSeatLimit):
		httpx.WriteForbidden(w, r, "the tenant has reached its plan's user limit")
	default:
		httpx.WriteServerError(w, r, err)
	}
}

func (h *userHandlers) activate(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.ActivateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteValidationError(w, r, map[string]string{"body": "request body is not valid JSON"})
		return
	}
	if fields := httpx.ValidateStruct(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	account, err := h.accounts.Activate(r.Context(), service.ActivateParams{
		Email:    req.Email,
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		writeTokenError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, orgsdk.ActivateResponse{
		UserID:   account.ID.String(),
		TenantID: account.TenantID.String(),
		Email:    account.Email,
	})
}

func (h *userHandlers) me(w http.ResponseWriter, r *http.Request) {
	accountID, err := idx.Parse(httpx.AccountIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteUnauthorized(w, r, "token is invalid")
		return
	}

	profile, err := h.sessions.Profile(r.Context(), accountID)
	if err != nil {
		httpx.WriteServerError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, profile)
}
