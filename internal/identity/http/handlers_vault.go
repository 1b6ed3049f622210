package http

import (
	"errors"
	"net/http"

	"github.com/orgstack/identity/internal/identity/service"
	"github.com/orgstack/identity/pkg/httpx"
	"github.com/orgstack/identity/pkg/idx"
	"github.com/orgstack/identity/pkg/orgsdk"
)

type vaultHandlers struct {
	vault *service.VaultService
}

func (h *vaultHandlers) put(w http.ResponseWriter, r *http.Request) {
	var req orgsdk.PaymentCredentialsRequest
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

	stored, err := h.vault.Put(r.Context(), service.PutCredentialsParams{
		TenantID:      tenantID,
		KeyID:         req.KeyID,
		KeySecret:     req.KeySecret,
		WebhookSecret: req.WebhookSecret,
	})
	switch {
	case err == nil:
		httpx.WriteNoCache(w)
		httpx.WriteJSON(w, r, http.StatusOK, orgsdk.PaymentCredentialsResponse{
			Version:   stored.Version,
			UpdatedAt: stored.UpdatedAt,
		})
	case errors.Is(err, service.ErrPaymentsNotInPlan):
		httpx.WriteForbidden(w, r, "the tenant's plan does not include payments")
	default:
		httpx.WriteServerError(w, r, err)
	}
}

func (h *vaultHandlers) getMasked(w http.ResponseWriter, r *http.Request) {
	tenantID, err := idx.Parse(httpx.TenantIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteUnauthorized(w, r, "token is invalid")
		return
	}

	masked, err := h.vault.GetMasked(r.Context(), tenantID)
	switch {
	case err == nil:
		httpx.WriteNoCache(w)
		httpx.WriteJSON(w, r, http.StatusOK, masked)
	case errors.Is(err, service.ErrVaultNotConfigured):
		httpx.WriteError(w, r, http.StatusNotFound, "not_configured", "payment credentials have not been set")
	default:
		httpx.WriteServerError(w, r, err)
	}
}

func (h *vaultHandlers) getPublic(w http.ResponseWriter, r *http.Request) {
	tenantID, err := idx.Parse(httpx.TenantIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteUnauthorized(w, r, "token is invalid")
		return
	}

	public, err := h.vault.GetPublic(r.Context(), tenantID)
	switch {
	case err == nil:
		httpx.WriteJSON(w, r, http.StatusOK, public)
	case errors.Is(err, service.ErrVaultNotConfigured):
		httpx.WriteError(w, r, http.StatusNotFound, "not_configured", "payment credentials have not been set")
	default:
		httpx.WriteServerError(w, r, err)
	}
}
