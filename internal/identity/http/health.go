package http

import (
	"net/http"

	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/pkg/httpx"
	"github.com/orgstack/identity/pkg/jwtx"
)

type healthHandlers struct {
	store store.Store
	keys  *jwtx.KeySet
}

// livez reports process liveness only.
func (h *healthHandlers) livez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports whether the service can actually do work: database
// reachable and at least one signing key loaded.
func (h *healthHandlers) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable", "reason": "database unreachable",
		})
		return
	}
	if !h.keys.IsReady() {
		httpx.WriteJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable", "reason": "signing keys not loaded",
		})
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
