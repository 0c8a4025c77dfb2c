package httpapi

import (
	"net/http"
	"strings"

	"onmint.org/internal/auth"
)

type merchantRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Active   *bool  `json:"active,omitempty"`
}

func (a *API) handleMerchantsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": a.merchants.List(),
	})
}

func (a *API) handleMerchantResource(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/merchants/"))
	if addr == "" || strings.Contains(addr, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		info, err := a.merchants.Get(addr)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodPut:
		a.upsertMerchant(w, r, addr)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) upsertMerchant(w http.ResponseWriter, r *http.Request, addr string) {
	if err := a.requirePermission(r.Context(), auth.PermMerchantWrite); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req merchantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	info, err := a.merchants.Upsert(addr, req.Name, req.Category, active)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "merchant.upsert", addr, map[string]any{
		"name":   info.Name,
		"active": info.Active,
	})
	writeJSON(w, http.StatusOK, info)
}
