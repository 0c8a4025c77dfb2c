package httpapi

import (
	"context"
	"net/http"
	"strings"

	"onmint.org/internal/audit"
	"onmint.org/internal/auth"
	"onmint.org/internal/score"
)

// handleUserResource dispatches /v1/users/{addr}/... reads and the
// collaborator-supplied score inputs.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.SplitN(path, "/", 2)
	addr := strings.TrimSpace(parts[0])
	if addr == "" || len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch parts[1] {
	case "credit":
		a.getCreditInfo(w, r, addr)
	case "wallet-bonus":
		a.setWalletBonus(w, r, addr)
	case "zk-boost":
		a.setZkBoost(w, r, addr)
	case "loans":
		a.getUserLoans(w, r, addr)
	case "loans/active":
		a.getActiveLoan(w, r, addr)
	case "available-credit":
		a.getAvailableCredit(w, r, addr)
	case "min-installment":
		a.getMinInstallment(w, r, addr)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getCreditInfo(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, a.scores.GetCreditInfo(addr))
}

func (a *API) setWalletBonus(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermScoreCollaborate); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var input score.VerifiedInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	applied := a.scores.SetWalletBonus(addr, input)
	a.audit(r.Context(), "score.wallet_bonus.set", addr, map[string]any{
		"source":  input.Source,
		"value":   input.Value,
		"applied": applied,
	})
	writeJSON(w, http.StatusOK, a.scores.GetCreditInfo(addr))
}

func (a *API) setZkBoost(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermScoreCollaborate); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var input score.VerifiedInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := a.scores.SetZkBoost(addr, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "score.zk_boost.set", addr, map[string]any{
		"source":  input.Source,
		"epoch":   input.Epoch,
		"applied": applied,
	})
	writeJSON(w, http.StatusOK, a.scores.GetCreditInfo(addr))
}

func (a *API) getUserLoans(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	loans := a.ledger.UserLoans(addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"borrower": addr,
		"items":    loans,
	})
}

func (a *API) getActiveLoan(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ln, err := a.ledger.ActiveLoan(addr)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (a *API) getAvailableCredit(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"borrower":         addr,
		"available_credit": a.ledger.AvailableCredit(addr),
		"has_active_loan":  a.ledger.HasActiveLoan(addr),
	})
}

func (a *API) getMinInstallment(w http.ResponseWriter, r *http.Request, addr string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	min, err := a.ledger.MinInstallmentAmount(addr)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"borrower":        addr,
		"min_installment": min,
	})
}

func (a *API) audit(ctx context.Context, event, resourceID string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["resource_id"] = resourceID
	_ = audit.LogEvent(ctx, event, fields)
}
