package httpapi

import (
	"net/http"

	"onmint.org/internal/auth"
)

type poolMovementRequest struct {
	Amount int64 `json:"amount"`
}

func (a *API) handlePool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": a.pool.Balance(),
	})
}

func (a *API) handleDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermLiquidityWrite); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req poolMovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.pool.Deposit(req.Amount); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "pool.deposit", "", map[string]any{
		"amount":  req.Amount,
		"balance": a.pool.Balance(),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"balance": a.pool.Balance(),
	})
}

func (a *API) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermLiquidityWrite); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req poolMovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.pool.Withdraw(req.Amount); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "pool.withdraw", "", map[string]any{
		"amount":  req.Amount,
		"balance": a.pool.Balance(),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"balance": a.pool.Balance(),
	})
}
