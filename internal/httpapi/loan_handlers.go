package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"onmint.org/internal/auth"
	"onmint.org/internal/loan"
	"onmint.org/internal/merchant"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/transfer"
)

type createLoanRequest struct {
	Borrower string `json:"borrower"`
	Merchant string `json:"merchant"`
	Amount   int64  `json:"amount"`
}

type paymentRequest struct {
	Borrower string `json:"borrower"`
	Amount   int64  `json:"amount"`
}

type borrowerRequest struct {
	Borrower string `json:"borrower"`
}

type listLoansResponse struct {
	Items     []loan.Loan `json:"items"`
	NextAfter uint64      `json:"next_after"`
	AsOf      time.Time   `json:"as_of"`
}

func (a *API) handleLoansCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createLoan(w, r)
	case http.MethodGet:
		a.listLoans(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := requireAddress(req.Borrower, "borrower")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	merchantAddr, err := requireAddress(req.Merchant, "merchant")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}

	ln, err := a.ledger.CreateLoan(r.Context(), borrower, merchantAddr, req.Amount)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "loan.create", ln.ID, map[string]any{
		"borrower":  borrower,
		"merchant":  merchantAddr,
		"principal": strconv.FormatInt(req.Amount, 10),
		"due_at":    ln.DueAt.Format(time.RFC3339),
	})

	w.Header().Set("Location", "/v1/loans?after="+strconv.FormatUint(ln.Sequence-1, 10))
	writeJSON(w, http.StatusCreated, ln)
}

func (a *API) listLoans(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var after uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		after, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
	}
	items, next := a.ledger.AllLoans(limit, after)
	writeJSON(w, http.StatusOK, listLoansResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}

func (a *API) handleInstallments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := requireAddress(req.Borrower, "borrower")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}

	ln, err := a.ledger.MakeInstallmentPayment(r.Context(), borrower, req.Amount)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "loan.installment", ln.ID, map[string]any{
		"borrower": borrower,
		"amount":   strconv.FormatInt(req.Amount, 10),
		"status":   string(ln.Status),
	})
	writeJSON(w, http.StatusOK, ln)
}

func (a *API) handleRepay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req borrowerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := requireAddress(req.Borrower, "borrower")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ln, err := a.ledger.RepayFull(r.Context(), borrower)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "loan.repay_full", ln.ID, map[string]any{
		"borrower": borrower,
		"amount":   strconv.FormatInt(ln.Principal, 10),
	})
	writeJSON(w, http.StatusOK, ln)
}

func (a *API) handleDefault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermLoanSweep); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req borrowerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	borrower, err := requireAddress(req.Borrower, "borrower")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ln, err := a.ledger.MarkDefaulted(r.Context(), borrower)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "loan.default", ln.ID, map[string]any{
		"borrower":  borrower,
		"remaining": strconv.FormatInt(ln.Remaining(), 10),
	})
	writeJSON(w, http.StatusOK, ln)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	stats := a.ledger.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_loans":  stats.TotalLoans,
		"total_volume": stats.TotalVolume,
		"active_loans": stats.ActiveLoans,
		"liquidity":    a.pool.Balance(),
	})
}

type faucetRequest struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// handleFaucet mints demo tokens so borrowers can repay. Only available
// with the in-memory token register.
func (a *API) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.tokens == nil {
		writeError(w, r, http.StatusNotFound, "faucet disabled")
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermLiquidityWrite); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req faucetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := requireAddress(req.Address, "address")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}
	a.tokens.Mint(addr, req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"balance": a.tokens.BalanceOf(addr),
	})
}

// --- helpers ---

func requireAddress(raw, field string) (string, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", errors.New(field + " is required")
	}
	if len(addr) > 64 {
		return "", errors.New(field + " must be <=64 characters")
	}
	return addr, nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, loan.ErrInvalidAmount), errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, merchant.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, loan.ErrBlacklisted):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, loan.ErrNoActiveLoan), errors.Is(err, merchant.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, loan.ErrActiveLoanExists), errors.Is(err, loan.ErrExceedsCreditLimit),
		errors.Is(err, loan.ErrExceedsRemainingBalance), errors.Is(err, loan.ErrBelowMinimumInstallment),
		errors.Is(err, loan.ErrNotYetOverdue), errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, transfer.ErrTransferFailed), errors.Is(err, score.ErrStaleEpoch):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
