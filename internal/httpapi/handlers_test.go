package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"onmint.org/internal/auth"
	"onmint.org/internal/loan"
	"onmint.org/internal/merchant"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/stream"
	"onmint.org/internal/transfer"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	tokens *transfer.InMemory
	pool   *pool.Pool
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("ONMINT_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	scores := score.NewEngine()
	liquidity := pool.New(nil)
	merchants := merchant.NewRegistry()
	tokens := transfer.NewInMemory()
	ledger := loan.NewLedger(scores, liquidity, merchants, tokens)

	api := New(ReadyProbe{}, "test", Deps{
		Scores:    scores,
		Pool:      liquidity,
		Merchants: merchants,
		Ledger:    ledger,
		Tokens:    tokens,
		Stream:    stream.New(),
	})
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		tokens:  tokens,
		pool:    liquidity,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(subject string, roles []string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"subject": subject,
		"roles":   roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) adminHeader() map[string]string {
	c.t.Helper()
	token := c.obtainToken("ops", []string{"admin"})
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPILoanLifecycle(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminHeader()

	// Fund the pool and register a merchant.
	resp := api.post("/v1/pool/deposits", map[string]any{"amount": 100_000000}, admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("deposit status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.put("/v1/merchants/0xshop", map[string]any{
		"name":     "Corner Shop",
		"category": "retail",
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("merchant upsert status: %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["active"] != true {
		t.Fatalf("merchant should default to active: %v", info)
	}

	// Give the borrower repayment funds via the faucet.
	resp = api.post("/v1/faucet", map[string]any{
		"address": "0xalice",
		"amount":  50_000000,
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("faucet status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Open a loan at the base credit limit.
	resp = api.post("/v1/loans", map[string]any{
		"borrower": "0xalice",
		"merchant": "0xshop",
		"amount":   9_000000,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("loan create status: %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	if created["status"] != "active" {
		t.Fatalf("unexpected loan status: %v", created["status"])
	}
	loanID := created["id"].(string)
	if loanID == "" {
		t.Fatalf("loan id missing")
	}

	// A second loan for the same borrower conflicts.
	resp = api.post("/v1/loans", map[string]any{
		"borrower": "0xalice",
		"merchant": "0xshop",
		"amount":   1_000000,
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second loan status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Below-minimum installment is rejected (min is remaining/3).
	resp = api.post("/v1/loans/installments", map[string]any{
		"borrower": "0xalice",
		"amount":   1_000000,
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("small installment status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/loans/installments", map[string]any{
		"borrower": "0xalice",
		"amount":   4_000000,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("installment status: %d", resp.StatusCode)
	}
	partial := decode[map[string]any](t, resp)
	if partial["amount_repaid"].(float64) != 4_000000 {
		t.Fatalf("unexpected amount repaid: %v", partial["amount_repaid"])
	}

	// Settle the rest and verify the early repayment reward.
	resp = api.post("/v1/loans/repay", map[string]any{"borrower": "0xalice"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repay status: %d", resp.StatusCode)
	}
	settled := decode[map[string]any](t, resp)
	if settled["status"] != "repaid" {
		t.Fatalf("loan not settled: %v", settled["status"])
	}

	resp = api.get("/v1/users/0xalice/credit", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credit status: %d", resp.StatusCode)
	}
	credit := decode[map[string]any](t, resp)
	if credit["repayment_score"].(float64) != 15 {
		t.Fatalf("expected early repayment points, got %v", credit["repayment_score"])
	}
	if credit["credit_limit"].(float64) != 15_000000 {
		t.Fatalf("unexpected credit limit: %v", credit["credit_limit"])
	}

	// Stats reflect the settled loan.
	resp = api.get("/v1/stats", nil, nil)
	stats := decode[map[string]any](t, resp)
	if stats["total_loans"].(float64) != 1 {
		t.Fatalf("unexpected total loans: %v", stats["total_loans"])
	}
	if stats["active_loans"].(float64) != 0 {
		t.Fatalf("unexpected active loans: %v", stats["active_loans"])
	}
}

func TestAPIPermissionDenials(t *testing.T) {
	api := newTestAPI(t)

	// Anonymous callers cannot move liquidity.
	resp := api.post("/v1/pool/deposits", map[string]any{"amount": 1_000000}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous deposit status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A collaborator may set score inputs but not touch liquidity.
	token := api.obtainToken("oracle", []string{"collaborator"})
	collab := map[string]string{"Authorization": "Bearer " + token}

	resp = api.post("/v1/pool/deposits", map[string]any{"amount": 1_000000}, collab)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("collaborator deposit status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.put("/v1/users/0xalice/wallet-bonus", map[string]any{
		"source": "wallet-analyzer",
		"value":  80,
	}, collab)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wallet bonus status: %d", resp.StatusCode)
	}
	credit := decode[map[string]any](t, resp)
	if credit["wallet_bonus"].(float64) != 50 {
		t.Fatalf("wallet bonus should clamp to 50, got %v", credit["wallet_bonus"])
	}

	// Garbage token is rejected outright.
	resp = api.post("/v1/pool/deposits", map[string]any{"amount": 1_000000},
		map[string]string{"Authorization": "Bearer junk"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIZkBoostEpochGuard(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("oracle", []string{"collaborator"})
	collab := map[string]string{"Authorization": "Bearer " + token}

	resp := api.put("/v1/users/0xbob/zk-boost", map[string]any{
		"source": "zk-verifier",
		"value":  20,
		"epoch":  7,
	}, collab)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("zk boost status: %d", resp.StatusCode)
	}
	credit := decode[map[string]any](t, resp)
	if credit["zk_boost"].(float64) != 20 {
		t.Fatalf("unexpected zk boost: %v", credit["zk_boost"])
	}

	// Replay from an older epoch must be rejected.
	resp = api.put("/v1/users/0xbob/zk-boost", map[string]any{
		"source": "zk-verifier",
		"value":  30,
		"epoch":  7,
	}, collab)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale epoch status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/users/0xbob/credit", nil, nil)
	credit = decode[map[string]any](t, resp)
	if credit["zk_boost"].(float64) != 20 {
		t.Fatalf("stale epoch must not change boost: %v", credit["zk_boost"])
	}
}

func TestAPIUserLoanQueries(t *testing.T) {
	api := newTestAPI(t)
	admin := api.adminHeader()

	api.pool.Deposit(50_000000)
	api.tokens.Mint("0xalice", 50_000000)

	resp := api.put("/v1/merchants/0xshop", map[string]any{"name": "Shop"}, admin)
	resp.Body.Close()

	resp = api.get("/v1/users/0xalice/available-credit", nil, nil)
	avail := decode[map[string]any](t, resp)
	if avail["available_credit"].(float64) != 10_000000 {
		t.Fatalf("unexpected available credit: %v", avail["available_credit"])
	}

	resp = api.post("/v1/loans", map[string]any{
		"borrower": "0xalice",
		"merchant": "0xshop",
		"amount":   6_000000,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("loan create status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/users/0xalice/loans/active", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active loan status: %d", resp.StatusCode)
	}
	active := decode[map[string]any](t, resp)
	if active["principal"].(float64) != 6_000000 {
		t.Fatalf("unexpected principal: %v", active["principal"])
	}

	resp = api.get("/v1/users/0xalice/min-installment", nil, nil)
	minResp := decode[map[string]any](t, resp)
	if minResp["min_installment"].(float64) != 2_000000 {
		t.Fatalf("unexpected min installment: %v", minResp["min_installment"])
	}

	resp = api.get("/v1/users/0xalice/loans", nil, nil)
	loans := decode[map[string]any](t, resp)
	if len(loans["items"].([]any)) != 1 {
		t.Fatalf("unexpected loan history: %v", loans["items"])
	}

	// A user with no loans gets 404 for the active loan lookup.
	resp = api.get("/v1/users/0xnobody/loans/active", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing active loan status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIHealthAndValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown JSON fields are rejected.
	resp = api.post("/v1/loans", map[string]any{
		"borrower": "0xalice",
		"merchant": "0xshop",
		"amount":   1_000000,
		"bogus":    true,
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Missing body is a 400, not a panic.
	resp = api.post("/v1/loans", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/unknown", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown route status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Request id is echoed back.
	resp = api.get("/v1/info", nil, map[string]string{"X-Request-Id": "req-123"})
	if got := resp.Header.Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id not echoed: %q", got)
	}
	resp.Body.Close()
}
