package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"onmint.org/internal/loan"
	"onmint.org/internal/merchant"
	"onmint.org/internal/obs"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/stream"
	"onmint.org/internal/transfer"
)

// ReadyProbe is a simple readiness check (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps are the protocol components the HTTP layer fronts.
type Deps struct {
	Scores    *score.Engine
	Pool      *pool.Pool
	Merchants *merchant.Registry
	Ledger    *loan.Ledger
	Tokens    *transfer.InMemory // demo token register; enables the faucet when set
	Stream    *stream.Stream
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	scores    *score.Engine
	pool      *pool.Pool
	merchants *merchant.Registry
	ledger    *loan.Ledger
	tokens    *transfer.InMemory
	stream    *stream.Stream

	authEnabled bool
	rateBurst   int
	ratePerSec  int
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		scores:      deps.Scores,
		pool:        deps.Pool,
		merchants:   deps.Merchants,
		ledger:      deps.Ledger,
		tokens:      deps.Tokens,
		stream:      deps.Stream,
		authEnabled: os.Getenv("ONMINT_AUTH_SECRET") != "",
		rateBurst:   50,
		ratePerSec:  25,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/loans", a.handleLoansCollection)
	a.mux.HandleFunc("/v1/loans/installments", a.handleInstallments)
	a.mux.HandleFunc("/v1/loans/repay", a.handleRepay)
	a.mux.HandleFunc("/v1/loans/default", a.handleDefault)
	a.mux.HandleFunc("/v1/pool", a.handlePool)
	a.mux.HandleFunc("/v1/pool/deposits", a.handleDeposits)
	a.mux.HandleFunc("/v1/pool/withdrawals", a.handleWithdrawals)
	a.mux.HandleFunc("/v1/merchants", a.handleMerchantsCollection)
	a.mux.HandleFunc("/v1/merchants/", a.handleMerchantResource)
	a.mux.HandleFunc("/v1/stats", a.handleStats)
	a.mux.HandleFunc("/v1/stream", a.Stream)
	a.mux.HandleFunc("/v1/faucet", a.handleFaucet)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RequestID(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "onmint-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "onmint-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
