package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Protocol metrics, driven by the loan ledger and the liquidity pool.
var (
	loansCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bnpl_loans_created_total",
		Help: "Total number of loans issued.",
	})

	loanVolumeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bnpl_loan_volume_micro_total",
		Help: "Total issued principal in micro-units.",
	})

	activeLoans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bnpl_active_loans",
		Help: "Currently active loans.",
	})

	settlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bnpl_settlements_total",
			Help: "Fully repaid loans by settlement timing.",
		},
		[]string{"timing"},
	)

	defaultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bnpl_defaults_total",
		Help: "Loans marked defaulted.",
	})

	poolBalance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bnpl_pool_balance_micro",
		Help: "Liquidity pool balance in micro-units.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loansCreatedTotal, loanVolumeTotal, activeLoans,
		settlementsTotal, defaultsTotal, poolBalance,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// LoanCreated records an issued loan of the given principal.
func LoanCreated(principal int64) {
	loansCreatedTotal.Inc()
	loanVolumeTotal.Add(float64(principal))
	activeLoans.Inc()
}

// LoanSettled records a full repayment; timing is "early", "on_time" or "late".
func LoanSettled(timing string) {
	settlementsTotal.WithLabelValues(timing).Inc()
	activeLoans.Dec()
}

// LoanDefaulted records a defaulted loan.
func LoanDefaulted() {
	defaultsTotal.Inc()
	activeLoans.Dec()
}

// SetPoolBalance publishes the current pool balance.
func SetPoolBalance(balance int64) {
	poolBalance.Set(float64(balance))
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
