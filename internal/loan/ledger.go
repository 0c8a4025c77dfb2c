package loan

import (
	"context"
	"errors"
	"sync"
	"time"

	"onmint.org/internal/ids"
	"onmint.org/internal/merchant"
	"onmint.org/internal/obs"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/stream"
	"onmint.org/internal/transfer"
)

// Journal persists committed loan states. Persistence is write-through and
// best effort; the in-memory ledger stays authoritative.
type Journal interface {
	SaveLoan(ctx context.Context, l Loan) error
}

// Stats are the protocol-level observability counters.
type Stats struct {
	TotalLoans  uint64 `json:"total_loans"`
	TotalVolume int64  `json:"total_volume"`
	ActiveLoans int    `json:"active_loans"`
}

// Ledger orchestrates loan creation, repayment and default handling. Every
// mutating operation is atomic: the ledger mutex is acquired first, then the
// pool's and score engine's own locks through their operation sets, never
// the other way around.
type Ledger struct {
	mu        sync.RWMutex
	scores    *score.Engine
	pool      *pool.Pool
	merchants *merchant.Registry
	mover     transfer.Mover

	events  *stream.Stream
	journal Journal
	now     func() time.Time

	seq    uint64
	loans  []*Loan
	active map[string]*Loan   // borrower -> active loan
	byUser map[string][]*Loan // append-only per-borrower history

	totalVolume int64
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithStream publishes lifecycle events to the given stream.
func WithStream(s *stream.Stream) Option {
	return func(l *Ledger) { l.events = s }
}

// WithJournal persists committed loan states through the journal.
func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger wires the orchestrator to its collaborators.
func NewLedger(scores *score.Engine, p *pool.Pool, merchants *merchant.Registry, mover transfer.Mover, opts ...Option) *Ledger {
	l := &Ledger{
		scores:    scores,
		pool:      p,
		merchants: merchants,
		mover:     mover,
		now:       func() time.Time { return time.Now().UTC() },
		active:    make(map[string]*Loan),
		byUser:    make(map[string][]*Loan),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateLoan validates the purchase request, reserves pool funds, confirms
// the external disbursement to the merchant and only then records the loan.
// A failed disbursement rolls the reservation back and surfaces as
// insufficient liquidity, so no loan is ever left active with funds
// undisbursed.
func (l *Ledger) CreateLoan(ctx context.Context, borrower, merchantAddr string, amount int64) (Loan, error) {
	if amount <= 0 {
		return Loan{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scores.IsBlacklisted(borrower) {
		return Loan{}, ErrBlacklisted
	}
	if _, ok := l.active[borrower]; ok {
		return Loan{}, ErrActiveLoanExists
	}
	if !l.merchants.IsActive(merchantAddr) {
		return Loan{}, merchant.ErrNotFound
	}
	if amount > l.scores.CreditLimit(borrower) {
		return Loan{}, ErrExceedsCreditLimit
	}
	if err := l.pool.Reserve(amount); err != nil {
		return Loan{}, err
	}
	if err := l.mover.Disburse(ctx, merchantAddr, amount); err != nil {
		l.pool.Unreserve(amount)
		return Loan{}, pool.ErrInsufficientLiquidity
	}

	now := l.now()
	l.seq++
	ln := &Loan{
		ID:        ids.New(),
		Sequence:  l.seq,
		Borrower:  borrower,
		Merchant:  merchantAddr,
		Principal: amount,
		CreatedAt: now,
		DueAt:     now.Add(score.RepaymentPeriod),
		Status:    StatusActive,
	}
	l.loans = append(l.loans, ln)
	l.active[borrower] = ln
	l.byUser[borrower] = append(l.byUser[borrower], ln)
	l.totalVolume += amount

	obs.LoanCreated(amount)
	l.publish(stream.Event{
		Kind:     stream.KindLoanCreated,
		LoanID:   ln.ID,
		Borrower: borrower,
		Merchant: merchantAddr,
		Amount:   amount,
	})
	l.persist(ctx, *ln)
	return *ln, nil
}

// MakeInstallmentPayment collects a partial repayment. The minimum
// installment is a third of the remaining balance (floored, at least one
// micro-unit); a smaller payment is accepted only when it settles the loan.
func (l *Ledger) MakeInstallmentPayment(ctx context.Context, borrower string, amount int64) (Loan, error) {
	if amount <= 0 {
		return Loan{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.active[borrower]
	if !ok {
		return Loan{}, ErrNoActiveLoan
	}
	remaining := ln.Remaining()
	if amount > remaining {
		return Loan{}, ErrExceedsRemainingBalance
	}
	settles := amount == remaining
	if !settles && amount < minInstallment(remaining) {
		return Loan{}, ErrBelowMinimumInstallment
	}
	return l.applyPayment(ctx, ln, amount, settles)
}

// RepayFull settles the remaining balance in a single payment.
func (l *Ledger) RepayFull(ctx context.Context, borrower string) (Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.active[borrower]
	if !ok {
		return Loan{}, ErrNoActiveLoan
	}
	return l.applyPayment(ctx, ln, ln.Remaining(), true)
}

// applyPayment commits a validated payment. Caller holds the ledger lock.
// The external collection is confirmed before any internal mutation.
func (l *Ledger) applyPayment(ctx context.Context, ln *Loan, amount int64, settles bool) (Loan, error) {
	if err := l.mover.Collect(ctx, ln.Borrower, amount); err != nil {
		return Loan{}, err
	}
	l.pool.Credit(amount)
	ln.AmountRepaid += amount
	if ln.AmountRepaid > ln.Principal {
		panic("loan: amount repaid exceeds principal")
	}

	now := l.now()
	if !settles {
		l.publish(stream.Event{
			Kind:     stream.KindLoanInstallment,
			LoanID:   ln.ID,
			Borrower: ln.Borrower,
			Amount:   amount,
		})
		l.persist(ctx, *ln)
		return *ln, nil
	}

	ln.Status = StatusRepaid
	ln.ClosedAt = &now
	delete(l.active, ln.Borrower)

	timing, _ := l.scores.OnLoanSettled(ln.Borrower, ln.DueAt.Sub(now))
	obs.LoanSettled(string(timing))
	l.publish(stream.Event{
		Kind:     stream.KindLoanRepaid,
		LoanID:   ln.ID,
		Borrower: ln.Borrower,
		Amount:   amount,
		Timing:   string(timing),
	})
	l.persist(ctx, *ln)
	return *ln, nil
}

// MarkDefaulted is the administrative sweep action: it moves an overdue
// active loan to defaulted and blacklists the borrower.
func (l *Ledger) MarkDefaulted(ctx context.Context, borrower string) (Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.active[borrower]
	if !ok {
		return Loan{}, ErrNoActiveLoan
	}
	now := l.now()
	if !now.After(ln.DueAt) {
		return Loan{}, ErrNotYetOverdue
	}

	ln.Status = StatusDefaulted
	ln.ClosedAt = &now
	delete(l.active, borrower)
	l.scores.OnDefault(borrower)

	obs.LoanDefaulted()
	l.publish(stream.Event{
		Kind:     stream.KindLoanDefaulted,
		LoanID:   ln.ID,
		Borrower: borrower,
		Amount:   ln.Remaining(),
	})
	l.persist(ctx, *ln)
	return *ln, nil
}

// HasActiveLoan reports whether the borrower has a non-terminal loan.
func (l *Ledger) HasActiveLoan(borrower string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.active[borrower]
	return ok
}

// ActiveLoan returns the borrower's active loan or ErrNoActiveLoan.
func (l *Ledger) ActiveLoan(borrower string) (Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ln, ok := l.active[borrower]
	if !ok {
		return Loan{}, ErrNoActiveLoan
	}
	return *ln, nil
}

// AvailableCredit returns the credit limit less the outstanding balance of
// the active loan, floored at zero.
func (l *Ledger) AvailableCredit(borrower string) int64 {
	limit := l.scores.CreditLimit(borrower)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if ln, ok := l.active[borrower]; ok {
		limit -= ln.Remaining()
	}
	return max(limit, 0)
}

// MinInstallmentAmount returns the smallest accepted installment for the
// borrower's active loan.
func (l *Ledger) MinInstallmentAmount(borrower string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ln, ok := l.active[borrower]
	if !ok {
		return 0, ErrNoActiveLoan
	}
	return minInstallment(ln.Remaining()), nil
}

// UserLoans returns the borrower's full loan history, oldest first.
func (l *Ledger) UserLoans(borrower string) []Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.byUser[borrower]
	out := make([]Loan, len(history))
	for i, ln := range history {
		out[i] = *ln
	}
	return out
}

// AllLoans pages through every loan by sequence number.
func (l *Ledger) AllLoans(limit int, afterSeq uint64) ([]Loan, uint64) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []Loan
	var last uint64
	for _, ln := range l.loans {
		if ln.Sequence <= afterSeq {
			continue
		}
		res = append(res, *ln)
		last = ln.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last
}

// OverdueLoans lists active loans past their due date as of now. A pure
// read used by the default sweep.
func (l *Ledger) OverdueLoans() []Loan {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Loan
	for _, ln := range l.active {
		if ln.IsOverdue(now) {
			out = append(out, *ln)
		}
	}
	return out
}

// Stats returns the protocol counters.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TotalLoans:  l.seq,
		TotalVolume: l.totalVolume,
		ActiveLoans: len(l.active),
	}
}

func (l *Ledger) publish(evt stream.Event) {
	if l.events != nil {
		l.events.Publish(evt)
	}
}

func (l *Ledger) persist(ctx context.Context, ln Loan) {
	if l.journal == nil {
		return
	}
	if err := l.journal.SaveLoan(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		obs.LogEvent(map[string]any{
			"level":   "error",
			"msg":     "loan journal write failed",
			"loan_id": ln.ID,
			"error":   err.Error(),
		})
	}
}

func minInstallment(remaining int64) int64 {
	return max(remaining/3, 1)
}
