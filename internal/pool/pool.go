package pool

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")
	ErrInvalidAmount         = errors.New("pool: amount must be > 0")
)

// Reason tags a balance change for observers.
type Reason string

const (
	ReasonDeposit      Reason = "deposit"
	ReasonWithdraw     Reason = "withdraw"
	ReasonDisbursement Reason = "disbursement"
	ReasonRepayment    Reason = "repayment"
)

// Change describes a committed balance mutation.
type Change struct {
	Reason  Reason `json:"reason"`
	Delta   int64  `json:"delta"`
	Balance int64  `json:"balance"`
}

// Pool is the shared fund register backing all loans. It is a pure
// accounting component: the loan ledger sequences every call that touches
// it together with user state.
type Pool struct {
	mu      sync.RWMutex
	balance int64
	notify  func(Change)
}

// New creates an empty pool. notify, if non-nil, is invoked after every
// committed balance change while the pool lock is held, so observers see
// changes in order.
func New(notify func(Change)) *Pool {
	return &Pool{notify: notify}
}

// Balance returns the disbursable balance in micro-units.
func (p *Pool) Balance() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance
}

// Deposit adds admin-provided liquidity.
func (p *Pool) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apply(amount, ReasonDeposit)
	return nil
}

// Withdraw removes admin liquidity. Fails without mutation if the pool
// would go negative.
func (p *Pool) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.balance {
		return ErrInsufficientLiquidity
	}
	p.apply(-amount, ReasonWithdraw)
	return nil
}

// Reserve removes funds for a loan disbursement. Invoked only by the loan
// ledger, which validates the amount first; a non-positive amount here is a
// broken contract.
func (p *Pool) Reserve(amount int64) error {
	mustPositive(amount)
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.balance {
		return ErrInsufficientLiquidity
	}
	p.apply(-amount, ReasonDisbursement)
	return nil
}

// Unreserve returns funds from a reservation whose external disbursement
// did not confirm. Invoked only by the loan ledger on its rollback path.
func (p *Pool) Unreserve(amount int64) {
	mustPositive(amount)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apply(amount, ReasonDisbursement)
}

// Credit returns repayment funds to the pool. Invoked only by the loan
// ledger.
func (p *Pool) Credit(amount int64) {
	mustPositive(amount)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apply(amount, ReasonRepayment)
}

func (p *Pool) apply(delta int64, reason Reason) {
	p.balance += delta
	if p.balance < 0 {
		panic(fmt.Sprintf("pool: balance went negative (%d)", p.balance))
	}
	if p.notify != nil {
		p.notify(Change{Reason: reason, Delta: delta, Balance: p.balance})
	}
}

func mustPositive(amount int64) {
	if amount <= 0 {
		panic(fmt.Sprintf("pool: non-positive internal amount %d", amount))
	}
}
