package transfer

import (
	"context"
	"errors"
	"sync"
)

// ErrTransferFailed indicates the external value transfer did not confirm.
var ErrTransferFailed = errors.New("transfer: transfer failed")

// Mover is the fund-transfer primitive the loan ledger sequences around:
// disbursements move pool value to a merchant, collections move payer value
// into the pool. Both must confirm synchronously; the ledger commits its
// internal state only after a successful confirmation.
type Mover interface {
	Disburse(ctx context.Context, merchant string, amount int64) error
	Collect(ctx context.Context, payer string, amount int64) error
}

// InMemory is a token register standing in for the stablecoin contract.
// Merchants accumulate disbursed value; payers must hold enough value for a
// collection to confirm.
type InMemory struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewInMemory creates an empty token register.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[string]int64)}
}

// Mint funds an address, for demos and tests.
func (m *InMemory) Mint(addr string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] += amount
}

// BalanceOf returns the address balance in micro-units.
func (m *InMemory) BalanceOf(addr string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr]
}

func (m *InMemory) Disburse(ctx context.Context, merchant string, amount int64) error {
	if amount <= 0 {
		return ErrTransferFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[merchant] += amount
	return nil
}

func (m *InMemory) Collect(ctx context.Context, payer string, amount int64) error {
	if amount <= 0 {
		return ErrTransferFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[payer] < amount {
		return ErrTransferFailed
	}
	m.balances[payer] -= amount
	return nil
}
