package loan

import (
	"errors"
	"time"
)

// Status is a loan lifecycle state. Repaid and Defaulted are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusRepaid    Status = "repaid"
	StatusDefaulted Status = "defaulted"
)

// Loan is a single credit draw against the pool. Amounts are micro-units.
// The ledger is the sole writer.
type Loan struct {
	ID           string     `json:"id"`
	Sequence     uint64     `json:"sequence"`
	Borrower     string     `json:"borrower"`
	Merchant     string     `json:"merchant"`
	Principal    int64      `json:"principal"`
	AmountRepaid int64      `json:"amount_repaid"`
	CreatedAt    time.Time  `json:"created_at"`
	DueAt        time.Time  `json:"due_at"`
	Status       Status     `json:"status"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// Remaining returns the outstanding principal.
func (l Loan) Remaining() int64 { return l.Principal - l.AmountRepaid }

// IsOverdue is a derived read-time predicate; time passing never mutates a
// loan on its own.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == StatusActive && now.After(l.DueAt)
}

var (
	ErrActiveLoanExists        = errors.New("loan: borrower already has an active loan")
	ErrExceedsCreditLimit      = errors.New("loan: amount exceeds credit limit")
	ErrBlacklisted             = errors.New("loan: borrower is blacklisted")
	ErrNoActiveLoan            = errors.New("loan: no active loan")
	ErrExceedsRemainingBalance = errors.New("loan: amount exceeds remaining balance")
	ErrBelowMinimumInstallment = errors.New("loan: amount below minimum installment")
	ErrNotYetOverdue           = errors.New("loan: not yet overdue")
	ErrInvalidAmount           = errors.New("loan: amount must be > 0")
)
