package sweep

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"onmint.org/internal/audit"
	"onmint.org/internal/loan"
	"onmint.org/internal/obs"
)

// Sweeper periodically marks overdue active loans as defaulted. It is the
// administrative actor behind markDefaulted: loans never transition on time
// passing alone.
type Sweeper struct {
	ledger *loan.Ledger
	cron   *cron.Cron
}

// New creates a sweeper bound to the ledger.
func New(ledger *loan.Ledger) *Sweeper {
	return &Sweeper{ledger: ledger}
}

// Start schedules RunOnce with the given cron expression (e.g. "@hourly").
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule; a sweep in flight finishes.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce marks every currently overdue loan as defaulted and returns the
// number of loans transitioned.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	marked := 0
	for _, ln := range s.ledger.OverdueLoans() {
		defaulted, err := s.ledger.MarkDefaulted(ctx, ln.Borrower)
		if err != nil {
			// Raced with a late repayment or manual default; either way the
			// loan is no longer ours to sweep.
			if errors.Is(err, loan.ErrNoActiveLoan) || errors.Is(err, loan.ErrNotYetOverdue) {
				continue
			}
			obs.LogEvent(map[string]any{
				"level":    "error",
				"msg":      "default sweep failed",
				"borrower": ln.Borrower,
				"error":    err.Error(),
			})
			continue
		}
		marked++
		_ = audit.LogEvent(ctx, "loan.default.sweep", map[string]any{
			"loan_id":   defaulted.ID,
			"borrower":  defaulted.Borrower,
			"remaining": defaulted.Remaining(),
		})
	}
	return marked
}
