package sweep

import (
	"context"
	"testing"
	"time"

	"onmint.org/internal/loan"
	"onmint.org/internal/merchant"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/transfer"
)

func TestRunOnceMarksOnlyOverdueLoans(t *testing.T) {
	now := time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC)
	scores := score.NewEngine()
	p := pool.New(nil)
	merchants := merchant.NewRegistry()
	tokens := transfer.NewInMemory()
	_, _ = merchants.Upsert("0xshop", "Shop", "retail", true)
	_ = p.Deposit(100_000000)

	ledger := loan.NewLedger(scores, p, merchants, tokens,
		loan.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := ledger.CreateLoan(ctx, "0xlate", "0xshop", 5_000000); err != nil {
		t.Fatalf("late borrower loan: %v", err)
	}

	// A second loan issued three days later stays within its window.
	now = now.Add(3 * 24 * time.Hour)
	if _, err := ledger.CreateLoan(ctx, "0xfresh", "0xshop", 5_000000); err != nil {
		t.Fatalf("fresh borrower loan: %v", err)
	}

	s := New(ledger)
	if marked := s.RunOnce(ctx); marked != 0 {
		t.Fatalf("nothing should be overdue yet, marked %d", marked)
	}

	now = now.Add(5 * 24 * time.Hour) // first loan is 8 days old, second 5
	if marked := s.RunOnce(ctx); marked != 1 {
		t.Fatalf("expected exactly one default, marked %d", marked)
	}
	if !scores.IsBlacklisted("0xlate") {
		t.Fatal("swept borrower must be blacklisted")
	}
	if scores.IsBlacklisted("0xfresh") {
		t.Fatal("in-window borrower must not be touched")
	}
	if !ledger.HasActiveLoan("0xfresh") {
		t.Fatal("in-window loan must stay active")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(nil)
	if err := s.Start("not a schedule"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
