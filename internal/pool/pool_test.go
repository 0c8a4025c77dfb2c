package pool

import (
	"sync"
	"testing"
)

func TestDepositWithdraw(t *testing.T) {
	p := New(nil)
	if err := p.Deposit(1_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := p.Withdraw(400_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := p.Balance(); got != 600_000 {
		t.Fatalf("unexpected balance: %d", got)
	}
}

func TestWithdrawRejectsOverdraft(t *testing.T) {
	p := New(nil)
	_ = p.Deposit(100)
	if err := p.Withdraw(200); err != ErrInsufficientLiquidity {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if got := p.Balance(); got != 100 {
		t.Fatalf("failed withdraw must not mutate balance: %d", got)
	}
}

func TestReserveRejectsOverdraft(t *testing.T) {
	p := New(nil)
	_ = p.Deposit(50)
	if err := p.Reserve(51); err != ErrInsufficientLiquidity {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if got := p.Balance(); got != 50 {
		t.Fatalf("failed reserve must not mutate balance: %d", got)
	}
}

func TestInvalidAmounts(t *testing.T) {
	p := New(nil)
	if err := p.Deposit(0); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := p.Withdraw(-5); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestNotifySeesOrderedChanges(t *testing.T) {
	var changes []Change
	p := New(func(c Change) { changes = append(changes, c) })

	_ = p.Deposit(1000)
	_ = p.Reserve(300)
	p.Credit(300)
	_ = p.Withdraw(500)

	want := []Change{
		{ReasonDeposit, 1000, 1000},
		{ReasonDisbursement, -300, 700},
		{ReasonRepayment, 300, 1000},
		{ReasonWithdraw, -500, 500},
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d changes, got %d", len(want), len(changes))
	}
	for i, c := range changes {
		if c != want[i] {
			t.Fatalf("change %d = %+v, want %+v", i, c, want[i])
		}
	}
}

func TestBalanceNeverNegativeUnderConcurrency(t *testing.T) {
	p := New(nil)
	_ = p.Deposit(10_000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Reserve(300)
		}()
	}
	wg.Wait()

	if got := p.Balance(); got < 0 {
		t.Fatalf("balance went negative: %d", got)
	}
}
