package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"onmint.org/internal/loan"
	"onmint.org/internal/merchant"
	"onmint.org/internal/pool"
	"onmint.org/internal/score"
	"onmint.org/internal/transfer"
)

// Exercises the full loan lifecycle in-process: fund, borrow, pay in
// installments, settle, check the credit reward.
func main() {
	log.SetFlags(0)

	scores := score.NewEngine()
	liquidity := pool.New(nil)
	merchants := merchant.NewRegistry()
	tokens := transfer.NewInMemory()
	ledger := loan.NewLedger(scores, liquidity, merchants, tokens)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := liquidity.Deposit(100_000000); err != nil {
		log.Fatalf("fund pool: %v", err)
	}
	if _, err := merchants.Upsert("0xsmoke-shop", "Smoke Shop", "retail", true); err != nil {
		log.Fatalf("register merchant: %v", err)
	}
	tokens.Mint("0xsmoke-user", 50_000000)

	ln, err := ledger.CreateLoan(ctx, "0xsmoke-user", "0xsmoke-shop", 9_000000)
	if err != nil {
		log.Fatalf("create loan: %v", err)
	}
	if liquidity.Balance() != 91_000000 {
		log.Fatalf("pool not debited: %d", liquidity.Balance())
	}
	if tokens.BalanceOf("0xsmoke-shop") != 9_000000 {
		log.Fatalf("merchant not paid: %d", tokens.BalanceOf("0xsmoke-shop"))
	}

	if _, err := ledger.MakeInstallmentPayment(ctx, "0xsmoke-user", 3_000000); err != nil {
		log.Fatalf("first installment: %v", err)
	}
	settled, err := ledger.RepayFull(ctx, "0xsmoke-user")
	if err != nil {
		log.Fatalf("repay: %v", err)
	}
	if settled.Status != loan.StatusRepaid {
		log.Fatalf("loan not settled: %s", settled.Status)
	}
	if liquidity.Balance() != 100_000000 {
		log.Fatalf("pool not restored: %d", liquidity.Balance())
	}

	credit := scores.GetCreditInfo("0xsmoke-user")
	if credit.RepaymentScore != score.EarlyPoints {
		log.Fatalf("expected early repayment reward, got %d", credit.RepaymentScore)
	}
	if credit.CreditLimit <= score.BaseCreditLimit {
		log.Fatalf("credit limit did not grow: %d", credit.CreditLimit)
	}

	fmt.Printf("smoke test passed: loan=%s limit=%d\n", ln.ID, credit.CreditLimit)
}
