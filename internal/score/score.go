package score

import (
	"errors"
	"sync"
	"time"
)

// Protocol scoring parameters. Amounts are micro-units (6 decimals).
const (
	WalletBonusCap uint64 = 50
	ZkBoostCap     uint64 = 30

	// DisplayScoreMax bounds the score shown to users. The credit limit
	// is derived from the uncapped total.
	DisplayScoreMax uint64 = 190

	BaseCreditLimit int64  = 10_000000 // 10 units of account
	LimitPerStep    int64  = 5_000000  // +5 units per step
	PointsPerStep   uint64 = 10

	EarlyPoints  uint64 = 15
	OnTimePoints uint64 = 10

	RepaymentPeriod         = 7 * 24 * time.Hour
	EarlyRepaymentThreshold = 3 * 24 * time.Hour
)

// ErrStaleEpoch rejects a zk boost carrying an epoch at or below the last
// accepted one.
var ErrStaleEpoch = errors.New("score: stale verification epoch")

// Timing classifies a loan's final repayment relative to its due date.
type Timing string

const (
	TimingEarly  Timing = "early"
	TimingOnTime Timing = "on_time"
	TimingLate   Timing = "late"
)

// settlementBands is scanned in order; the first band with
// remaining > MinRemainingExclusive wins. Anything past the last band is
// late and earns nothing.
var settlementBands = []struct {
	MinRemainingExclusive time.Duration
	Timing                Timing
	Points                uint64
}{
	{EarlyRepaymentThreshold, TimingEarly, EarlyPoints},
	{-time.Nanosecond, TimingOnTime, OnTimePoints}, // remaining >= 0
}

// ClassifySettlement maps time remaining until the due date at settlement to
// a timing class and point award.
func ClassifySettlement(remaining time.Duration) (Timing, uint64) {
	for _, band := range settlementBands {
		if remaining > band.MinRemainingExclusive {
			return band.Timing, band.Points
		}
	}
	return TimingLate, 0
}

// CreditLimitFor derives the micro-unit credit limit from a total score.
func CreditLimitFor(totalScore uint64) int64 {
	steps := totalScore / PointsPerStep
	return BaseCreditLimit + LimitPerStep*int64(steps)
}

// VerifiedInput is a score component supplied by an external collaborator.
// Epoch makes the replay policy explicit: zk boosts must carry a strictly
// increasing epoch per user.
type VerifiedInput struct {
	Source string `json:"source"`
	Value  uint64 `json:"value"`
	Epoch  uint64 `json:"epoch"`
}

// CreditInfo is the read model for a user's trust standing.
type CreditInfo struct {
	User           string `json:"user"`
	RepaymentScore uint64 `json:"repayment_score"`
	WalletBonus    uint64 `json:"wallet_bonus"`
	ZkBoost        uint64 `json:"zk_boost"`
	TotalScore     uint64 `json:"total_score"`
	DisplayScore   uint64 `json:"display_score"`
	CreditLimit    int64  `json:"credit_limit"`
	IsBlacklisted  bool   `json:"is_blacklisted"`
}

type record struct {
	repaymentScore uint64
	walletBonus    uint64
	zkBoost        uint64
	zkEpoch        uint64
	blacklisted    bool
}

// Engine owns every user credit record. Records are created lazily; reads
// for unknown users return the zero record.
type Engine struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewEngine creates an empty trust score engine.
func NewEngine() *Engine {
	return &Engine{records: make(map[string]*record)}
}

func (e *Engine) get(user string) *record {
	rec, ok := e.records[user]
	if !ok {
		rec = &record{}
		e.records[user] = rec
	}
	return rec
}

// GetCreditInfo is a pure read; it never fails for an unknown user.
func (e *Engine) GetCreditInfo(user string) CreditInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[user]
	if !ok {
		rec = &record{}
	}
	total := rec.repaymentScore + rec.walletBonus + rec.zkBoost
	return CreditInfo{
		User:           user,
		RepaymentScore: rec.repaymentScore,
		WalletBonus:    rec.walletBonus,
		ZkBoost:        rec.zkBoost,
		TotalScore:     total,
		DisplayScore:   min(total, DisplayScoreMax),
		CreditLimit:    CreditLimitFor(total),
		IsBlacklisted:  rec.blacklisted,
	}
}

// CreditLimit returns the user's current borrowing ceiling in micro-units.
func (e *Engine) CreditLimit(user string) int64 {
	return e.GetCreditInfo(user).CreditLimit
}

// IsBlacklisted reports whether the user defaulted on a past loan.
func (e *Engine) IsBlacklisted(user string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[user]
	return ok && rec.blacklisted
}

// SetWalletBonus records the wallet-analysis bonus. Values above the cap are
// clamped, never rejected; last write wins.
func (e *Engine) SetWalletBonus(user string, input VerifiedInput) uint64 {
	value := min(input.Value, WalletBonusCap)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.get(user).walletBonus = value
	return value
}

// SetZkBoost records the verification boost. The epoch must strictly exceed
// the last accepted epoch for the user; replays fail with ErrStaleEpoch.
// Values above the cap are clamped.
func (e *Engine) SetZkBoost(user string, input VerifiedInput) (uint64, error) {
	value := min(input.Value, ZkBoostCap)
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.get(user)
	if input.Epoch <= rec.zkEpoch {
		return 0, ErrStaleEpoch
	}
	rec.zkEpoch = input.Epoch
	rec.zkBoost = value
	return value, nil
}

// OnLoanSettled awards repayment points for a loan that just transitioned to
// repaid. The caller passes the time remaining until the due date at the
// moment of the settling payment. Called exactly once per loan by the
// loan ledger.
func (e *Engine) OnLoanSettled(user string, remaining time.Duration) (Timing, uint64) {
	timing, points := ClassifySettlement(remaining)
	if points == 0 {
		return timing, 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.get(user).repaymentScore += points
	return timing, points
}

// OnDefault blacklists the user. The repayment score is left untouched:
// losing all future eligibility is the penalty.
func (e *Engine) OnDefault(user string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.get(user).blacklisted = true
}
