package stream

import (
	"context"
	"sync"
	"time"
)

// Kind labels a protocol event for dashboard consumers.
type Kind string

const (
	KindLoanCreated      Kind = "loan.created"
	KindLoanInstallment  Kind = "loan.installment"
	KindLoanRepaid       Kind = "loan.repaid"
	KindLoanDefaulted    Kind = "loan.defaulted"
	KindLiquidityChanged Kind = "liquidity.changed"
)

// Event describes a loan lifecycle or liquidity change for live dashboards.
type Event struct {
	Kind      Kind      `json:"kind"`
	LoanID    string    `json:"loan_id,omitempty"`
	Borrower  string    `json:"borrower,omitempty"`
	Merchant  string    `json:"merchant,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Balance   int64     `json:"balance,omitempty"`
	Timing    string    `json:"timing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs protocol events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
