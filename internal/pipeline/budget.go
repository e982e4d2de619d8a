package pipeline

import "sync/atomic"

// Budget is the shared API-call budget for one run. Workers decrement it
// atomically before every upstream call; a worker that would drive it below
// zero must not issue the call.
type Budget struct {
	remaining int64
}

// NewBudget creates a budget of total calls.
func NewBudget(total int) *Budget {
	return &Budget{remaining: int64(total)}
}

// TrySpend consumes one call from the budget, returning false without
// spending when nothing remains.
func (b *Budget) TrySpend() bool {
	if atomic.AddInt64(&b.remaining, -1) >= 0 {
		return true
	}
	atomic.AddInt64(&b.remaining, 1)
	return false
}

// Refund hands one spent call back. The router refunds when a spend never
// reached a provider because no credential was available.
func (b *Budget) Refund() {
	atomic.AddInt64(&b.remaining, 1)
}

// Remaining returns the calls left, never negative.
func (b *Budget) Remaining() int64 {
	r := atomic.LoadInt64(&b.remaining)
	if r < 0 {
		return 0
	}
	return r
}

// Exhausted reports whether the budget is spent.
func (b *Budget) Exhausted() bool {
	return atomic.LoadInt64(&b.remaining) <= 0
}
