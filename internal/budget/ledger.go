// Package budget tracks spend against a per-run (or shared) cost ceiling.
package budget

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// Reservation is a provisional hold against the ledger. It must be settled
// exactly once; settling commits the actual cost and releases the difference.
type Reservation struct {
	id     string
	amount float64
}

// Amount returns the reserved estimate.
func (r *Reservation) Amount() float64 { return r.amount }

// Ledger enforces the invariant consumed + reserved <= ceiling at all times.
// Reserve is atomic: either the whole estimate fits or nothing is mutated.
// Safe for concurrent callers sharing one ledger.
type Ledger struct {
	mu       sync.Mutex
	ceiling  float64
	consumed float64
	reserved float64
	pending  map[string]float64
}

// NewLedger creates a ledger with the given ceiling.
func NewLedger(ceiling float64) *Ledger {
	return &Ledger{
		ceiling: ceiling,
		pending: make(map[string]float64),
	}
}

// NewLedgerWithConsumed restores a ledger that already spent part of its
// ceiling, e.g. when a paused run resumes.
func NewLedgerWithConsumed(ceiling, consumed float64) *Ledger {
	l := NewLedger(ceiling)
	l.consumed = consumed
	return l
}

// Reserve places a hold for estimate. Returns domain.ErrBudgetExceeded when the
// estimate does not fit under ceiling - consumed - reserved; in that case the
// ledger is left untouched.
func (l *Ledger) Reserve(estimate float64) (*Reservation, error) {
	if estimate < 0 {
		return nil, fmt.Errorf("negative estimate %.6f: %w", estimate, domain.ErrBudgetExceeded)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.consumed+l.reserved+estimate > l.ceiling {
		return nil, fmt.Errorf("estimate %.6f over remaining %.6f: %w",
			estimate, l.ceiling-l.consumed-l.reserved, domain.ErrBudgetExceeded)
	}

	r := &Reservation{id: uuid.New().String(), amount: estimate}
	l.reserved += estimate
	l.pending[r.id] = estimate
	return r, nil
}

// Settle commits the actual cost for a reservation and releases the hold.
// It never fails: an actual above the estimate is clamped to whatever keeps the
// ledger invariant intact, and the overrun is logged instead of failing the
// run retroactively. Settling an unknown or already-settled reservation is a no-op.
func (l *Ledger) Settle(r *Reservation, actual float64) {
	if r == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.pending[r.id]
	if !ok {
		return
	}
	delete(l.pending, r.id)
	l.reserved -= held

	if actual < 0 {
		actual = 0
	}
	if l.consumed+l.reserved+actual > l.ceiling {
		clamped := l.ceiling - l.consumed - l.reserved
		if clamped < 0 {
			clamped = 0
		}
		log.Printf("WARN: budget overrun: actual %.6f exceeds headroom, clamping to %.6f", actual, clamped)
		actual = clamped
	}
	l.consumed += actual
}

// Remaining returns the headroom available for new reservations.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ceiling - l.consumed - l.reserved
}

// Consumed returns the committed spend so far.
func (l *Ledger) Consumed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consumed
}

// Ceiling returns the configured maximum for this ledger.
func (l *Ledger) Ceiling() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ceiling
}
