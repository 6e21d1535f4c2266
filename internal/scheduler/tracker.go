package scheduler

import (
	"fmt"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

type pendingResult struct {
	received int
	slots    [model.NumProducts]matrix.Matrix
}

// Tracker collects the seven sub-products of each decomposed parent. It is
// not safe for concurrent use; the Scheduler's lock guards it.
type Tracker struct {
	pending map[string]*pendingResult
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[string]*pendingResult)}
}

// Begin creates the pending record for parent if it does not exist.
func (t *Tracker) Begin(parent string) {
	if _, ok := t.pending[parent]; !ok {
		t.pending[parent] = &pendingResult{}
	}
}

// Record stores m in the given slot of parent. A slot that is already filled
// is overwritten and reported as a duplicate without counting towards
// completion.
func (t *Tracker) Record(parent string, slot int, m matrix.Matrix) (bool, error) {
	if slot < 0 || slot >= model.NumProducts {
		return false, fmt.Errorf("record slot %d of %s: %w", slot, parent, model.ErrInvalidSlot)
	}
	t.Begin(parent)
	p := t.pending[parent]
	if p.slots[slot] != nil {
		p.slots[slot] = m
		return true, nil
	}
	p.slots[slot] = m
	p.received++
	return false, nil
}

// IsComplete reports whether all seven slots of parent are filled.
func (t *Tracker) IsComplete(parent string) bool {
	p, ok := t.pending[parent]
	return ok && p.received == model.NumProducts
}

// Drain removes the record for parent and returns its slots.
func (t *Tracker) Drain(parent string) ([model.NumProducts]matrix.Matrix, error) {
	p, ok := t.pending[parent]
	if !ok {
		return [model.NumProducts]matrix.Matrix{}, fmt.Errorf("drain %s: %w", parent, model.ErrUnknownTask)
	}
	delete(t.pending, parent)
	return p.slots, nil
}

// Discard drops the record for parent, if any.
func (t *Tracker) Discard(parent string) {
	delete(t.pending, parent)
}

// Len returns the number of parents with outstanding sub-products.
func (t *Tracker) Len() int {
	return len(t.pending)
}
