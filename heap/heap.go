package heap

import (
	"context"
	"sync"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/errors"
)

type state uint8

const (
	stateOK state = iota
	stateMoved
	statePoisoned
	stateBorrowed
)

// Heap is memory reachable by ownership transfer across domain boundaries.
// Values live in a slot table; Box and RRef are move-only handles into it.
type Heap struct {
	table     *slotTable
	observers []Observer
	obsMu     sync.RWMutex
}

// New creates an empty shared heap.
func New() *Heap {
	return &Heap{table: newSlotTable()}
}

// Checkout reclaims every slot that was lent into a call which crashed.
// Recovery code runs it before retrying against a crashed domain.
func (h *Heap) Checkout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.PhaseRecover, errors.KindCanceled, err, "checkout interrupted")
	}
	events := h.table.reclaim(func(s *slot) bool { return s.poisoned })
	h.notify(events...)
	return nil
}

// ReclaimOwner frees every slot currently owned by id and returns the count.
// The domain manager calls it when it tears down a domain instance.
func (h *Heap) ReclaimOwner(id faultdomain.ID) int {
	if id == faultdomain.NoDomain {
		return 0
	}
	events := h.table.reclaim(func(s *slot) bool { return s.owner == id })
	h.notify(events...)
	return len(events)
}

// Stats returns a snapshot of the slot table.
func (h *Heap) Stats() Stats {
	return h.table.stats()
}

// Subscribe adds an observer for lifecycle events.
func (h *Heap) Subscribe(o Observer) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	h.observers = append(h.observers, o)
}

// Unsubscribe removes an observer.
func (h *Heap) Unsubscribe(o Observer) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	for i, obs := range h.observers {
		if obs == o {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			return
		}
	}
}

func (h *Heap) notify(events ...Event) {
	if len(events) == 0 {
		return
	}
	h.obsMu.RLock()
	defer h.obsMu.RUnlock()
	for _, e := range events {
		for _, o := range h.observers {
			o.OnHeapEvent(e)
		}
	}
}

func (h *Heap) alloc(owner faultdomain.ID, value any) slotKey {
	k := h.table.create(owner, value)
	h.notify(Event{Handle: k.handle(), Owner: owner, Type: EventAllocated})
	return k
}

// violation builds the panic value for handle misuse. Heap misuse is a
// contract violation: the offending call path must not continue.
func violation(st state, op string) *errors.Error {
	var kind errors.Kind
	var detail string
	switch st {
	case statePoisoned:
		kind, detail = errors.KindPoisoned, "slot was lent into a crashed call"
	case stateBorrowed:
		kind, detail = errors.KindBorrowed, "slot has outstanding borrows"
	default:
		kind, detail = errors.KindMoved, "handle was moved or dropped"
	}
	return errors.New(errors.PhaseHeap, errors.KindContractViolation).
		Op(op).
		Detail(detail).
		Cause(errors.New(errors.PhaseHeap, kind).Build()).
		Build()
}

func stateErr(st state, op string) error {
	if st == stateOK {
		return nil
	}
	return violation(st, op)
}
