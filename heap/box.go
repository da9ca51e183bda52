package heap

import (
	"sync/atomic"

	"github.com/wippyai/faultdomain"
)

// owned is the move-only core shared by Box and RRef. The key is swapped
// out atomically on move so exactly one holder can ever use a slot.
type owned[T any] struct {
	heap *Heap
	key  atomic.Uint64
}

func (o *owned[T]) load(op string) (*T, slotKey) {
	k := slotKey(o.key.Load())
	if o.heap == nil || k == 0 {
		panic(violation(stateMoved, op))
	}
	v, st := o.heap.table.get(k)
	if st != stateOK {
		panic(violation(st, op))
	}
	return v.(*T), k
}

func (o *owned[T]) take(op string) slotKey {
	if o.heap == nil {
		panic(violation(stateMoved, op))
	}
	k := slotKey(o.key.Swap(0))
	if k == 0 {
		panic(violation(stateMoved, op))
	}
	return k
}

func (o *owned[T]) move(to faultdomain.ID, op string) slotKey {
	k := o.take(op)
	if st := o.heap.table.setOwner(k, to); st != stateOK {
		if st == stateBorrowed {
			o.key.Store(uint64(k))
		}
		panic(violation(st, op))
	}
	o.heap.notify(Event{Handle: k.handle(), Owner: to, Type: EventMoved})
	return k
}

func (o *owned[T]) valid() bool {
	k := slotKey(o.key.Load())
	if o.heap == nil || k == 0 {
		return false
	}
	_, st := o.heap.table.get(k)
	return st == stateOK
}

func (o *owned[T]) poison() bool {
	k := slotKey(o.key.Load())
	if o.heap == nil || k == 0 {
		return false
	}
	owner, ok := o.heap.table.poison(k)
	if ok {
		o.heap.notify(Event{Handle: k.handle(), Owner: owner, Type: EventPoisoned})
	}
	return ok
}

func (o *owned[T]) drop() error {
	if o.heap == nil {
		return stateErr(stateMoved, "drop")
	}
	k := slotKey(o.key.Load())
	if k == 0 {
		return stateErr(stateMoved, "drop")
	}
	owner, st := o.heap.table.drop(k)
	if st != stateOK && st != statePoisoned {
		return stateErr(st, "drop")
	}
	o.key.Store(0)
	o.heap.notify(Event{Handle: k.handle(), Owner: owner, Type: EventDropped})
	return nil
}

func (o *owned[T]) owner() faultdomain.ID {
	k := slotKey(o.key.Load())
	if o.heap == nil || k == 0 {
		return faultdomain.NoDomain
	}
	o.heap.table.mu.RLock()
	defer o.heap.table.mu.RUnlock()
	s, _ := o.heap.table.lookup(k)
	if s == nil {
		return faultdomain.NoDomain
	}
	return s.owner
}

// Box exclusively owns one T in the shared heap.
//
// A Box is move-only: Move invalidates the receiver and returns the only
// usable handle. Any access through an invalidated Box panics with a
// contract violation.
type Box[T any] struct {
	owned[T]
}

// NewBox allocates v in h. The box starts out held by its caller.
func NewBox[T any](h *Heap, v T) *Box[T] {
	b := &Box[T]{}
	b.heap = h
	val := v
	b.key.Store(uint64(h.alloc(faultdomain.NoDomain, &val)))
	return b
}

// Get returns exclusive access to the boxed value.
func (b *Box[T]) Get() *T {
	v, _ := b.load("box.get")
	return v
}

// Set replaces the boxed value.
func (b *Box[T]) Set(v T) {
	*b.Get() = v
}

// Move transfers ownership to domain to. b is unusable afterwards.
func (b *Box[T]) Move(to faultdomain.ID) *Box[T] {
	k := b.move(to, "box.move")
	nb := &Box[T]{}
	nb.heap = b.heap
	nb.key.Store(uint64(k))
	return nb
}

// Valid reports whether b can still be accessed.
func (b *Box[T]) Valid() bool { return b != nil && b.valid() }

// Owner returns the domain currently holding the slot.
func (b *Box[T]) Owner() faultdomain.ID { return b.owner() }

// Poison marks the slot as lent into a call that crashed.
func (b *Box[T]) Poison() bool { return b.poison() }

// Drop frees the slot. b is unusable afterwards.
func (b *Box[T]) Drop() error { return b.drop() }
