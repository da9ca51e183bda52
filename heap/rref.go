package heap

import (
	"sync/atomic"

	"github.com/wippyai/faultdomain"
)

// RRef is a move-only handle to a fixed-layout buffer in the shared heap.
//
// Calls that replace the buffer consume an RRef and return one; calls that
// only observe it take a read-only Ref obtained from Borrow.
type RRef[T any] struct {
	owned[T]
}

// NewRRef allocates v in h.
func NewRRef[T any](h *Heap, v T) *RRef[T] {
	r := &RRef[T]{}
	r.heap = h
	val := v
	r.key.Store(uint64(h.alloc(faultdomain.NoDomain, &val)))
	return r
}

// Fresh allocates a zero-initialized buffer in h.
func Fresh[T any](h *Heap) *RRef[T] {
	var zero T
	return NewRRef(h, zero)
}

// Data returns exclusive access to the buffer.
func (r *RRef[T]) Data() *T {
	v, _ := r.load("rref.data")
	return v
}

// Move transfers ownership to domain to. r is unusable afterwards.
// Moving a buffer with outstanding borrows panics and leaves r intact.
func (r *RRef[T]) Move(to faultdomain.ID) *RRef[T] {
	k := r.move(to, "rref.move")
	nr := &RRef[T]{}
	nr.heap = r.heap
	nr.key.Store(uint64(k))
	return nr
}

// Borrow returns a read-only view. The buffer cannot be moved or dropped
// until every view is released.
func (r *RRef[T]) Borrow() Ref[T] {
	_, k := r.load("rref.borrow")
	if st := r.heap.table.borrow(k); st != stateOK {
		panic(violation(st, "rref.borrow"))
	}
	return Ref[T]{b: &borrow[T]{heap: r.heap, key: k}}
}

// Valid reports whether r can still be accessed.
func (r *RRef[T]) Valid() bool { return r != nil && r.valid() }

// Owner returns the domain currently holding the buffer.
func (r *RRef[T]) Owner() faultdomain.ID { return r.owner() }

// Poison marks the buffer as lent into a call that crashed.
func (r *RRef[T]) Poison() bool { return r.poison() }

// Drop frees the buffer. r is unusable afterwards.
func (r *RRef[T]) Drop() error { return r.drop() }

type borrow[T any] struct {
	heap     *Heap
	key      slotKey
	released atomic.Bool
}

// Ref is a read-only view of an RRef's buffer.
type Ref[T any] struct {
	b *borrow[T]
}

// Load returns a copy of the buffer contents.
func (v Ref[T]) Load() T {
	if v.b == nil || v.b.released.Load() {
		panic(violation(stateMoved, "ref.load"))
	}
	val, st := v.b.heap.table.get(v.b.key)
	if st != stateOK {
		panic(violation(st, "ref.load"))
	}
	return *val.(*T)
}

// Valid reports whether the view can still be read.
func (v Ref[T]) Valid() bool {
	if v.b == nil || v.b.released.Load() {
		return false
	}
	_, st := v.b.heap.table.get(v.b.key)
	return st == stateOK
}

// Release ends the borrow. Releasing twice is a no-op.
func (v Ref[T]) Release() {
	if v.b == nil || !v.b.released.CompareAndSwap(false, true) {
		return
	}
	v.b.heap.table.returnBorrow(v.b.key)
}
