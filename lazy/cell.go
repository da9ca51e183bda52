// Package lazy provides a one-time initialization cell for domain-local state.
//
// A domain's first call is its Init, which fills its cells; every later call
// reads them. Reading a cell before it is filled is a programming error and
// panics with a contract violation.
package lazy

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/wippyai/faultdomain/errors"
)

// Cell holds a value that transitions Uninitialized -> Ready exactly once.
// The zero value is an uninitialized cell.
type Cell[T any] struct {
	value T
	once  sync.Once
	ready atomic.Bool
}

// CallOnce stores init's result if the cell is still uninitialized.
// Later calls are no-ops. If init panics the cell stays uninitialized
// and can never become ready.
func (c *Cell[T]) CallOnce(init func() T) {
	c.once.Do(func() {
		c.value = init()
		c.ready.Store(true)
	})
}

// GetMust returns the stored value. It panics with a contract violation
// when the cell is uninitialized.
func (c *Cell[T]) GetMust() T {
	if !c.ready.Load() {
		panic(errors.New(errors.PhaseInit, errors.KindContractViolation).
			Detail("read of uninitialized %s cell", reflect.TypeFor[T]()).
			Cause(errors.NotInitialized(errors.PhaseInit, "cell")).
			Build())
	}
	return c.value
}

// Get returns the stored value and whether the cell is ready.
func (c *Cell[T]) Get() (T, bool) {
	if !c.ready.Load() {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Ready reports whether the cell holds a value.
func (c *Cell[T]) Ready() bool {
	return c.ready.Load()
}
