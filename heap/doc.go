// Package heap provides the shared heap used to pass data across domain
// boundaries without copying.
//
// # Handles
//
// Two move-only handle types point into the heap:
//
//	Box[T]   one exclusively owned value (e.g. an RtcTime being filled in)
//	RRef[T]  a fixed-layout buffer (e.g. a 512-byte Block)
//
// Passing a handle into a cross-domain call moves it:
//
//	lent := buf.Move(calleeID)   // buf is now unusable
//	buf, err = callee.ReadBlock(ctx, 7, lent)
//
// Read-only calls take a view instead:
//
//	view := buf.Borrow()
//	defer view.Release()
//	n, err := callee.WriteBlock(ctx, 7, view)
//
// # Crashes
//
// Every slot carries an owner tag. When a call crashes, the boundary poisons
// the slot it lent into the call; poisoned slots refuse access and are freed
// by Checkout. The caller's own handle was invalidated by the move, so a retry
// must allocate a fresh buffer:
//
//	if errors.IsCrash(err) {
//	    _ = h.Checkout(ctx)
//	    buf, err = callee.ReadBlock(ctx, 7, heap.Fresh[heap.Block](h))
//	}
//
// # Misuse
//
// Accessing a moved, dropped or poisoned handle panics with a contract
// violation error. The unwind boundary converts that panic into an error that
// aborts the current call.
package heap
