// Package unwind converts faults inside a domain into typed errors.
//
// Every domain is handed to its loader wrapped in a boundary:
//
//	func Main(env domain.Env) *unwind.Blk {
//	    return unwind.WrapBlk(env, newDevice(env))
//	}
//
// Each operation of the wrapped domain runs inside Guard. A panic raised
// during the call, including one raised in a domain it calls without a
// boundary of its own, is recovered and returned as an errors.KindCrash
// error. Callers only ever observe a result or a typed error.
//
// The boundary keeps no crashed state: after a crash the handle stays usable
// and the next call proceeds normally. Whether to retry, restart or give up
// is decided by the caller (see drivers/shadowblk) or the domain manager.
//
// # Buffers
//
// Operations that consume a heap handle move it to the callee's ownership
// before the call and hand the result back afterwards. When the call crashes
// the lent slot is poisoned, so nothing can observe half-written contents.
//
// # Contract violations
//
// A panic carrying an errors.KindContractViolation error is not a crash: it
// is returned unchanged so the offending call path is aborted and not retried.
//
// # Restart
//
// Blk, Rtc and ShadowBlk support Replace, which swaps the implementation
// behind the same handle. The domain manager uses it to restart a domain
// without invalidating handles cached by other domains.
package unwind
