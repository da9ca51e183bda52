package unwind

import (
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/metrics"
)

// Boundary is the crash-catching region shared by every call into one domain.
type Boundary struct {
	metrics *metrics.Metrics
	name    string
	id      faultdomain.ID
}

// NewBoundary creates the boundary for the domain described by env.
func NewBoundary(env domain.Env) *Boundary {
	return &Boundary{
		metrics: env.Metrics,
		name:    env.Name,
		id:      env.ID,
	}
}

// Name returns the wrapped domain's name.
func (b *Boundary) Name() string { return b.name }

// DomainID returns the wrapped domain's identity.
func (b *Boundary) DomainID() faultdomain.ID { return b.id }

// Guard runs fn inside b. A panic raised by fn, or by anything fn calls, is
// recovered and returned as a crash error. A contract violation panic is
// returned as the violation itself so callers never retry it.
func Guard[R any](b *Boundary, op string, fn func() (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = b.convert(op, r)
		}
	}()
	return fn()
}

// Exec is Guard for operations without a result.
func (b *Boundary) Exec(op string, fn func() error) error {
	_, err := Guard(b, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *Boundary) convert(op string, r any) error {
	if e, ok := r.(*errors.Error); ok && e.Kind == errors.KindContractViolation {
		if e.Domain == "" && e.DomainID == 0 {
			e.Domain, e.DomainID = b.name, uint64(b.id)
		}
		if e.Op == "" {
			e.Op = op
		}
		Logger().Error("contract violation in domain",
			zap.String("domain", b.name),
			zap.Uint64("id", uint64(b.id)),
			zap.String("op", op),
			zap.Error(e))
		return e
	}

	b.metrics.IncrementCrashes(b.name, op)
	Logger().Error("domain crashed",
		zap.String("domain", b.name),
		zap.Uint64("id", uint64(b.id)),
		zap.String("op", op),
		zap.Any("panic", r),
		zap.ByteString("stack", debug.Stack()))
	return errors.Crash(b.name, uint64(b.id), op, r)
}

// lendable is a move-only heap handle that can be lent into a call.
type lendable[H any] interface {
	comparable
	Move(to faultdomain.ID) H
	Poison() bool
	Drop() error
}

// transfer moves arg into the callee for the duration of call. On success the
// returned handle is handed back to the caller. On a crash the lent slot is
// poisoned; on any other error it is dropped, since the callee consumed it.
// A nil, moved or borrowed arg is reported as a contract violation.
func transfer[H lendable[H]](b *Boundary, op string, arg H, call func(H) (H, error)) (H, error) {
	var zero, lent H
	if arg == zero {
		return zero, errors.New(errors.PhaseCall, errors.KindContractViolation).
			Domain(b.name, uint64(b.id)).
			Op(op).
			Detail("no buffer lent").
			Build()
	}

	res, err := Guard(b, op, func() (H, error) {
		lent = arg.Move(b.id)
		r, err := call(lent)
		if err != nil {
			return zero, err
		}
		if r == zero {
			return zero, errors.New(errors.PhaseCall, errors.KindContractViolation).
				Domain(b.name, uint64(b.id)).
				Op(op).
				Detail("returned no buffer").
				Build()
		}
		return r.Move(faultdomain.NoDomain), nil
	})
	if err != nil && lent != zero {
		if errors.IsCrash(err) {
			lent.Poison()
		} else {
			_ = lent.Drop()
		}
	}
	return res, err
}
