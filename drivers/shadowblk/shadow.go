// Package shadowblk implements a shadow block domain that fronts another
// block domain and retries reads that crash.
package shadowblk

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/lazy"
	"github.com/wippyai/faultdomain/metrics"
	"github.com/wippyai/faultdomain/unwind"
)

// Resolver looks up block-capable domains by name.
// domain.Registry implements it.
type Resolver interface {
	ResolveBlk(name string) (domain.BlkDevice, error)
}

// Checkouter reconciles shared-heap state after a crash.
// heap.Heap implements it.
type Checkouter interface {
	Checkout(ctx context.Context) error
}

// Shadow fronts a block domain and retries reads once when the target
// crashes. Writes, capacity, flush and interrupts are forwarded once.
type Shadow struct {
	resolver Resolver
	checkout Checkouter
	heap     *heap.Heap
	metrics  *metrics.Metrics
	target   lazy.Cell[string]
	blk      lazy.Cell[domain.BlkDevice]
	name     string
	banner   sync.Once
	initMu   sync.Mutex
	id       faultdomain.ID
}

var _ domain.ShadowBlk = (*Shadow)(nil)

// Option configures a Shadow.
type Option func(*Shadow)

// WithCheckout replaces the heap as the post-crash checkout step.
func WithCheckout(c Checkouter) Option {
	return func(s *Shadow) { s.checkout = c }
}

// New creates an uninitialized shadow domain.
func New(env domain.Env, resolver Resolver, opts ...Option) *Shadow {
	s := &Shadow{
		resolver: resolver,
		checkout: env.Heap,
		heap:     env.Heap,
		metrics:  env.Metrics,
		name:     env.Name,
		id:       env.ID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Main is the domain entry point: it returns the shadow wrapped in its boundary.
func Main(env domain.Env, resolver Resolver, opts ...Option) *unwind.ShadowBlk {
	return unwind.WrapShadowBlk(env, New(env, resolver, opts...))
}

func (s *Shadow) DomainID() faultdomain.ID { return s.id }

// Target returns the configured target name, or "" before Init.
func (s *Shadow) Target() string {
	name, _ := s.target.Get()
	return name
}

// Init binds the shadow to the named block domain.
func (s *Shadow) Init(_ context.Context, target string) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if bound, ok := s.target.Get(); ok {
		if bound == target {
			return nil
		}
		return s.violation("already bound to %q", bound)
	}
	blk, err := s.resolver.ResolveBlk(target)
	if err != nil {
		v := s.violation("target %q is not a block domain", target)
		v.Cause = err
		return v
	}
	if err := s.checkChain(target, blk); err != nil {
		v := s.violation("target %q forwards back to %q", target, s.name)
		v.Cause = err
		return v
	}
	s.target.CallOnce(func() string { return target })
	s.blk.CallOnce(func() domain.BlkDevice { return blk })

	Logger().Info("shadow bound",
		zap.String("domain", s.name),
		zap.String("target", target))
	return nil
}

// targeted is implemented by block domains that forward to another one.
type targeted interface {
	Target() string
}

// checkChain follows the forwarding chain that starts at blk and fails if it
// leads back to s. Forwarding around a cycle never terminates.
func (s *Shadow) checkChain(target string, blk domain.BlkDevice) error {
	seen := make(map[string]bool)
	for {
		id := blk.DomainID()
		if target == s.name || (s.id != faultdomain.NoDomain && id == s.id) {
			return errors.New(errors.PhaseInit, errors.KindCycle).
				Domain(target, uint64(id)).
				Detail("forwarding chain reaches %q", s.name).
				Build()
		}
		if seen[target] {
			return nil
		}
		seen[target] = true

		t, ok := blk.(targeted)
		if !ok {
			return nil
		}
		next := t.Target()
		if next == "" {
			return nil
		}
		nb, err := s.resolver.ResolveBlk(next)
		if err != nil {
			return nil
		}
		target, blk = next, nb
	}
}

func (s *Shadow) violation(detail string, args ...any) *errors.Error {
	return errors.New(errors.PhaseInit, errors.KindContractViolation).
		Domain(s.name, uint64(s.id)).
		Op("init").
		Detail(detail, args...).
		Build()
}

func (s *Shadow) HandleIRQ(ctx context.Context) error {
	return s.blk.GetMust().HandleIRQ(ctx)
}

// ReadBlock forwards to the target. If the target crashes, the shared heap
// is checked out and the read is retried exactly once with a fresh buffer.
// The retry's outcome is returned as is.
func (s *Shadow) ReadBlock(ctx context.Context, index uint32, data *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error) {
	s.banner.Do(func() {
		Logger().Info("shadow serving reads",
			zap.String("domain", s.name),
			zap.String("target", s.target.GetMust()),
			zap.Uint32("first_block", index))
	})

	blk := s.blk.GetMust()
	res, err := blk.ReadBlock(ctx, index, data)
	if err == nil || !errors.IsCrash(err) {
		return res, err
	}

	Logger().Warn("target crashed, retrying read",
		zap.String("domain", s.name),
		zap.String("target", s.target.GetMust()),
		zap.Uint32("block", index),
		zap.Error(err))

	if cerr := s.checkout.Checkout(ctx); cerr != nil {
		s.metrics.IncrementRecoveries(s.name, metrics.OutcomeFailed)
		return nil, cerr
	}

	res, err = blk.ReadBlock(ctx, index, heap.Fresh[heap.Block](s.heap))
	if err != nil {
		s.metrics.IncrementRecoveries(s.name, metrics.OutcomeFailed)
		Logger().Error("retry failed",
			zap.String("domain", s.name),
			zap.Uint32("block", index),
			zap.Error(err))
		return res, err
	}
	s.metrics.IncrementRecoveries(s.name, metrics.OutcomeRecovered)
	Logger().Info("read recovered",
		zap.String("domain", s.name),
		zap.Uint32("block", index))
	return res, nil
}

func (s *Shadow) WriteBlock(ctx context.Context, index uint32, data heap.Ref[heap.Block]) (int, error) {
	return s.blk.GetMust().WriteBlock(ctx, index, data)
}

func (s *Shadow) Capacity(ctx context.Context) (uint64, error) {
	return s.blk.GetMust().Capacity(ctx)
}

func (s *Shadow) Flush(ctx context.Context) error {
	return s.blk.GetMust().Flush(ctx)
}
