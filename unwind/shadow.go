package unwind

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/heap"
)

// ShadowBlk wraps a shadow block domain in a Boundary.
type ShadowBlk struct {
	*Boundary
	impl atomic.Pointer[domain.ShadowBlk]
}

var _ domain.ShadowBlk = (*ShadowBlk)(nil)

// WrapShadowBlk wraps d.
func WrapShadowBlk(env domain.Env, d domain.ShadowBlk) *ShadowBlk {
	s := &ShadowBlk{Boundary: NewBoundary(env)}
	s.Replace(d)
	return s
}

// Replace swaps the implementation behind s.
func (s *ShadowBlk) Replace(d domain.ShadowBlk) {
	s.impl.Store(&d)
}

func (s *ShadowBlk) inner() domain.ShadowBlk { return *s.impl.Load() }

func (s *ShadowBlk) DomainID() faultdomain.ID { return s.id }

// Target reports the wrapped shadow's target, or "" if it has none.
func (s *ShadowBlk) Target() string {
	if t, ok := s.inner().(interface{ Target() string }); ok {
		return t.Target()
	}
	return ""
}

func (s *ShadowBlk) HandleIRQ(ctx context.Context) error {
	return s.Exec("handle_irq", func() error { return s.inner().HandleIRQ(ctx) })
}

func (s *ShadowBlk) Init(ctx context.Context, target string) error {
	return s.Exec("init", func() error { return s.inner().Init(ctx, target) })
}

func (s *ShadowBlk) ReadBlock(ctx context.Context, index uint32, data *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error) {
	return transfer(s.Boundary, "read_block", data, func(lent *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error) {
		return s.inner().ReadBlock(ctx, index, lent)
	})
}

func (s *ShadowBlk) WriteBlock(ctx context.Context, index uint32, data heap.Ref[heap.Block]) (int, error) {
	return Guard(s.Boundary, "write_block", func() (int, error) {
		return s.inner().WriteBlock(ctx, index, data)
	})
}

func (s *ShadowBlk) Capacity(ctx context.Context) (uint64, error) {
	return Guard(s.Boundary, "get_capacity", func() (uint64, error) {
		return s.inner().Capacity(ctx)
	})
}

func (s *ShadowBlk) Flush(ctx context.Context) error {
	return s.Exec("flush", func() error { return s.inner().Flush(ctx) })
}
