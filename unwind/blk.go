package unwind

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/heap"
)

// Blk wraps a block device domain in a Boundary.
type Blk struct {
	*Boundary
	impl atomic.Pointer[domain.BlkDevice]
}

var _ domain.BlkDevice = (*Blk)(nil)

// WrapBlk wraps d.
func WrapBlk(env domain.Env, d domain.BlkDevice) *Blk {
	b := &Blk{Boundary: NewBoundary(env)}
	b.Replace(d)
	return b
}

// Replace swaps the implementation behind b. Calls already in flight finish
// against the old implementation.
func (b *Blk) Replace(d domain.BlkDevice) {
	b.impl.Store(&d)
}

func (b *Blk) inner() domain.BlkDevice { return *b.impl.Load() }

func (b *Blk) DomainID() faultdomain.ID { return b.id }

func (b *Blk) HandleIRQ(ctx context.Context) error {
	return b.Exec("handle_irq", func() error { return b.inner().HandleIRQ(ctx) })
}

func (b *Blk) ReadBlock(ctx context.Context, index uint32, data *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error) {
	return transfer(b.Boundary, "read_block", data, func(lent *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error) {
		return b.inner().ReadBlock(ctx, index, lent)
	})
}

func (b *Blk) WriteBlock(ctx context.Context, index uint32, data heap.Ref[heap.Block]) (int, error) {
	return Guard(b.Boundary, "write_block", func() (int, error) {
		return b.inner().WriteBlock(ctx, index, data)
	})
}

func (b *Blk) Capacity(ctx context.Context) (uint64, error) {
	return Guard(b.Boundary, "get_capacity", func() (uint64, error) {
		return b.inner().Capacity(ctx)
	})
}

func (b *Blk) Flush(ctx context.Context) error {
	return b.Exec("flush", func() error { return b.inner().Flush(ctx) })
}
