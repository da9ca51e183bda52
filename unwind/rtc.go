package unwind

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/heap"
)

// Rtc wraps an RTC domain in a Boundary.
type Rtc struct {
	*Boundary
	impl atomic.Pointer[domain.Rtc]
}

var _ domain.Rtc = (*Rtc)(nil)

// WrapRtc wraps d.
func WrapRtc(env domain.Env, d domain.Rtc) *Rtc {
	r := &Rtc{Boundary: NewBoundary(env)}
	r.Replace(d)
	return r
}

// Replace swaps the implementation behind r.
func (r *Rtc) Replace(d domain.Rtc) {
	r.impl.Store(&d)
}

func (r *Rtc) inner() domain.Rtc { return *r.impl.Load() }

func (r *Rtc) DomainID() faultdomain.ID { return r.id }

func (r *Rtc) HandleIRQ(ctx context.Context) error {
	return r.Exec("handle_irq", func() error { return r.inner().HandleIRQ(ctx) })
}

func (r *Rtc) Init(ctx context.Context, region faultdomain.AddressRange) error {
	return r.Exec("init", func() error { return r.inner().Init(ctx, region) })
}

func (r *Rtc) ReadTime(ctx context.Context, t *heap.Box[heap.RtcTime]) (*heap.Box[heap.RtcTime], error) {
	return transfer(r.Boundary, "read_time", t, func(lent *heap.Box[heap.RtcTime]) (*heap.Box[heap.RtcTime], error) {
		return r.inner().ReadTime(ctx, lent)
	})
}
