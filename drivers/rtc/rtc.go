// Package rtc implements a real-time clock domain over Goldfish RTC registers.
package rtc

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/lazy"
	"github.com/wippyai/faultdomain/unwind"
)

const nanosPerSec = 1_000_000_000

// Rtc is the RTC domain implementation.
type Rtc struct {
	mapper RegionMapper
	rtc    lazy.Cell[*Goldfish]
	name   string
	last   atomic.Uint64
	id     faultdomain.ID
}

var _ domain.Rtc = (*Rtc)(nil)

// Option configures an Rtc.
type Option func(*Rtc)

// WithRegionMapper sets how Init maps its address range to registers.
func WithRegionMapper(m RegionMapper) Option {
	return func(r *Rtc) { r.mapper = m }
}

// New creates an uninitialized RTC domain.
func New(env domain.Env, opts ...Option) *Rtc {
	r := &Rtc{
		mapper: EmulatedMapper(nil),
		name:   env.Name,
		id:     env.ID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Main is the domain entry point: it returns the RTC wrapped in its boundary.
func Main(env domain.Env, opts ...Option) *unwind.Rtc {
	return unwind.WrapRtc(env, New(env, opts...))
}

func (r *Rtc) DomainID() faultdomain.ID { return r.id }

// HandleIRQ acknowledges the alarm interrupt.
func (r *Rtc) HandleIRQ(_ context.Context) error {
	r.rtc.GetMust().ClearInterrupt()
	return nil
}

func (r *Rtc) Init(_ context.Context, region faultdomain.AddressRange) error {
	if region.Empty() {
		return errors.InvalidInput(errors.PhaseInit, "empty rtc address range")
	}
	Logger().Info("rtc region", zap.String("domain", r.name), zap.Stringer("region", region))

	io, err := r.mapper(region)
	if err != nil {
		return err
	}
	dev := NewGoldfish(io)
	r.rtc.CallOnce(func() *Goldfish { return dev })

	Logger().Info("current time", zap.String("domain", r.name), zap.String("time", Format(r.now())))
	return nil
}

func (r *Rtc) ReadTime(_ context.Context, t *heap.Box[heap.RtcTime]) (*heap.Box[heap.RtcTime], error) {
	*t.Get() = Decode(r.now())
	return t, nil
}

// now returns the device time in nanoseconds, never earlier than a value
// returned before.
func (r *Rtc) now() uint64 {
	raw := r.rtc.GetMust().ReadTime()
	for {
		last := r.last.Load()
		if raw <= last {
			return last
		}
		if r.last.CompareAndSwap(last, raw) {
			return raw
		}
	}
}

// Decode converts nanoseconds since the epoch into calendar fields (UTC),
// truncated to whole seconds.
func Decode(ns uint64) heap.RtcTime {
	tm := time.Unix(int64(ns/nanosPerSec), 0).UTC()
	return heap.RtcTime{
		Year: uint32(tm.Year()),
		Mon:  uint32(tm.Month()),
		MDay: uint32(tm.Day()),
		Hour: uint32(tm.Hour()),
		Min:  uint32(tm.Minute()),
		Sec:  uint32(tm.Second()),
		WDay: uint32(tm.Weekday()),
		YDay: uint32(tm.YearDay() - 1),
	}
}

// Format renders ns as "YYYY-MM-DD hh:mm:ss" in UTC.
func Format(ns uint64) string {
	return FormatTime(Decode(ns))
}

// FormatTime renders t as "YYYY-MM-DD hh:mm:ss".
func FormatTime(t heap.RtcTime) string {
	return time.Date(int(t.Year), time.Month(t.Mon), int(t.MDay), int(t.Hour), int(t.Min), int(t.Sec), 0, time.UTC).
		Format(time.DateTime)
}
