package rtc

import (
	"fmt"
	"sync"
	"time"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/errors"
)

// Goldfish RTC register offsets.
const (
	RegTimeLow        uintptr = 0x00
	RegTimeHigh       uintptr = 0x04
	RegAlarmLow       uintptr = 0x08
	RegAlarmHigh      uintptr = 0x0c
	RegIRQEnabled     uintptr = 0x10
	RegClearAlarm     uintptr = 0x14
	RegAlarmStatus    uintptr = 0x18
	RegClearInterrupt uintptr = 0x1c

	// RegionSize is the span of the register window.
	RegionSize uintptr = 0x20
)

// Goldfish drives a Goldfish RTC through its register window.
type Goldfish struct {
	region faultdomain.IORegion
}

func NewGoldfish(region faultdomain.IORegion) *Goldfish {
	return &Goldfish{region: region}
}

// ReadTime returns nanoseconds since the Unix epoch. Reading TIME_LOW
// latches TIME_HIGH, so the low word must be read first.
func (g *Goldfish) ReadTime() uint64 {
	low := g.region.ReadAt(RegTimeLow)
	high := g.region.ReadAt(RegTimeHigh)
	return uint64(high)<<32 | uint64(low)
}

// SetTime programs the clock. The device commits on the TIME_LOW write.
func (g *Goldfish) SetTime(ns uint64) {
	g.region.WriteAt(RegTimeHigh, uint32(ns>>32))
	g.region.WriteAt(RegTimeLow, uint32(ns))
}

// ClearInterrupt acknowledges a pending alarm interrupt.
func (g *Goldfish) ClearInterrupt() {
	g.region.WriteAt(RegClearInterrupt, 1)
}

// EmulatedRegion implements the Goldfish register window on top of a host
// clock. Access outside the window panics, like a faulting MMIO access.
type EmulatedRegion struct {
	now         func() time.Time
	offset      int64
	latchedHigh uint32
	pendingHigh uint32
	irqPending  uint32
	irqEnabled  uint32
	mu          sync.Mutex
}

// NewEmulatedRegion returns a register window backed by now. A nil now
// uses time.Now.
func NewEmulatedRegion(now func() time.Time) *EmulatedRegion {
	if now == nil {
		now = time.Now
	}
	return &EmulatedRegion{now: now}
}

func (r *EmulatedRegion) ReadAt(offset uintptr) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch offset {
	case RegTimeLow:
		ns := uint64(r.now().UnixNano() + r.offset)
		r.latchedHigh = uint32(ns >> 32)
		return uint32(ns)
	case RegTimeHigh:
		return r.latchedHigh
	case RegIRQEnabled:
		return r.irqEnabled
	case RegAlarmStatus:
		return r.irqPending
	case RegAlarmLow, RegAlarmHigh, RegClearAlarm, RegClearInterrupt:
		return 0
	}
	panic(fmt.Sprintf("rtc: read outside register window at %#x", offset))
}

func (r *EmulatedRegion) WriteAt(offset uintptr, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch offset {
	case RegTimeHigh:
		r.pendingHigh = value
	case RegTimeLow:
		target := int64(uint64(r.pendingHigh)<<32 | uint64(value))
		r.offset = target - r.now().UnixNano()
	case RegIRQEnabled:
		r.irqEnabled = value
	case RegClearInterrupt, RegClearAlarm:
		r.irqPending = 0
	case RegAlarmLow, RegAlarmHigh, RegAlarmStatus:
	default:
		panic(fmt.Sprintf("rtc: write outside register window at %#x", offset))
	}
}

// RegionMapper maps a physical address range to a register window.
type RegionMapper func(faultdomain.AddressRange) (faultdomain.IORegion, error)

// EmulatedMapper maps any range large enough for the Goldfish window to an
// EmulatedRegion driven by now.
func EmulatedMapper(now func() time.Time) RegionMapper {
	return func(r faultdomain.AddressRange) (faultdomain.IORegion, error) {
		if r.Len() < RegionSize {
			return nil, errors.New(errors.PhaseInit, errors.KindInvalidInput).
				Detail("region %s smaller than register window %#x", r, RegionSize).
				Build()
		}
		return NewEmulatedRegion(now), nil
	}
}
