package heap

import "github.com/wippyai/faultdomain"

// BlockSize is the size of a block device sector in bytes.
const BlockSize = 512

// Block is one sector of block device data.
type Block [BlockSize]byte

// RtcTime is a broken-down calendar time as reported by an RTC domain.
type RtcTime struct {
	Year  uint32
	Mon   uint32 // 1-12
	MDay  uint32 // 1-31
	Hour  uint32
	Min   uint32
	Sec   uint32
	WDay  uint32 // days since Sunday
	YDay  uint32 // days since January 1
	IsDst uint32
}

// Handle is an opaque index into the heap's slot table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a slot lifecycle transition.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventMoved
	EventDropped
	EventPoisoned
	EventReclaimed
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventMoved:
		return "moved"
	case EventDropped:
		return "dropped"
	case EventPoisoned:
		return "poisoned"
	case EventReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// Event represents a slot lifecycle event.
type Event struct {
	Handle Handle
	Owner  faultdomain.ID
	Type   EventType
}

// Observer receives notifications about slot lifecycle events.
type Observer interface {
	OnHeapEvent(Event)
}

// Stats is a snapshot of the heap's slot table.
type Stats struct {
	Live     int
	Borrowed int
	Poisoned int
}
