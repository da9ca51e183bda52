package domain

import (
	"context"

	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/heap"
)

// Basic is implemented by every domain.
type Basic interface {
	DomainID() faultdomain.ID
}

// DeviceBase is implemented by domains that own a device interrupt line.
type DeviceBase interface {
	HandleIRQ(ctx context.Context) error
}

// BlkDevice is the block device capability contract.
type BlkDevice interface {
	Basic
	DeviceBase

	// ReadBlock consumes data and returns a buffer holding sector index.
	// The returned buffer may be a different instance than data.
	ReadBlock(ctx context.Context, index uint32, data *heap.RRef[heap.Block]) (*heap.RRef[heap.Block], error)

	// WriteBlock writes the viewed buffer to sector index and returns the byte count.
	WriteBlock(ctx context.Context, index uint32, data heap.Ref[heap.Block]) (int, error)

	// Capacity returns the number of sectors.
	Capacity(ctx context.Context) (uint64, error)

	Flush(ctx context.Context) error
}

// Rtc is the real-time clock capability contract.
type Rtc interface {
	Basic
	DeviceBase

	Init(ctx context.Context, region faultdomain.AddressRange) error

	// ReadTime fills t with the current calendar time and returns it.
	ReadTime(ctx context.Context, t *heap.Box[heap.RtcTime]) (*heap.Box[heap.RtcTime], error)
}

// ShadowBlk is a block device that forwards to another block domain and
// recovers from its crashes.
type ShadowBlk interface {
	BlkDevice

	// Init resolves the target block domain by name.
	Init(ctx context.Context, target string) error
}
