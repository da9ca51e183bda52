package domain

import (
	"github.com/wippyai/faultdomain"
)

// Kind tags the capability contract a handle exposes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBlk
	KindRtc
	KindShadowBlk
)

func (k Kind) String() string {
	switch k {
	case KindBlk:
		return "blk"
	case KindRtc:
		return "rtc"
	case KindShadowBlk:
		return "shadow-blk"
	default:
		return "invalid"
	}
}

// Handle is a typed reference to a live domain. Handles are values and may
// be freely shared; restarting a domain keeps its handles valid.
type Handle struct {
	capability Basic
	name       string
	kind       Kind
}

// NewBlkHandle returns a handle for a block device domain.
func NewBlkHandle(name string, d BlkDevice) Handle {
	return Handle{capability: d, name: name, kind: KindBlk}
}

// NewRtcHandle returns a handle for an RTC domain.
func NewRtcHandle(name string, d Rtc) Handle {
	return Handle{capability: d, name: name, kind: KindRtc}
}

// NewShadowBlkHandle returns a handle for a shadow block domain.
func NewShadowBlkHandle(name string, d ShadowBlk) Handle {
	return Handle{capability: d, name: name, kind: KindShadowBlk}
}

func (h Handle) Name() string { return h.name }
func (h Handle) Kind() Kind   { return h.kind }

// IsZero reports whether h refers to no domain.
func (h Handle) IsZero() bool { return h.capability == nil }

// ID returns the domain's stable identity.
func (h Handle) ID() faultdomain.ID {
	if h.capability == nil {
		return faultdomain.NoDomain
	}
	return h.capability.DomainID()
}

// Blk returns the block device capability. Shadow block domains are block
// capable as well, so they can be stacked.
func (h Handle) Blk() (BlkDevice, bool) {
	switch h.kind {
	case KindBlk, KindShadowBlk:
		d, ok := h.capability.(BlkDevice)
		return d, ok
	}
	return nil, false
}

// Rtc returns the RTC capability.
func (h Handle) Rtc() (Rtc, bool) {
	if h.kind != KindRtc {
		return nil, false
	}
	d, ok := h.capability.(Rtc)
	return d, ok
}

// ShadowBlk returns the shadow block capability.
func (h Handle) ShadowBlk() (ShadowBlk, bool) {
	if h.kind != KindShadowBlk {
		return nil, false
	}
	d, ok := h.capability.(ShadowBlk)
	return d, ok
}
