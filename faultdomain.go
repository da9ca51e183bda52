package faultdomain

import "fmt"

// ID is the stable identity of a domain. It survives restarts of the
// domain's implementation.
type ID uint64

// NoDomain owns handles held by a caller outside any in-flight call.
const NoDomain ID = 0

func (id ID) String() string {
	return fmt.Sprintf("domain#%d", uint64(id))
}

// AddressRange is a half-open physical address range [Start, End).
type AddressRange struct {
	Start uintptr
	End   uintptr
}

// Len returns the size of the range in bytes.
func (r AddressRange) Len() uintptr {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether the range covers no bytes.
func (r AddressRange) Empty() bool {
	return r.Len() == 0
}

func (r AddressRange) String() string {
	return fmt.Sprintf("%#x..%#x", r.Start, r.End)
}

// IORegion is a memory-mapped device register window.
type IORegion interface {
	ReadAt(offset uintptr) uint32
	WriteAt(offset uintptr, value uint32)
}
