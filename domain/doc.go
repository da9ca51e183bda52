// Package domain defines the capability contracts domains implement, the
// handles that reference live domains, and the registry resolving names to
// handles.
//
// Contracts:
//
//	BlkDevice   read/write 512-byte sectors, capacity, flush, irq
//	Rtc         init over a register range, read calendar time
//	ShadowBlk   BlkDevice that forwards to a named block domain
//
// A Handle is tagged with the Kind of contract it exposes. Resolving a name
// to the wrong kind is reported as a kind_mismatch error; domains that require
// a particular kind treat that as a contract violation.
package domain
