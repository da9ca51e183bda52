// Package faultdomain provides the fault-isolation substrate for device
// drivers that run as independently recoverable domains.
//
// A domain hosts one driver behind a capability contract (block device,
// real-time clock, ...). Callers reach it through a handle resolved by name,
// and every call into it either returns a result or a typed crash error:
// a fault inside the domain never escapes to the caller.
//
// # Architecture Overview
//
//	faultdomain/         Root package with domain identity and IORegion
//	├── errors/          Structured error types (crash, device, contract violation)
//	├── heap/            Shared heap: move-only Box and RRef handles
//	├── lazy/            One-time initialization cell for domain state
//	├── domain/          Capability contracts, handles and the name registry
//	├── unwind/          Crash-to-error boundary wrapping domain implementations
//	├── metrics/         Prometheus counters for crashes and recoveries
//	├── drivers/         Concrete domains: rtc, ramblk, shadowblk
//	├── config/          TOML manifest with environment overrides
//	├── manager/         Loads, restarts and closes domains from a manifest
//	└── cmd/domctl/      CLI and interactive console
//
// # Quick Start
//
//	reg := domain.NewRegistry()
//	h := heap.New()
//	mgr := manager.New(reg, h, metrics.New(prometheus.NewRegistry()))
//	defer mgr.Close(ctx)
//
//	if err := mgr.Load(ctx, config.Default()); err != nil {
//	    log.Fatal(err)
//	}
//
//	handle, _ := reg.Resolve("shadow0")
//	blk, _ := handle.Blk()
//	buf, err := blk.ReadBlock(ctx, 0, heap.Fresh[heap.Block](h))
//
// # Ownership
//
// Buffers cross domain boundaries by move. A handle passed into a call is
// invalidated for the caller; the call returns the buffer (or a replacement).
// When a call crashes, the lent buffer is poisoned and reclaimed by the next
// checkout, so a retry always starts from a fresh buffer.
//
// # Recovery
//
// A domain that crashed stays addressable. The shadow block domain retries a
// crashed read exactly once; the manager can swap a new implementation behind
// an existing handle with Restart.
package faultdomain
