// Package errors provides structured error types for fault domains.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Three kinds carry policy:
//
//	crash               the callee faulted during the call; retry is the caller's choice
//	device              device or protocol failure; never retried automatically
//	contract_violation  misuse of the framework; the call path is aborted
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindCrash).
//		Domain("disk0", 1).
//		Op("read_block").
//		Detail("index %d", 7).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Crash("disk0", 1, "read_block", recovered)
//	err := errors.Device("read_block", "sector %d unreadable", 7)
//
// All errors implement the standard error interface and support errors.Is/As.
// The sentinels ErrCrash, ErrDevice and ErrContractViolation match any phase.
package errors
