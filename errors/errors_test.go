package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseCall,
				Kind:     KindCrash,
				Domain:   "disk0",
				DomainID: 7,
				Op:       "read_block",
				Detail:   "domain faulted",
			},
			contains: []string{"[call]", "crash", "disk0#7", "read_block", "domain faulted"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseHeap,
				Kind:  KindMoved,
			},
			contains: []string{"[heap]", "moved"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRecover,
				Kind:   KindCrash,
				Detail: "checkout failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[recover]", "crash", "checkout failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseDevice,
		Kind:  KindDevice,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseCall,
		Kind:  KindCrash,
		Op:    "flush",
	}

	if !err.Is(&Error{Phase: PhaseCall, Kind: KindCrash}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseInit, Kind: KindCrash}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseCall, Kind: KindDevice}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrCrash) {
		t.Error("errors.Is should match the phaseless sentinel")
	}
	if errors.Is(err, ErrContractViolation) {
		t.Error("crash must not match contract violation sentinel")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrCrash) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseCall, KindCrash).
		Domain("disk0", 3).
		Op("read_block").
		Value(42).
		Cause(cause).
		Detail("index %d", 9).
		Build()

	if err.Phase != PhaseCall || err.Kind != KindCrash {
		t.Fatalf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Domain != "disk0" || err.DomainID != 3 {
		t.Errorf("domain = %s#%d", err.Domain, err.DomainID)
	}
	if err.Op != "read_block" {
		t.Errorf("op = %q", err.Op)
	}
	if err.Value != 42 {
		t.Errorf("value = %v", err.Value)
	}
	if err.Detail != "index 9" {
		t.Errorf("detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("crash from panic value", func(t *testing.T) {
		err := Crash("disk0", 1, "read_block", "index out of range")
		if !IsCrash(err) {
			t.Fatal("expected crash kind")
		}
		if err.Value != "index out of range" {
			t.Errorf("value = %v", err.Value)
		}
		if err.Cause != nil {
			t.Error("string panic value should not become a cause")
		}
	})

	t.Run("crash from panic error", func(t *testing.T) {
		inner := errors.New("nil map write")
		err := Crash("disk0", 1, "flush", inner)
		if !errors.Is(err, inner) {
			t.Error("error panic value should be the cause")
		}
	})

	t.Run("device", func(t *testing.T) {
		err := Device("read_block", "sector %d unreadable", 5)
		if !IsDevice(err) || IsCrash(err) {
			t.Fatalf("kind = %s", err.Kind)
		}
		if !strings.Contains(err.Error(), "sector 5 unreadable") {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("contract violation", func(t *testing.T) {
		err := ContractViolation(PhaseInit, "%q is not a block domain", "rtc0")
		if !IsContractViolation(err) {
			t.Fatal("expected contract violation")
		}
	})

	t.Run("kind of wrapped chain", func(t *testing.T) {
		cv := New(PhaseInit, KindContractViolation).Cause(NotFound(PhaseResolve, "domain", "x")).Build()
		if KindOf(cv) != KindContractViolation {
			t.Errorf("KindOf = %s", KindOf(cv))
		}
		if KindOf(errors.New("plain")) != "" {
			t.Error("plain error should have empty kind")
		}
		var nf *Error
		if !errors.As(cv.Unwrap(), &nf) || nf.Kind != KindNotFound {
			t.Error("cause should be a not-found error")
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDevice, 10, 5)
		if err.Value != uint64(10) {
			t.Errorf("value = %v", err.Value)
		}
	})
}
