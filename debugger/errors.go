package debugger

import (
	"errors"
	"fmt"

	"github.com/wnxd/microstub/emulator"
)

var (
	ErrNotResumed    = errors.New("target not resumed")
	ErrRegisterValue = errors.New("register value invalid")
)

// EngineAccessError is a register operation the engine rejected.
type EngineAccessError struct {
	Op  string
	Reg emulator.Reg
	Err error
}

// MemoryAccessError is a memory range that is unmapped or lacks the
// permission the access needs.
type MemoryAccessError struct {
	Op   string
	Addr uint64
	Size uint64
	Err  error
}

// DuplicateBreakpointError means a breakpoint was inserted twice, which
// correct protocol usage never does.
type DuplicateBreakpointError struct {
	Addr uint64
	Kind BreakpointKind
}

type UnknownBreakpointError struct {
	Addr uint64
	Kind BreakpointKind
}

// TransportError ends the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *EngineAccessError) Error() string {
	return fmt.Sprintf("[EngineAccess] %s reg %d: %v", e.Op, e.Reg, e.Err)
}

func (e *EngineAccessError) Unwrap() error {
	return e.Err
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("[MemoryAccess] %s addr: %08X, size: %d: %v", e.Op, e.Addr, e.Size, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

func (e *DuplicateBreakpointError) Error() string {
	return fmt.Sprintf("[DuplicateBreakpoint] addr: %08X, kind: %d", e.Addr, e.Kind)
}

func (e *UnknownBreakpointError) Error() string {
	return fmt.Sprintf("[UnknownBreakpoint] addr: %08X, kind: %d", e.Addr, e.Kind)
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("[Transport] %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewEngineAccessError(op string, reg emulator.Reg, err error) error {
	return &EngineAccessError{Op: op, Reg: reg, Err: err}
}

func NewMemoryAccessError(op string, addr, size uint64, err error) error {
	return &MemoryAccessError{Op: op, Addr: addr, Size: size, Err: err}
}

func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
