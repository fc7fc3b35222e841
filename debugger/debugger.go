package debugger

import (
	"context"
	"io"
	"log/slog"

	"github.com/wnxd/microstub/emulator"
)

// Debugger is the target a remote debugger drives, together with the event
// loop that runs it.
type Debugger interface {
	io.Closer
	Emulator() emulator.Emulator
	Target
	EventLoop
}

// Target advertises the feature groups it implements. Base is always
// present; the Support methods return nil when a group is unsupported.
type Target interface {
	Base() BaseOps
	SupportBreakpoints() BreakpointOps
	SupportResume() ResumeOps
}

type BaseOps interface {
	ReadRegisters() (Registers, error)
	WriteRegisters(regs Registers) error
	// ReadAddrs fills all of data or fails without returning any of it.
	ReadAddrs(addr uint64, data []byte) error
	WriteAddrs(addr uint64, data []byte) error
}

type BreakpointOps interface {
	// AddSwBreakpoint reports false when the trap could not be installed.
	AddSwBreakpoint(addr uint64, kind BreakpointKind) (bool, error)
	RemoveSwBreakpoint(addr uint64, kind BreakpointKind) (bool, error)
}

type ResumeOps interface {
	Resume(mode ResumeMode) error
}

// Connection is the part of the debugger transport the event loop polls
// while the target runs.
type Connection interface {
	// PeekByte waits at most the transport's poll timeout and leaves the
	// byte buffered.
	PeekByte() (byte, bool, error)
}

type EventLoop interface {
	Status() TaskStatus
	// Wait runs the resumed target until it stops or conn has data.
	Wait(ctx context.Context, conn Connection) (Event, error)
	// Interrupt halts a running target and reports why it stopped.
	Interrupt() (StopReason, error)
}

type Option func(*Options)

type Options struct {
	// Burst is the instruction budget of one uninterrupted run between
	// transport polls.
	Burst uint64
	// Entry is the initial program counter.
	Entry  uint64
	Logger *slog.Logger
}

func WithBurst(n uint64) Option {
	return func(o *Options) {
		o.Burst = n
	}
}

func WithEntry(addr uint64) Option {
	return func(o *Options) {
		o.Entry = addr
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

func New(emu emulator.Emulator, opts ...Option) (Debugger, error) {
	if ctor, ok := dbgMap[emu.Arch()]; ok {
		return ctor(emu, opts...)
	}
	return nil, emulator.ErrArchUnsupported
}
