package emulator

import "io"

type HookType int

const (
	HOOK_TYPE_INTR HookType = 1 << iota
	HOOK_TYPE_CODE
)

// CodeCallback runs before the instruction at addr executes. Calling Stop
// from inside it halts the engine with pc still at addr.
type CodeCallback = func(addr, size uint64, data any)

// InterruptCallback runs after a software interrupt instruction; pc already
// points past it.
type InterruptCallback = func(intno uint64, data any)

type Hook interface {
	io.Closer
	Type() HookType
}
