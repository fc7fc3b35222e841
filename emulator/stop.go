package emulator

import "fmt"

type StopKind int

const (
	// STOP_COUNT means the instruction budget ran out.
	STOP_COUNT StopKind = iota
	// STOP_UNTIL means pc reached the until address.
	STOP_UNTIL
	// STOP_REQUESTED means Stop was called, usually from a hook.
	STOP_REQUESTED
	STOP_TIMEOUT
	STOP_INTERRUPT
	STOP_INSN_INVALID
	STOP_MEM_INVALID
)

type StopCause struct {
	Kind StopKind
	// PC is the address of the next instruction that would execute.
	PC uint64
	// Addr is the faulting data address for STOP_MEM_INVALID and the
	// interrupt number for STOP_INTERRUPT.
	Addr uint64
	// Count is the number of instructions retired during the run.
	Count uint64
}

func (k StopKind) String() string {
	switch k {
	case STOP_COUNT:
		return "count"
	case STOP_UNTIL:
		return "until"
	case STOP_REQUESTED:
		return "requested"
	case STOP_TIMEOUT:
		return "timeout"
	case STOP_INTERRUPT:
		return "interrupt"
	case STOP_INSN_INVALID:
		return "insn-invalid"
	case STOP_MEM_INVALID:
		return "mem-invalid"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

func (c StopCause) String() string {
	return fmt.Sprintf("%s pc=%08X addr=%08X count=%d", c.Kind, c.PC, c.Addr, c.Count)
}
