package debugger

// Registers is the complete core register file of the target. It is always
// transferred as a whole.
type Registers struct {
	R    [13]uint32
	SP   uint32
	LR   uint32
	PC   uint32
	CPSR uint32
}

type BreakpointKind uint64

// Breakpoint kinds as sent by GDB for ARM: the length of the instruction
// the breakpoint replaces.
const (
	BreakpointKind_Thumb  BreakpointKind = 2
	BreakpointKind_Thumb2 BreakpointKind = 3
	BreakpointKind_Arm    BreakpointKind = 4
)
