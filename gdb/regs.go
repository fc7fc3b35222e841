package gdb

import (
	"encoding/binary"

	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/encoding"
)

// targetXML names the legacy armv4t layout; GDB then expects the FPA
// registers between pc and cpsr.
const targetXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0"><architecture>armv4t</architecture></target>`

// armv4tRegs is the g packet layout: f0-f7 (12 bytes each) and fps are
// reported as zero.
type armv4tRegs struct {
	R    [13]uint32
	SP   uint32
	LR   uint32
	PC   uint32
	FPA  [25]uint32
	CPSR uint32
}

func leStream(buf *encoding.Buffer) encoding.Stream {
	return encoding.BufferStream(buf, binary.LittleEndian)
}

func encodeRegisters(regs debugger.Registers) ([]byte, error) {
	wire := armv4tRegs{R: regs.R, SP: regs.SP, LR: regs.LR, PC: regs.PC, CPSR: regs.CPSR}
	return encoding.Marshal(leStream, &wire)
}

func decodeRegisters(data []byte) (debugger.Registers, error) {
	var wire armv4tRegs
	if err := encoding.Unmarshal(leStream, data, &wire); err != nil {
		return debugger.Registers{}, err
	}
	return debugger.Registers{R: wire.R, SP: wire.SP, LR: wire.LR, PC: wire.PC, CPSR: wire.CPSR}, nil
}
