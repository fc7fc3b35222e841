package arm

import (
	"fmt"

	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
	emu_arm "github.com/wnxd/microstub/emulator/arm"
	internal "github.com/wnxd/microstub/internal/debugger"
)

const (
	SYS_EXIT       = 1
	SYS_EXIT_GROUP = 248
)

type armDbg struct {
	internal.Dbg
}

var regList = []emulator.Reg{
	emu_arm.ARM_REG_R0,
	emu_arm.ARM_REG_R1,
	emu_arm.ARM_REG_R2,
	emu_arm.ARM_REG_R3,
	emu_arm.ARM_REG_R4,
	emu_arm.ARM_REG_R5,
	emu_arm.ARM_REG_R6,
	emu_arm.ARM_REG_R7,
	emu_arm.ARM_REG_R8,
	emu_arm.ARM_REG_R9,
	emu_arm.ARM_REG_R10,
	emu_arm.ARM_REG_R11,
	emu_arm.ARM_REG_R12,
	emu_arm.ARM_REG_SP,
	emu_arm.ARM_REG_LR,
	emu_arm.ARM_REG_PC,
	emu_arm.ARM_REG_CPSR,
}

func NewArmDebugger(emu emulator.Emulator, opts ...debugger.Option) (debugger.Debugger, error) {
	if emu.Arch() != emulator.ARCH_ARM {
		return nil, emulator.ErrArchMismatch
	}
	dbg := new(armDbg)
	err := dbg.Init(dbg, emu, opts...)
	if err != nil {
		return nil, err
	}
	return dbg, nil
}

func (dbg *armDbg) PC() emulator.Reg {
	return emu_arm.ARM_REG_PC
}

func (dbg *armDbg) RegList() []emulator.Reg {
	return regList
}

func (dbg *armDbg) PackRegisters(vals []uint64) debugger.Registers {
	var regs debugger.Registers
	for i := range regs.R {
		regs.R[i] = uint32(vals[i])
	}
	regs.SP = uint32(vals[13])
	regs.LR = uint32(vals[14])
	regs.PC = uint32(vals[15])
	regs.CPSR = uint32(vals[16])
	return regs
}

func (dbg *armDbg) UnpackRegisters(regs debugger.Registers) ([]uint64, error) {
	if !emu_arm.ValidMode(regs.CPSR) {
		return nil, fmt.Errorf("%w: cpsr mode %#02x", debugger.ErrRegisterValue, regs.CPSR&emu_arm.CPSR_MODE_MASK)
	}
	if regs.CPSR&emu_arm.CPSR_T != 0 {
		return nil, fmt.Errorf("%w: thumb state", debugger.ErrRegisterValue)
	}
	vals := make([]uint64, 0, len(regList))
	for _, r := range regs.R {
		vals = append(vals, uint64(r))
	}
	return append(vals, uint64(regs.SP), uint64(regs.LR), uint64(regs.PC), uint64(regs.CPSR)), nil
}

// Syscall follows the EABI convention: number in r7, arguments from r0.
func (dbg *armDbg) Syscall(intno uint64) (debugger.StopReason, error) {
	if intno != 0 {
		return debugger.Signal{Sig: debugger.SIGSYS}, nil
	}
	vals, err := dbg.Emulator().RegReadBatch(emu_arm.ARM_REG_R7, emu_arm.ARM_REG_R0)
	if err != nil {
		return nil, err
	}
	switch vals[0] {
	case SYS_EXIT, SYS_EXIT_GROUP:
		return debugger.Exited{Code: uint8(vals[1])}, nil
	}
	return debugger.Signal{Sig: debugger.SIGSYS}, nil
}
