// Package arm implements emulator.Emulator for a little-endian ARMv4 core
// running the A32 instruction set only.
package arm

import "github.com/wnxd/microstub/emulator"

const (
	ARM_REG_INVALID emulator.Reg = iota
	ARM_REG_R0
	ARM_REG_R1
	ARM_REG_R2
	ARM_REG_R3
	ARM_REG_R4
	ARM_REG_R5
	ARM_REG_R6
	ARM_REG_R7
	ARM_REG_R8
	ARM_REG_R9
	ARM_REG_R10
	ARM_REG_R11
	ARM_REG_R12
	ARM_REG_SP
	ARM_REG_LR
	ARM_REG_PC
	ARM_REG_CPSR

	ARM_REG_R13 = ARM_REG_SP
	ARM_REG_R14 = ARM_REG_LR
	ARM_REG_R15 = ARM_REG_PC
)

const (
	PAGE_SIZE = 0x1000

	CPSR_N = 1 << 31
	CPSR_Z = 1 << 30
	CPSR_C = 1 << 29
	CPSR_V = 1 << 28
	CPSR_I = 1 << 7
	CPSR_F = 1 << 6
	CPSR_T = 1 << 5

	CPSR_MODE_MASK = 0x1F
	MODE_USR       = 0x10
	MODE_FIQ       = 0x11
	MODE_IRQ       = 0x12
	MODE_SVC       = 0x13
	MODE_ABT       = 0x17
	MODE_UND       = 0x1B
	MODE_SYS       = 0x1F

	// CPSR_RESET is supervisor mode with interrupts masked.
	CPSR_RESET = CPSR_I | CPSR_F | MODE_SVC
)

// ValidMode reports whether the mode field of cpsr names an ARMv4 mode.
func ValidMode(cpsr uint32) bool {
	switch cpsr & CPSR_MODE_MASK {
	case MODE_USR, MODE_FIQ, MODE_IRQ, MODE_SVC, MODE_ABT, MODE_UND, MODE_SYS:
		return true
	}
	return false
}
